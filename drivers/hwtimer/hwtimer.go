// Package hwtimer provides timer peripherals with compare channels for hosts
// without the real hardware:
//
//   - Sim is stepped explicitly and is deterministic; tests use it.
//   - Soft follows the wall clock from a goroutine; host runs use it.
//
// Both expose the same register model as an MCU timer: a free-running counter
// masked to the configured width, a compare value, an interrupt enable and a
// pending flag per channel. The attached ISR runs with no internal lock held,
// so it may freely call back into the timer.
package hwtimer

// Channels is the number of compare channels per timer.
const Channels = 4

func maskFor(bits uint) uint32 {
	if bits == 0 || bits >= 32 {
		return 0xFFFFFFFF
	}
	return 1<<bits - 1
}
