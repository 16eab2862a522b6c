// services/dimu/internal/alarm/alarm.go
package alarm

import (
	"sync/atomic"
)

// Compare channels used on the timer peripheral.
const (
	ChanOneShot  uint8 = 0
	ChanPeriodic uint8 = 1
)

// Timer is the register contract of a free-running counter with compare
// channels. Counter values are already masked to the counter width.
type Timer interface {
	Counter() uint32
	Mask() uint32
	SetCompare(ch uint8, v uint32)
	EnableIRQ(ch uint8)
	DisableIRQ(ch uint8)
	IRQEnabled(ch uint8) bool
	Pending(ch uint8) bool
	ClearPending(ch uint8)
}

// Callback is run from interrupt context when a one-shot fires.
type Callback func(param int)

type oneShot struct {
	cb      Callback
	param   int
	armedAt uint32
	delay   uint32
}

func (o *oneShot) due(now, mask uint32) bool { return (now-o.armedAt)&mask >= o.delay }

// Alarm drives a periodic tick on ChanPeriodic and an optional one-shot on
// ChanOneShot of the same timer.
type Alarm struct {
	t      Timer
	signal func()

	period atomic.Uint32
	next   atomic.Uint32
	shot   atomic.Pointer[oneShot]

	periodicFires atomic.Uint32
	oneShotFires  atomic.Uint32
}

// New binds an alarm to t. signal is called from the ISR after the periodic
// compare has been reprogrammed; it must not block.
func New(t Timer, signal func()) *Alarm {
	return &Alarm{t: t, signal: signal}
}

// ArmPeriodic starts the periodic tick with the first deadline one period
// from now. A zero period panics.
func (a *Alarm) ArmPeriodic(period uint32) {
	if period == 0 {
		panic("alarm: zero period")
	}
	mask := a.t.Mask()
	a.period.Store(period & mask)
	n := (a.t.Counter() + period) & mask
	a.next.Store(n)
	a.t.SetCompare(ChanPeriodic, n)
	a.t.ClearPending(ChanPeriodic)
	a.t.EnableIRQ(ChanPeriodic)
}

// StopPeriodic disables the periodic interrupt.
func (a *Alarm) StopPeriodic() {
	a.t.DisableIRQ(ChanPeriodic)
	a.t.ClearPending(ChanPeriodic)
}

// ScheduleOneShot arms the one-shot channel delay ticks from now. A previous
// pending one-shot is replaced.
func (a *Alarm) ScheduleOneShot(delay uint32, cb Callback, param int) {
	a.t.DisableIRQ(ChanOneShot)
	mask := a.t.Mask()
	now := a.t.Counter()
	a.shot.Store(&oneShot{cb: cb, param: param, armedAt: now, delay: delay & mask})
	a.t.SetCompare(ChanOneShot, (now+delay)&mask)
	a.t.ClearPending(ChanOneShot)
	a.t.EnableIRQ(ChanOneShot)
}

// CancelOneShot disarms the one-shot. Safe to call at any time, including
// from inside the callback.
func (a *Alarm) CancelOneShot() {
	a.t.DisableIRQ(ChanOneShot)
	a.shot.Store(nil)
}

// OneShotArmed reports whether a one-shot callback is waiting to fire.
func (a *Alarm) OneShotArmed() bool { return a.shot.Load() != nil }

// ISR services the timer interrupt. The periodic channel is handled first.
func (a *Alarm) ISR() {
	t := a.t
	if t.IRQEnabled(ChanPeriodic) && t.Pending(ChanPeriodic) {
		t.ClearPending(ChanPeriodic)
		n := (a.next.Load() + a.period.Load()) & t.Mask()
		a.next.Store(n)
		t.SetCompare(ChanPeriodic, n)
		a.periodicFires.Add(1)
		if a.signal != nil {
			a.signal()
		}
	}
	if t.IRQEnabled(ChanOneShot) && t.Pending(ChanOneShot) {
		a.serviceOneShot()
	}
}

// serviceOneShot consumes the stored shot at most once. Where the ISR runs
// on its own goroutine (hwtimer.Soft) the task may re-arm or cancel between
// the pending check and here: a shot whose deadline is still ahead is left
// armed, and a shot replaced after the load is not fired.
func (a *Alarm) serviceOneShot() {
	t := a.t
	s := a.shot.Load()
	if s != nil && !s.due(t.Counter(), t.Mask()) {
		return
	}
	t.ClearPending(ChanOneShot)
	t.DisableIRQ(ChanOneShot)
	fire := s != nil && a.shot.CompareAndSwap(s, nil)
	if a.shot.Load() != nil {
		// re-armed concurrently; undo the disable above
		t.EnableIRQ(ChanOneShot)
	}
	if !fire {
		return
	}
	a.oneShotFires.Add(1)
	if s.cb != nil {
		s.cb(s.param)
	}
}

// Next returns the programmed periodic deadline.
func (a *Alarm) Next() uint32   { return a.next.Load() }
func (a *Alarm) Period() uint32 { return a.period.Load() }

func (a *Alarm) PeriodicFires() uint32 { return a.periodicFires.Load() }
func (a *Alarm) OneShotFires() uint32  { return a.oneShotFires.Load() }
