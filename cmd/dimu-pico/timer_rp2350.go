//go:build rp2350

package main

import (
	"device/rp"
	"runtime/interrupt"
)

var hwTimer = rp.TIMER0

func enableTimerIRQs() {
	interrupt.New(rp.IRQ_TIMER0_IRQ_2, func(interrupt.Interrupt) { timerISR() }).Enable()
	interrupt.New(rp.IRQ_TIMER0_IRQ_3, func(interrupt.Interrupt) { timerISR() }).Enable()
}
