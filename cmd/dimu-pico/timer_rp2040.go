//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
)

var hwTimer = rp.TIMER

func enableTimerIRQs() {
	interrupt.New(rp.IRQ_TIMER_IRQ_2, func(interrupt.Interrupt) { timerISR() }).Enable()
	interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) { timerISR() }).Enable()
}
