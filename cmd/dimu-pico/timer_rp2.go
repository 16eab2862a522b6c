//go:build rp2040 || rp2350

package main

import "runtime/volatile"

// rp2Timer exposes two alarms of the RP2 microsecond timer as compare
// channels. Logical channel n is hardware alarm n+firstAlarm; the lower
// alarms stay with the runtime.
type rp2Timer struct {
	isr func()
}

const firstAlarm = 2

var activeTimer *rp2Timer

func newRP2Timer() *rp2Timer {
	t := &rp2Timer{}
	activeTimer = t
	return t
}

func bit(ch uint8) uint32 { return 1 << (ch + firstAlarm) }

func alarmReg(ch uint8) *volatile.Register32 {
	if ch == 0 {
		return &hwTimer.ALARM2
	}
	return &hwTimer.ALARM3
}

func (t *rp2Timer) Counter() uint32 { return hwTimer.TIMERAWL.Get() }
func (t *rp2Timer) Mask() uint32    { return 0xFFFFFFFF }

// SetCompare writes the alarm, which also arms it.
func (t *rp2Timer) SetCompare(ch uint8, v uint32) { alarmReg(ch).Set(v) }

func (t *rp2Timer) EnableIRQ(ch uint8)       { hwTimer.INTE.SetBits(bit(ch)) }
func (t *rp2Timer) DisableIRQ(ch uint8)      { hwTimer.INTE.ClearBits(bit(ch)) }
func (t *rp2Timer) IRQEnabled(ch uint8) bool { return hwTimer.INTE.HasBits(bit(ch)) }
func (t *rp2Timer) Pending(ch uint8) bool    { return hwTimer.INTR.HasBits(bit(ch)) }

// ClearPending is write-one-to-clear.
func (t *rp2Timer) ClearPending(ch uint8) { hwTimer.INTR.Set(bit(ch)) }

func (t *rp2Timer) Attach(isr func()) {
	t.isr = isr
	enableTimerIRQs()
}

func timerISR() {
	if t := activeTimer; t != nil && t.isr != nil {
		t.isr()
	}
}
