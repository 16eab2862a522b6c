package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// TicksToDuration converts counter ticks at hz into a time.Duration.
func TicksToDuration(ticks uint64, hz uint32) time.Duration {
	return time.Duration(ticks * PeriodFromHz(hz))
}

// DurationToTicks converts d into whole counter ticks at hz (rounded down).
func DurationToTicks(d time.Duration, hz uint32) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d) / PeriodFromHz(hz)
}

// Micros is a free-running 32-bit microsecond clock anchored at its creation.
// It wraps after ~71 minutes; consumers only compare for change or subtract.
type Micros struct{ start time.Time }

func NewMicros() Micros { return Micros{start: time.Now()} }

func (m Micros) Now() uint32 { return uint32(time.Since(m.start) / time.Microsecond) }

// ResetTimer safely stops, drains, and resets a timer.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
