package hwtimer

import (
	"context"
	"sync"
	"time"

	"dimu-go/x/timex"
)

// Soft is a wall-clock timer. Counter values are derived from time elapsed
// since NewSoft; compare matches are tracked as 64-bit deadlines so they
// survive counter wrap.
type Soft struct {
	hz    uint32
	mask  uint32
	start time.Time
	kick  chan struct{}

	mu    sync.Mutex
	due   [Channels]uint64 // absolute tick of the next match, 0 = unset
	en    [Channels]bool
	pend  [Channels]bool
	isr   func()
	fires uint64
}

func NewSoft(hz uint32, bits uint) *Soft {
	if hz == 0 {
		hz = 1_000_000
	}
	return &Soft{hz: hz, mask: maskFor(bits), start: time.Now(), kick: make(chan struct{}, 1)}
}

func (s *Soft) Attach(isr func()) {
	s.mu.Lock()
	s.isr = isr
	s.mu.Unlock()
}

func (s *Soft) now() uint64 {
	return timex.DurationToTicks(time.Since(s.start), s.hz)
}

func (s *Soft) Counter() uint32 { return uint32(s.now()) & s.mask }
func (s *Soft) Mask() uint32    { return s.mask }

// SetCompare schedules the next match at the first future tick whose masked
// value equals v.
func (s *Soft) SetCompare(ch uint8, v uint32) {
	now := s.now()
	delta := uint64((v - uint32(now)) & s.mask)
	if delta == 0 {
		delta = uint64(s.mask) + 1
	}
	s.mu.Lock()
	s.due[ch] = now + delta
	s.mu.Unlock()
	s.poke()
}

func (s *Soft) EnableIRQ(ch uint8) {
	s.mu.Lock()
	s.en[ch] = true
	s.mu.Unlock()
	s.poke()
}

func (s *Soft) DisableIRQ(ch uint8) {
	s.mu.Lock()
	s.en[ch] = false
	s.mu.Unlock()
}

func (s *Soft) IRQEnabled(ch uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.en[ch]
}

func (s *Soft) Pending(ch uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pend[ch]
}

func (s *Soft) ClearPending(ch uint8) {
	s.mu.Lock()
	s.pend[ch] = false
	s.mu.Unlock()
}

// Fires counts ISR invocations.
func (s *Soft) Fires() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fires
}

func (s *Soft) poke() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run delivers compare matches until ctx is cancelled.
func (s *Soft) Run(ctx context.Context) {
	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		timex.ResetTimer(t, s.untilNext())
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
			continue
		case <-t.C:
		}
		if isr := s.match(); isr != nil {
			isr()
		}
	}
}

func (s *Soft) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next uint64
	for ch := range s.due {
		if d := s.due[ch]; d != 0 && (next == 0 || d < next) {
			next = d
		}
	}
	if next == 0 {
		return time.Hour
	}
	now := s.now()
	if next <= now {
		return 0
	}
	return timex.TicksToDuration(next-now, s.hz)
}

// match raises every channel whose deadline has passed and re-arms it one
// counter period later, as a free-running compare would.
func (s *Soft) match() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	raised := false
	for ch := range s.due {
		d := s.due[ch]
		if d == 0 || d > now {
			continue
		}
		s.pend[ch] = true
		for s.due[ch] <= now {
			s.due[ch] += uint64(s.mask) + 1
		}
		if s.en[ch] {
			raised = true
		}
	}
	if !raised || s.isr == nil {
		return nil
	}
	s.fires++
	return s.isr
}
