package hwtimer

import "sync"

// Sim is a deterministic timer advanced by Advance.
type Sim struct {
	mu   sync.Mutex
	mask uint32
	cnt  uint32
	cmp  [Channels]uint32
	en   [Channels]bool
	pend [Channels]bool

	latency int // ticks between the interrupt being raised and the ISR
	wait    int
	isr     func()
	entries int
}

func NewSim(bits uint) *Sim {
	return &Sim{mask: maskFor(bits), wait: -1}
}

// Attach sets the interrupt handler.
func (s *Sim) Attach(isr func()) {
	s.mu.Lock()
	s.isr = isr
	s.mu.Unlock()
}

// SetLatency delays ISR entry by n ticks after an interrupt is raised.
func (s *Sim) SetLatency(n int) {
	s.mu.Lock()
	s.latency = n
	s.mu.Unlock()
}

// SetCounter loads the counter without raising compare matches.
func (s *Sim) SetCounter(v uint32) {
	s.mu.Lock()
	s.cnt = v & s.mask
	s.mu.Unlock()
}

func (s *Sim) Counter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cnt
}

func (s *Sim) Mask() uint32 { return s.mask }

func (s *Sim) SetCompare(ch uint8, v uint32) {
	s.mu.Lock()
	s.cmp[ch] = v & s.mask
	s.mu.Unlock()
}

func (s *Sim) EnableIRQ(ch uint8) {
	s.mu.Lock()
	s.en[ch] = true
	s.mu.Unlock()
}

func (s *Sim) DisableIRQ(ch uint8) {
	s.mu.Lock()
	s.en[ch] = false
	s.mu.Unlock()
}

func (s *Sim) IRQEnabled(ch uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.en[ch]
}

func (s *Sim) Pending(ch uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pend[ch]
}

func (s *Sim) ClearPending(ch uint8) {
	s.mu.Lock()
	s.pend[ch] = false
	s.mu.Unlock()
}

// ISREntries counts ISR invocations.
func (s *Sim) ISREntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// Advance steps the counter n ticks, raising compare matches and running the
// ISR as they become due.
func (s *Sim) Advance(n int) {
	for i := 0; i < n; i++ {
		if isr := s.step(); isr != nil {
			isr()
		}
	}
}

// step advances one tick and returns the ISR if it must run now.
func (s *Sim) step() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cnt = (s.cnt + 1) & s.mask
	raised := false
	for ch := range s.cmp {
		if s.cnt == s.cmp[ch] {
			s.pend[ch] = true
		}
		if s.en[ch] && s.pend[ch] {
			raised = true
		}
	}
	if !raised {
		s.wait = -1
		return nil
	}
	if s.wait < 0 {
		s.wait = s.latency
	}
	if s.wait > 0 {
		s.wait--
		return nil
	}
	s.wait = -1
	if s.isr == nil {
		return nil
	}
	s.entries++
	return s.isr
}
