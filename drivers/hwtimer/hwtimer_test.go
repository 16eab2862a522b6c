package hwtimer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSimCompareAndLatency(t *testing.T) {
	s := NewSim(16)
	var at []uint32
	s.Attach(func() {
		at = append(at, s.Counter())
		s.ClearPending(1)
	})
	s.SetLatency(3)
	s.SetCompare(1, 10)
	s.EnableIRQ(1)

	s.Advance(12)
	if len(at) != 0 {
		t.Fatalf("ISR ran before latency elapsed: %v", at)
	}
	s.Advance(1)
	if len(at) != 1 || at[0] != 13 {
		t.Fatalf("ISR entries at %v, want [13]", at)
	}
	if s.ISREntries() != 1 {
		t.Fatalf("entries = %d", s.ISREntries())
	}
}

func TestSimWrapAndDisabled(t *testing.T) {
	s := NewSim(16)
	n := 0
	s.Attach(func() { n++; s.ClearPending(0) })
	s.SetCounter(0xFFFE)
	s.SetCompare(0, 1)
	s.Advance(3)
	if n != 0 || !s.Pending(0) {
		t.Fatalf("disabled channel: n=%d pending=%v", n, s.Pending(0))
	}
	s.EnableIRQ(0)
	s.Advance(1)
	if n != 1 {
		t.Fatalf("pending flag did not raise once enabled: n=%d", n)
	}
	if s.Counter() != 2 {
		t.Fatalf("counter = %d, want 2", s.Counter())
	}
}

func TestSoftFiresOnWallClock(t *testing.T) {
	s := NewSoft(1_000_000, 16)
	var fires atomic.Int32
	s.Attach(func() {
		if s.Pending(1) {
			s.ClearPending(1)
			fires.Add(1)
			s.SetCompare(1, s.Counter()+2000)
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.SetCompare(1, s.Counter()+2000)
	s.EnableIRQ(1)

	deadline := time.After(time.Second)
	for fires.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d fires in 1s", fires.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
