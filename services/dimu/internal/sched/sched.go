// services/dimu/internal/sched/sched.go
package sched

import (
	"context"
	"sync/atomic"

	"dimu-go/services/dimu/sensor"
	"dimu-go/types"
	"dimu-go/x/mathx"
)

// Consumer is told when a rate or full update is ready.
type Consumer interface {
	SensorReady(kind types.UpdateKind)
}

// Enabler switches every sensor on or off.
type Enabler interface {
	SetSensorsEnabled(on bool)
}

// Servicer runs pending calibration I/O between ticks.
type Servicer interface {
	Pending() bool
	Service(en Enabler)
}

type Config struct {
	Divider  uint32  // outer period / inner period, >= 1
	RoomTemp float32 // °C
}

// Deps are the scheduler's collaborators. All are optional except Clock.
type Deps struct {
	Sensors   []sensor.Sensor
	Consumer  Consumer
	Calib     Servicer
	Simulator sensor.Simulator
	Clock     func() uint32
	// OnFull runs on the worker after each full update.
	OnFull func(types.FullSample)
}

// Scheduler runs the two-rate sampling loop. Step is called only from the
// driver's worker; the accessors are safe from any goroutine.
type Scheduler struct {
	cfg  Config
	deps Deps

	rate  []sensor.RateDecoder
	full  []sensor.FullDecoder
	therm []sensor.Thermometer
	inert []sensor.Inertial

	loop uint32 // worker only

	enabled  atomic.Bool
	simOn    atomic.Bool
	loops    atomic.Uint32
	lastFull atomic.Uint32
	seq      atomic.Uint32
	latest   atomic.Pointer[types.FullSample]
	fullCh   atomic.Pointer[chan struct{}]

	// temperature terms, worker only; published through latest
	temp, dTemp, dTemp2, dTemp3 float32
}

func New(cfg Config, d Deps) *Scheduler {
	if cfg.Divider == 0 {
		cfg.Divider = 1
	}
	if d.Clock == nil {
		panic("sched: nil clock")
	}
	s := &Scheduler{cfg: cfg, deps: d}
	for _, sn := range d.Sensors {
		if r, ok := sn.(sensor.RateDecoder); ok {
			s.rate = append(s.rate, r)
		}
		if f, ok := sn.(sensor.FullDecoder); ok {
			s.full = append(s.full, f)
		}
		if t, ok := sn.(sensor.Thermometer); ok {
			s.therm = append(s.therm, t)
		}
		if in, ok := sn.(sensor.Inertial); ok {
			s.inert = append(s.inert, in)
		}
	}
	ch := make(chan struct{})
	s.fullCh.Store(&ch)
	return s
}

// Step runs the work due on one tick.
func (s *Scheduler) Step() {
	if c := s.deps.Calib; c != nil && c.Pending() {
		c.Service(s)
	}

	if s.enabled.Load() {
		for _, r := range s.rate {
			if r.Enabled() {
				r.DecodeRate()
			}
		}
		s.notify(types.UpdateRate)

		if s.loop%s.cfg.Divider == 0 {
			s.fullUpdate()
		}
	} else if s.deps.Simulator != nil && s.simOn.Load() {
		s.deps.Simulator.Tick(s.loop)
	}

	s.loop++
	s.loops.Store(s.loop)
}

func (s *Scheduler) fullUpdate() {
	for _, f := range s.full {
		if f.Enabled() {
			f.Decode()
		}
	}
	stamp := s.deps.Clock()
	s.lastFull.Store(stamp)
	s.notify(types.UpdateFull)
	s.calcTempDiff()

	snap := types.FullSample{
		Seq:    s.seq.Load() + 1,
		Stamp:  stamp,
		Temp:   s.temp,
		DTemp:  s.dTemp,
		DTemp2: s.dTemp2,
		DTemp3: s.dTemp3,
	}
	snap.Acc, snap.Gyo = s.rawMeans()
	s.latest.Store(&snap)
	s.seq.Store(snap.Seq)

	next := make(chan struct{})
	close(*s.fullCh.Swap(&next))

	if s.deps.OnFull != nil {
		s.deps.OnFull(snap)
	}
}

// calcTempDiff averages enabled thermometers that hold a reading; with none
// the previous terms are kept.
func (s *Scheduler) calcTempDiff() {
	var ts []float32
	for _, t := range s.therm {
		if !t.Enabled() {
			continue
		}
		if v, ok := t.(sensor.Validator); ok && !v.Valid() {
			continue
		}
		ts = append(ts, t.Temperature())
	}
	avg, ok := mathx.Mean(ts...)
	if !ok {
		return
	}
	s.temp = avg
	s.dTemp = avg - s.cfg.RoomTemp
	s.dTemp2 = s.dTemp * s.dTemp
	s.dTemp3 = s.dTemp2 * s.dTemp
}

func (s *Scheduler) rawMeans() (acc, gyo [3]float32) {
	var a, g mathx.Vec3[float32]
	n := 0
	for _, in := range s.inert {
		if !in.Enabled() {
			continue
		}
		a = a.Add(in.RawAcc())
		g = g.Add(in.RawGyo())
		n++
	}
	if n == 0 {
		return acc, gyo
	}
	k := 1 / float32(n)
	return a.Scale(k), g.Scale(k)
}

func (s *Scheduler) notify(kind types.UpdateKind) {
	if s.deps.Consumer != nil {
		s.deps.Consumer.SensorReady(kind)
	}
}

// SetSensorsEnabled switches the sampling paths and every sensor. Worker only.
func (s *Scheduler) SetSensorsEnabled(on bool) {
	s.enabled.Store(on)
	for _, sn := range s.deps.Sensors {
		if on {
			sn.Enable()
		} else {
			sn.Disable()
		}
	}
}

func (s *Scheduler) SensorsEnabled() bool { return s.enabled.Load() }

// SetSimulation gates the simulator tick.
func (s *Scheduler) SetSimulation(on bool) { s.simOn.Store(on) }

func (s *Scheduler) Loops() uint32          { return s.loops.Load() }
func (s *Scheduler) LastFullUpdate() uint32 { return s.lastFull.Load() }
func (s *Scheduler) FullUpdates() uint32    { return s.seq.Load() }

// Latest returns the newest full-update snapshot.
func (s *Scheduler) Latest() (types.FullSample, bool) {
	p := s.latest.Load()
	if p == nil {
		return types.FullSample{}, false
	}
	return *p, true
}

// WaitFull blocks until a full update newer than seq has been published.
func (s *Scheduler) WaitFull(ctx context.Context, seq uint32) (types.FullSample, error) {
	for {
		ch := *s.fullCh.Load()
		if p := s.latest.Load(); p != nil && p.Seq != seq {
			return *p, nil
		}
		select {
		case <-ctx.Done():
			return types.FullSample{}, ctx.Err()
		case <-ch:
		}
	}
}
