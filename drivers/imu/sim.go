package imu

import (
	"math/rand/v2"

	"dimu-go/types"
)

// SimConfig describes a stationary, level IMU.
type SimConfig struct {
	AccBias [3]float32 // m/s²
	GyoBias [3]float32 // rad/s
	Noise   float32    // peak noise on every axis
	TempC   float32
	Seed    uint64
}

// Sim is a simulated accelerometer + gyroscope + thermometer. When sensors
// are disabled and simulation is on, Tick advances a slow temperature drift
// so the loop stays observable.
type Sim struct {
	base
	cfg SimConfig
	rng *rand.Rand

	acc, gyo [3]float32
	temp     float32
	rates    uint32
	fulls    uint32
	ticks    uint32
	initErr  error
}

func NewSim(cfg SimConfig) *Sim {
	s := &Sim{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)), temp: cfg.TempC}
	s.name = "sim"
	s.typ = types.SensorAcc
	return s
}

// FailInit makes Init return err.
func (s *Sim) FailInit(err error) { s.initErr = err }

func (s *Sim) Init() error { return s.initErr }

func (s *Sim) noise() float32 {
	if s.cfg.Noise == 0 {
		return 0
	}
	return (s.rng.Float32()*2 - 1) * s.cfg.Noise
}

func (s *Sim) DecodeRate() {
	for i := range s.gyo {
		s.gyo[i] = s.cfg.GyoBias[i] + s.noise()
	}
	s.rates++
}

func (s *Sim) Decode() {
	s.acc = [3]float32{
		s.cfg.AccBias[0] + s.noise(),
		s.cfg.AccBias[1] + s.noise(),
		float32(StandardGravity) + s.cfg.AccBias[2] + s.noise(),
	}
	s.fulls++
}

func (s *Sim) Tick(loop uint32) {
	s.ticks++
	s.temp = s.cfg.TempC + float32(loop%4000)/4000
}

func (s *Sim) RawAcc() [3]float32   { return s.acc }
func (s *Sim) RawGyo() [3]float32   { return s.gyo }
func (s *Sim) Temperature() float32 { return s.temp }
func (s *Sim) InitialBias()         {}

// Counts reports decode and simulation tick totals.
func (s *Sim) Counts() (rate, full, ticks uint32) { return s.rates, s.fulls, s.ticks }
