// Package sensor defines the capabilities the sampling loop needs from chip
// drivers. A driver implements Sensor plus whichever decode paths it has.
package sensor

import "dimu-go/types"

// Sensor is the common lifecycle. Enable and Disable are called only from the
// driver's worker.
type Sensor interface {
	Name() string
	Type() types.SensorType
	Enable()
	Disable()
	Enabled() bool
}

// RateDecoder is decoded on every tick.
type RateDecoder interface {
	Sensor
	DecodeRate()
}

// FullDecoder is decoded on every outer tick.
type FullDecoder interface {
	Sensor
	Decode()
}

// Thermometer contributes to the averaged board temperature, in °C.
type Thermometer interface {
	Sensor
	Temperature() float32
}

// Validator is implemented by sensors whose first reading arrives late.
type Validator interface {
	Valid() bool
}

// Inertial exposes the latest raw readings in m/s² and rad/s.
type Inertial interface {
	Sensor
	RawAcc() [3]float32
	RawGyo() [3]float32
}

// Initializer is run once before sampling starts. A failing sensor stays
// disabled.
type Initializer interface {
	Init() error
}

// InitialBiaser is run once after the periodic tick is armed.
type InitialBiaser interface {
	InitialBias()
}

// RestingRater reports the gyroscope offset found by InitialBias. It is
// informational; raw readings are never corrected by it.
type RestingRater interface {
	RestingRate() [3]float32
}

// Simulator drives hardware-in-the-loop ticks while sensors are disabled.
type Simulator interface {
	Tick(loop uint32)
}
