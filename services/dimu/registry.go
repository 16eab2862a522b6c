// services/dimu/registry.go
package dimu

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"

	"dimu-go/drivers/imu"
	"dimu-go/errcode"
	"dimu-go/services/dimu/sensor"
	"dimu-go/types"
)

// I2CBusFactory injects configured I²C instances by id.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// BuildInput is provided to a sensor builder.
type BuildInput struct {
	Buses  I2CBusFactory
	Config types.SensorConfig
}

// Builder constructs a sensor from config and platform factories.
type Builder interface {
	Build(in BuildInput) (sensor.Sensor, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(in BuildInput) (sensor.Sensor, error)

func (f BuilderFunc) Build(in BuildInput) (sensor.Sensor, error) { return f(in) }

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder installs a builder for a sensor type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(sensorType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if sensorType == "" {
		panic("dimu: empty sensor type for builder")
	}
	if _, exists := builders[sensorType]; exists {
		panic(fmt.Sprintf("dimu: builder already registered for type %q", sensorType))
	}
	builders[sensorType] = b
}

func findBuilder(sensorType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[sensorType]
	return b, ok
}

func i2cBuilder(defAddr uint16, mk func(drivers.I2C, uint16) sensor.Sensor) Builder {
	return BuilderFunc(func(in BuildInput) (sensor.Sensor, error) {
		if in.Buses == nil {
			return nil, &errcode.E{C: errcode.InvalidConfig, Op: "dimu.build", Msg: "no i2c buses"}
		}
		bus, ok := in.Buses.ByID(in.Config.Bus)
		if !ok {
			return nil, &errcode.E{C: errcode.InvalidConfig, Op: "dimu.build", Msg: "unknown i2c bus " + in.Config.Bus}
		}
		addr := in.Config.Addr
		if addr == 0 {
			addr = defAddr
		}
		return mk(bus, addr), nil
	})
}

func init() {
	RegisterBuilder("mpu6050", i2cBuilder(0x68, func(b drivers.I2C, a uint16) sensor.Sensor { return imu.NewMPU6050(b, a) }))
	RegisterBuilder("bmp280", i2cBuilder(0x77, func(b drivers.I2C, a uint16) sensor.Sensor { return imu.NewBMP280(b, a) }))
	RegisterBuilder("aht20", i2cBuilder(0x38, func(b drivers.I2C, a uint16) sensor.Sensor { return imu.NewAHT20(b, a) }))
	RegisterBuilder("sim", BuilderFunc(func(BuildInput) (sensor.Sensor, error) {
		return imu.NewSim(imu.SimConfig{Noise: 0.01, TempC: 22}), nil
	}))
}

// BuildSensors constructs the configured sensors, skipping disabled entries.
// The first sensor that can simulate is returned as the simulator.
func BuildSensors(cfgs []types.SensorConfig, buses I2CBusFactory) ([]sensor.Sensor, sensor.Simulator, error) {
	var out []sensor.Sensor
	var sim sensor.Simulator
	for _, c := range cfgs {
		if c.Disable {
			continue
		}
		b, ok := findBuilder(c.Type)
		if !ok {
			return nil, nil, &errcode.E{C: errcode.Unsupported, Op: "dimu.build", Msg: "sensor type " + c.Type}
		}
		s, err := b.Build(BuildInput{Buses: buses, Config: c})
		if err != nil {
			return nil, nil, err
		}
		if sm, ok := s.(sensor.Simulator); ok && sim == nil {
			sim = sm
		}
		out = append(out, s)
	}
	return out, sim, nil
}
