package imu

import (
	"errors"

	"tinygo.org/x/drivers"

	"dimu-go/drivers/aht20"
	"dimu-go/types"
)

// AHT20 is an auxiliary board thermometer. Each full tick collects the
// previous conversion and starts the next one, so the reading lags by one
// outer period.
type AHT20 struct {
	base
	dev aht20.Device

	tempC    float32
	humidity float32
	valid    bool
	failures uint32
}

func NewAHT20(bus drivers.I2C, addr uint16) *AHT20 {
	d := &AHT20{dev: aht20.New(bus)}
	if addr != 0 {
		d.dev.Address = addr
	}
	d.name = "aht20"
	d.typ = types.SensorTemp
	return d
}

func (d *AHT20) Init() error {
	if err := d.dev.Init(); err != nil {
		if errors.Is(err, aht20.ErrNotConnected) {
			return ErrNotConnected
		}
		return err
	}
	return d.dev.Trigger()
}

func (d *AHT20) Decode() {
	var s aht20.Sample
	switch err := d.dev.Collect(&s); {
	case err == nil:
		d.tempC = s.Celsius()
		d.humidity = s.RelHumidity()
		d.valid = true
	case errors.Is(err, aht20.ErrNotReady):
		// still converting; keep the previous reading
		return
	default:
		d.failures++
	}
	if err := d.dev.Trigger(); err != nil {
		d.failures++
	}
}

func (d *AHT20) Temperature() float32 { return d.tempC }
func (d *AHT20) RelHumidity() float32 { return d.humidity }
func (d *AHT20) Valid() bool          { return d.valid }
func (d *AHT20) Failures() uint32     { return d.failures }
