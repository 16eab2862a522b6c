package imu

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/bmp280"

	"dimu-go/types"
)

// BMP280 is a barometer with an on-die thermometer, decoded on full ticks.
type BMP280 struct {
	base
	dev bmp280.Device

	tempC    float32
	pressPa  float32
	refPa    float32 // ground reference from InitialBias
	failures uint32
}

func NewBMP280(bus drivers.I2C, addr uint16) *BMP280 {
	d := &BMP280{dev: bmp280.New(bus)}
	if addr != 0 {
		d.dev.Address = addr
	}
	d.name = "bmp280"
	d.typ = types.SensorPres
	return d
}

func (d *BMP280) Init() error {
	if !d.dev.Connected() {
		return ErrNotConnected
	}
	d.dev.Configure(bmp280.STANDBY_1MS, bmp280.FILTER_4X, bmp280.SAMPLING_2X, bmp280.SAMPLING_16X, bmp280.MODE_NORMAL)
	return nil
}

func (d *BMP280) Decode() {
	t, err := d.dev.ReadTemperature()
	if err != nil {
		d.failures++
		return
	}
	p, err := d.dev.ReadPressure()
	if err != nil {
		d.failures++
		return
	}
	d.tempC = float32(t) / 1000
	d.pressPa = float32(p) / 1000
}

func (d *BMP280) Temperature() float32 { return d.tempC }
func (d *BMP280) Pressure() float32    { return d.pressPa }
func (d *BMP280) Failures() uint32     { return d.failures }

// InitialBias records the current pressure as the ground reference.
func (d *BMP280) InitialBias() {
	d.Decode()
	d.refPa = d.pressPa
}

func (d *BMP280) Reference() float32 { return d.refPa }
