package imu

import (
	"errors"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/mpu6050"

	"dimu-go/types"
)

var ErrNotConnected = errors.New("imu: device not responding")

// MPU6050 is an accelerometer + gyroscope on I²C. The gyroscope is read on
// every tick; both are read on full ticks.
type MPU6050 struct {
	base
	dev mpu6050.Device

	acc, gyo [3]float32
	rest     [3]float32 // resting rate captured by InitialBias, rad/s
}

func NewMPU6050(bus drivers.I2C, addr uint16) *MPU6050 {
	d := &MPU6050{dev: mpu6050.New(bus)}
	if addr != 0 {
		d.dev.Address = addr
	}
	d.name = "mpu6050"
	d.typ = types.SensorAcc
	return d
}

func (d *MPU6050) Init() error {
	if !d.dev.Connected() {
		return ErrNotConnected
	}
	return d.dev.Configure()
}

func (d *MPU6050) DecodeRate() {
	x, y, z := d.dev.ReadRotation()
	d.gyo = scale3(x, y, z, microDegToRadPS)
}

func (d *MPU6050) Decode() {
	x, y, z := d.dev.ReadAcceleration()
	d.acc = scale3(x, y, z, microGToMS2)
	d.DecodeRate()
}

func (d *MPU6050) RawAcc() [3]float32 { return d.acc }

// RawGyo is the uncorrected rate. Bias removal belongs to the calibration
// parameters that tare sets.
func (d *MPU6050) RawGyo() [3]float32 { return d.gyo }

// RestingRate is the offset InitialBias measured.
func (d *MPU6050) RestingRate() [3]float32 { return d.rest }

// InitialBias averages a short burst of gyroscope readings taken at rest.
func (d *MPU6050) InitialBias() {
	const n = 32
	var sum [3]float64
	for i := 0; i < n; i++ {
		x, y, z := d.dev.ReadRotation()
		g := scale3(x, y, z, microDegToRadPS)
		for j := range sum {
			sum[j] += float64(g[j])
		}
	}
	for j := range sum {
		d.rest[j] = float32(sum[j] / n)
	}
}
