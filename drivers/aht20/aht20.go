// Package aht20 drives the AHT20 temperature/humidity sensor with a
// non-blocking two-phase measurement:
//
//	d.Trigger()          // start a conversion
//	err := d.Collect(&s) // ErrNotReady while the device is busy
//
// Nothing here sleeps. Callers that sample on a fixed tick collect the
// previous conversion and trigger the next one in the same tick.
//
// I2C.Tx must perform a write followed by a repeated-start read when both w
// and r are provided.
package aht20

import (
	"errors"

	"tinygo.org/x/drivers"
)

const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrNotReady     = errors.New("aht20: not ready")
	ErrNotConnected = errors.New("aht20: not connected")
)

type Device struct {
	bus     drivers.I2C
	Address uint16

	buf  [7]byte
	last Sample
}

// New only binds the bus; it does not touch the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Init loads the calibration coefficients unless the device reports they are
// already loaded.
func (d *Device) Init() error {
	st, err := d.Status()
	if err != nil {
		return ErrNotConnected
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	return d.bus.Tx(d.Address, []byte{cmdInitialize, 0x08, 0x00}, nil)
}

// Reset issues a soft reset. The device needs about 20 ms afterwards.
func (d *Device) Reset() error {
	return d.bus.Tx(d.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) Status() (byte, error) {
	var st [1]byte
	if err := d.bus.Tx(d.Address, []byte{cmdStatus}, st[:]); err != nil {
		return 0, err
	}
	return st[0], nil
}

// Trigger starts a conversion. A result is available roughly 80 ms later.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect reads the last conversion into out and the device cache.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	d.last = Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}
	if out != nil {
		*out = d.last
	}
	return nil
}

// Last returns the most recent collected sample.
func (d *Device) Last() Sample { return d.last }

// Sample holds 20-bit raw readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) Celsius() float32 {
	return float32(s.RawTemp)*200/0x100000 - 50
}

func (s Sample) RelHumidity() float32 {
	return float32(s.RawHumidity) * 100 / 0x100000
}

// DeciCelsius returns tenths of °C without floating point.
func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/0x100000) - 500
}
