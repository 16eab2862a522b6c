package aht20

import (
	"errors"
	"testing"
)

// fakeDev models the status byte and one pending conversion.
type fakeDev struct {
	calibrated bool
	busyReads  int
	frame      [7]byte
	inits      int
	triggers   int
	fail       error
}

func (f *fakeDev) Tx(addr uint16, w, r []byte) error {
	if f.fail != nil {
		return f.fail
	}
	if addr != Address {
		return errors.New("nack")
	}
	switch {
	case len(w) == 1 && w[0] == cmdStatus:
		r[0] = f.status()
	case len(w) > 0 && w[0] == cmdInitialize:
		f.inits++
		f.calibrated = true
	case len(w) > 0 && w[0] == cmdTrigger:
		f.triggers++
	case len(w) == 0 && len(r) == 7:
		copy(r, f.frame[:])
		r[0] = f.status()
		if f.busyReads > 0 {
			f.busyReads--
		}
	}
	return nil
}

func (f *fakeDev) status() byte {
	var st byte
	if f.calibrated {
		st |= statusCalibrated
	}
	if f.busyReads > 0 {
		st |= statusBusy
	}
	return st
}

// 25 °C, 50 %RH
func frame25() [7]byte {
	const hraw, traw = 0x80000, 0x60000
	return [7]byte{0,
		byte(hraw >> 12), byte(hraw >> 4 & 0xFF),
		byte(hraw&0x0F)<<4 | byte(traw>>16)&0x0F,
		byte(traw >> 8 & 0xFF), byte(traw & 0xFF), 0}
}

func TestInitLoadsCalibrationOnce(t *testing.T) {
	f := &fakeDev{}
	d := New(f)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if f.inits != 1 {
		t.Fatalf("inits = %d", f.inits)
	}
}

func TestInitNotConnected(t *testing.T) {
	d := New(&fakeDev{fail: errors.New("nack")})
	if err := d.Init(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestCollect(t *testing.T) {
	f := &fakeDev{calibrated: true, busyReads: 1, frame: frame25()}
	d := New(f)
	if err := d.Trigger(); err != nil {
		t.Fatal(err)
	}

	var s Sample
	if err := d.Collect(&s); !errors.Is(err, ErrNotReady) {
		t.Fatalf("busy collect err = %v", err)
	}
	if err := d.Collect(&s); err != nil {
		t.Fatal(err)
	}
	if s.Celsius() != 25 || s.RelHumidity() != 50 || s.DeciCelsius() != 250 {
		t.Fatalf("sample = %+v (%.2f °C, %.2f %%)", s, s.Celsius(), s.RelHumidity())
	}
	if d.Last() != s {
		t.Fatalf("last = %+v", d.Last())
	}
}
