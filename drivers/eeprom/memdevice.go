package eeprom

import (
	"errors"
	"io"
	"sync"
)

var ErrRange = errors.New("eeprom: out of range")

// MemDevice is a RAM-backed BlockDevice that starts erased.
type MemDevice struct {
	mu    sync.Mutex
	data  []byte
	erase int64

	// Fail, when set, is returned by every operation.
	Fail error
}

func NewMemDevice(size, eraseBlock int) *MemDevice {
	d := &MemDevice{data: make([]byte, size), erase: int64(eraseBlock)}
	fill(d.data)
	return d
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return 0, d.Fail
	}
	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	return n, nil
}

// WriteAt programs bytes the way NOR flash does: bits can only be cleared.
func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return 0, d.Fail
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, ErrRange
	}
	for i, b := range p {
		d.data[off+int64(i)] &= b
	}
	return len(p), nil
}

func (d *MemDevice) Size() int64           { return int64(len(d.data)) }
func (d *MemDevice) WriteBlockSize() int64 { return 1 }
func (d *MemDevice) EraseBlockSize() int64 { return d.erase }

func (d *MemDevice) EraseBlocks(start, n int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Fail != nil {
		return d.Fail
	}
	lo, hi := start*d.erase, (start+n)*d.erase
	if lo < 0 || hi > int64(len(d.data)) {
		return ErrRange
	}
	fill(d.data[lo:hi])
	return nil
}

// Bytes returns a copy of the device contents.
func (d *MemDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}
