package eeprom

import (
	"io"
	"os"
)

// FileDevice is a host file used as an erasable device. A new file is
// created erased at the requested size.
type FileDevice struct {
	f     *os.File
	size  int64
	erase int64
}

func OpenFile(path string, size, eraseBlock int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d := &FileDevice{f: f, size: int64(size), erase: int64(eraseBlock)}
	if st.Size() < d.size {
		blank := make([]byte, d.size-st.Size())
		fill(blank)
		if _, err := f.WriteAt(blank, st.Size()); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	if off >= d.size {
		return 0, io.EOF
	}
	if room := d.size - off; int64(len(p)) > room {
		p = p[:room]
	}
	return d.f.ReadAt(p, off)
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > d.size {
		return 0, ErrRange
	}
	return d.f.WriteAt(p, off)
}

func (d *FileDevice) Size() int64           { return d.size }
func (d *FileDevice) WriteBlockSize() int64 { return 1 }
func (d *FileDevice) EraseBlockSize() int64 { return d.erase }

func (d *FileDevice) EraseBlocks(start, n int64) error {
	lo, hi := start*d.erase, (start+n)*d.erase
	if lo < 0 || hi > d.size {
		return ErrRange
	}
	blank := make([]byte, hi-lo)
	fill(blank)
	_, err := d.f.WriteAt(blank, lo)
	return err
}

func (d *FileDevice) Close() error { return d.f.Close() }
