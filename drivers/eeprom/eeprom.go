// Package eeprom provides a block-oriented parameter store over a
// byte-addressable, erasable device (MCU flash, RAM, or a host file).
//
// The store mirrors the classic EEPROM driver cycle:
//
//	buf, err := s.OpenRead()     // buffer is one block long
//	for n, _ := s.Read(); n > 0; n, _ = s.Read() { use(buf[:n]) }
//	s.Close()
//
//	buf, err := s.OpenWrite()    // erases the spare slot
//	copy(buf, data); s.Write()   // repeat per block
//	s.Close()                    // commits unless a Write failed
//
// When the device holds two erase-aligned slots, writes alternate between
// them and the last block of each slot carries a commit record with a
// sequence number. Readers use the newest committed slot, so a write that
// fails or is cut short leaves the previous image in place. A device with
// room for one slot only is erased in place.
//
// Erased bytes read as 0xFF. Unused tail bytes of a written block are left
// erased, so readers see the stream end at the first 0xFF.
package eeprom

import (
	"encoding/binary"
	"errors"

	"dimu-go/errcode"
)

// Erased is the value of an erased byte.
const Erased = 0xFF

// BlockDevice matches the TinyGo machine.BlockDevice contract.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, len int64) error
}

var (
	ErrNotOpen  = errors.New("eeprom: not open")
	ErrBusy     = errors.New("eeprom: already open")
	ErrNoDevice = errors.New("eeprom: no device")
	ErrBlock    = errors.New("eeprom: bad block size")
)

type mode uint8

const (
	modeClosed mode = iota
	modeRead
	modeWrite
)

// commit record: magic, seq, ^seq (little endian).
var commitMagic = [4]byte{'D', 'C', 'A', 'L'}

const commitLen = 12

// Store is not safe for concurrent use; the driver's worker is its only user.
type Store struct {
	dev   BlockDevice
	slot  int64 // slot length, a multiple of the erase and write block sizes
	slots int   // 1 or 2
	bs    int
	buf   []byte

	base   int64 // start of the open slot
	off    int64 // offset within the open slot
	seq    uint32
	mode   mode
	end    bool
	failed bool
}

// New creates a store reading and writing bs-byte blocks. bs must divide
// into the device's write block size evenly.
func New(dev BlockDevice, bs int) (*Store, error) {
	if dev == nil {
		return nil, errcode.Wrap(errcode.PersistenceUnavailable, "eeprom.new", ErrNoDevice)
	}
	if bs < commitLen || (dev.WriteBlockSize() > 0 && int64(bs)%dev.WriteBlockSize() != 0) {
		return nil, errcode.Wrap(errcode.InvalidConfig, "eeprom.new", ErrBlock)
	}
	align := func(n int64) int64 {
		if eb := dev.EraseBlockSize(); eb > 0 {
			n -= n % eb
		}
		return n - n%int64(bs)
	}
	s := &Store{dev: dev, bs: bs, buf: make([]byte, bs)}
	// Each slot needs a data block and a commit block.
	if half := align(dev.Size() / 2); half >= 2*int64(bs) {
		s.slot, s.slots = half, 2
	} else if whole := align(dev.Size()); whole >= 2*int64(bs) {
		s.slot, s.slots = whole, 1
	} else {
		return nil, errcode.Wrap(errcode.InvalidConfig, "eeprom.new", ErrBlock)
	}
	return s, nil
}

func (s *Store) BlockSize() int { return s.bs }

// Capacity is the number of data bytes one write can hold.
func (s *Store) Capacity() int64 { return s.slot - int64(s.bs) }

// Slots reports how many image slots the device holds.
func (s *Store) Slots() int { return s.slots }

// commitOf reads the commit record of slot i.
func (s *Store) commitOf(i int) (seq uint32, ok bool, err error) {
	var rec [commitLen]byte
	if _, err := s.dev.ReadAt(rec[:], int64(i)*s.slot+s.Capacity()); err != nil {
		return 0, false, err
	}
	if [4]byte(rec[:4]) != commitMagic {
		return 0, false, nil
	}
	seq = binary.LittleEndian.Uint32(rec[4:])
	return seq, ^seq == binary.LittleEndian.Uint32(rec[8:]), nil
}

// current returns the newest committed slot and its sequence number. With
// nothing committed it returns slot 0, which may hold an uncommitted image.
func (s *Store) current() (slot int, seq uint32, committed bool, err error) {
	for i := 0; i < s.slots; i++ {
		q, ok, err := s.commitOf(i)
		if err != nil {
			return 0, 0, false, err
		}
		if ok && (!committed || int32(q-seq) > 0) {
			slot, seq, committed = i, q, true
		}
	}
	return slot, seq, committed, nil
}

// OpenRead rewinds to the start of the newest image and returns the block
// buffer that Read fills.
func (s *Store) OpenRead() ([]byte, error) {
	if s.mode != modeClosed {
		return nil, errcode.Wrap(errcode.Busy, "eeprom.open_read", ErrBusy)
	}
	slot, _, _, err := s.current()
	if err != nil {
		return nil, errcode.Wrap(errcode.PersistenceUnavailable, "eeprom.open_read", err)
	}
	s.mode, s.base, s.off, s.end = modeRead, int64(slot)*s.slot, 0, false
	return s.buf, nil
}

// Read loads the next block into the buffer and returns its length. It
// returns 0 after the block holding the stream terminator, or at the end of
// the image.
func (s *Store) Read() (int, error) {
	if s.mode != modeRead {
		return 0, errcode.Wrap(errcode.PersistenceFailed, "eeprom.read", ErrNotOpen)
	}
	if s.end || s.off >= s.Capacity() {
		return 0, nil
	}
	n, err := s.dev.ReadAt(s.buf, s.base+s.off)
	if err != nil {
		s.end = true
		return 0, errcode.Wrap(errcode.PersistenceFailed, "eeprom.read", err)
	}
	s.off += int64(n)
	for _, b := range s.buf[:n] {
		if b == Erased || b == 0 {
			s.end = true
			break
		}
	}
	return n, nil
}

// OpenWrite erases the slot not holding the current image and returns the
// block buffer that Write flushes. The buffer starts erased.
func (s *Store) OpenWrite() ([]byte, error) {
	if s.mode != modeClosed {
		return nil, errcode.Wrap(errcode.Busy, "eeprom.open_write", ErrBusy)
	}
	slot, seq, committed, err := s.current()
	if err != nil {
		return nil, errcode.Wrap(errcode.PersistenceUnavailable, "eeprom.open_write", err)
	}
	target := 0
	if s.slots == 2 {
		target = 1 - slot
		if !committed {
			// Keep an uncommitted image in slot 0 until the new one commits.
			var first [1]byte
			if _, err := s.dev.ReadAt(first[:], 0); err != nil {
				return nil, errcode.Wrap(errcode.PersistenceUnavailable, "eeprom.open_write", err)
			}
			if first[0] == Erased {
				target = 0
			}
		}
	}
	eb := s.dev.EraseBlockSize()
	if eb <= 0 {
		eb = int64(s.bs)
	}
	base := int64(target) * s.slot
	if err := s.dev.EraseBlocks(base/eb, s.slot/eb); err != nil {
		return nil, errcode.Wrap(errcode.PersistenceUnavailable, "eeprom.open_write", err)
	}
	s.mode, s.base, s.off, s.seq, s.failed = modeWrite, base, 0, seq+1, false
	fill(s.buf)
	return s.buf, nil
}

// Write flushes the whole buffer as the next block and re-erases the buffer.
// After a failed Write, Close discards the image.
func (s *Store) Write() error {
	if s.mode != modeWrite {
		return errcode.Wrap(errcode.PersistenceFailed, "eeprom.write", ErrNotOpen)
	}
	if s.off+int64(s.bs) > s.Capacity() {
		s.failed = true
		return &errcode.E{C: errcode.PersistenceFailed, Op: "eeprom.write", Msg: "region full"}
	}
	if _, err := s.dev.WriteAt(s.buf, s.base+s.off); err != nil {
		s.failed = true
		return errcode.Wrap(errcode.PersistenceFailed, "eeprom.write", err)
	}
	s.off += int64(s.bs)
	fill(s.buf)
	return nil
}

// Close ends the current read or write. Closing a write that had no failed
// Write commits the new image. Closing a closed store is a no-op.
func (s *Store) Close() error {
	m, failed := s.mode, s.failed
	s.mode, s.off, s.failed = modeClosed, 0, false
	if m != modeWrite || failed {
		return nil
	}
	fill(s.buf)
	copy(s.buf, commitMagic[:])
	binary.LittleEndian.PutUint32(s.buf[4:], s.seq)
	binary.LittleEndian.PutUint32(s.buf[8:], ^s.seq)
	_, err := s.dev.WriteAt(s.buf, s.base+s.Capacity())
	fill(s.buf)
	if err != nil {
		return errcode.Wrap(errcode.PersistenceFailed, "eeprom.commit", err)
	}
	return nil
}

// Written reports the bytes flushed since OpenWrite.
func (s *Store) Written() int64 {
	if s.mode != modeWrite {
		return 0
	}
	return s.off
}

func fill(b []byte) {
	for i := range b {
		b[i] = Erased
	}
}
