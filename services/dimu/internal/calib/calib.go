// services/dimu/internal/calib/calib.go
package calib

import (
	"context"
	"sync"
	"sync/atomic"

	"dimu-go/errcode"
	"dimu-go/services/dimu/internal/params"
	"dimu-go/services/dimu/internal/sched"
	"dimu-go/types"
	"dimu-go/x/notice"
	"dimu-go/x/timex"
)

// Request is the pending persistence operation.
type Request uint32

const (
	None Request = iota
	Read
	Write
)

func (r Request) String() string {
	switch r {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "none"
	}
}

// Store is the block-oriented persistence medium.
type Store interface {
	OpenRead() ([]byte, error)
	Read() (int, error)
	OpenWrite() ([]byte, error)
	Write() error
	Close() error
}

// Allocator hands out a scratch buffer of n bytes, or false when memory is
// short.
type Allocator func(n int) ([]byte, bool)

// HeapAlloc is the default Allocator.
func HeapAlloc(n int) ([]byte, bool) { return make([]byte, n), true }

// Source supplies full-update snapshots for tare.
type Source interface {
	Latest() (types.FullSample, bool)
	WaitFull(ctx context.Context, seq uint32) (types.FullSample, error)
}

// Resetter is the attitude estimator side of tare.
type Resetter interface {
	ResetBias()
	ResetVels()
}

type Config struct {
	OuterPeriodUs uint32
	Gravity       float32
}

type Options struct {
	Store  Store // nil: reads and writes are no-ops
	Alloc  Allocator
	Logger notice.Logger
	// OnEvent runs after each read, write or tare.
	OnEvent func(types.CalibEvent)
}

// Controller owns the calibration request flag, persistence and tare.
type Controller struct {
	cfg    Config
	tbl    *params.Table
	store  Store
	alloc  Allocator
	log    notice.Logger
	event  func(types.CalibEvent)
	req    atomic.Uint32
	tareMu sync.Mutex

	reads, writes, tares atomic.Uint32
}

func New(cfg Config, tbl *params.Table, o Options) *Controller {
	if o.Alloc == nil {
		o.Alloc = HeapAlloc
	}
	if o.Logger == nil {
		o.Logger = notice.Discard()
	}
	return &Controller{cfg: cfg, tbl: tbl, store: o.Store, alloc: o.Alloc, log: o.Logger, event: o.OnEvent}
}

func (c *Controller) Params() *params.Table { return c.tbl }

// RequestRead posts a read unless another request is pending.
func (c *Controller) RequestRead() bool {
	return c.req.CompareAndSwap(uint32(None), uint32(Read))
}

// RequestWrite posts a write unless another request is pending.
func (c *Controller) RequestWrite() bool {
	return c.req.CompareAndSwap(uint32(None), uint32(Write))
}

// HasStore reports whether reads and writes reach a persistence medium.
func (c *Controller) HasStore() bool { return c.store != nil }

func (c *Controller) Pending() bool { return Request(c.req.Load()) != None }

// Service runs the pending request with sensors disabled around the I/O.
// It is called from the sampling worker between ticks.
func (c *Controller) Service(en sched.Enabler) {
	rw := Request(c.req.Swap(uint32(None)))
	if rw == None {
		return
	}
	if c.store == nil {
		c.log.Warnf("DIMU: no EEPROM, calibration %s ignored", rw)
		c.emit(types.CalibOp(rw.String()), errcode.Wrap(errcode.PersistenceUnavailable, "calib."+rw.String(), nil))
		return
	}

	en.SetSensorsEnabled(false)
	var err error
	switch rw {
	case Read:
		err = c.readCalib()
	case Write:
		err = c.writeCalib()
	}
	en.SetSensorsEnabled(true)

	c.emit(types.CalibOp(rw.String()), err)
}

// Load reads the stored calibration once at init.
func (c *Controller) Load() error {
	if c.store == nil {
		return errcode.PersistenceUnavailable
	}
	err := c.readCalib()
	c.emit(types.CalibRead, err)
	return err
}

func (c *Controller) readCalib() error {
	buf, err := c.store.OpenRead()
	if err != nil {
		c.log.Warnf("DIMU: cannot read EEPROM parameters!")
		return errcode.Wrap(errcode.PersistenceUnavailable, "calib.read", err)
	}
	defer c.store.Close()

	p := params.NewParser(c.tbl)
	for {
		n, err := c.store.Read()
		if err != nil {
			c.log.Warnf("DIMU: cannot read EEPROM parameters!")
			return errcode.Wrap(errcode.PersistenceFailed, "calib.read", err)
		}
		if n == 0 || !p.Feed(buf[:n]) {
			break
		}
	}
	p.Flush()

	c.reads.Add(1)
	c.log.Infof("DIMU: read calibration parameters from EEPROM")
	c.log.Debugf("DIMU: %d parameters applied, %d skipped", p.Applied(), p.Skipped())
	return nil
}

func (c *Controller) writeCalib() error {
	line, ok := c.alloc(params.MaxLine)
	if !ok || len(line) < params.MaxLine {
		c.log.Errorf("DIMU: Error writing to EEPROM, cannot allocate memory.")
		return errcode.Wrap(errcode.OutOfMemory, "calib.write", nil)
	}

	buf, err := c.store.OpenWrite()
	if err != nil {
		c.log.Errorf("DIMU: cannot write EEPROM parameters!")
		return errcode.Wrap(errcode.PersistenceUnavailable, "calib.write", err)
	}
	if err := c.fill(buf, line); err != nil {
		_ = c.store.Close()
		return c.writeFailed(err)
	}
	if err := c.store.Close(); err != nil {
		return c.writeFailed(err)
	}

	c.writes.Add(1)
	c.log.Infof("DIMU: wrote calibration parameters to EEPROM")
	return nil
}

// fill streams the parameter text through the store's block buffer.
func (c *Controller) fill(buf, line []byte) error {
	k := 0
	for _, id := range params.Order() {
		n := params.Format(line, c.tbl, id)
		for j := 0; j < n; j++ {
			buf[k] = line[j]
			k++
			if k == len(buf) {
				if err := c.store.Write(); err != nil {
					return err
				}
				k = 0
			}
		}
	}
	if k != 0 {
		return c.store.Write()
	}
	return nil
}

func (c *Controller) writeFailed(err error) error {
	c.log.Errorf("DIMU: Error writing to EEPROM: %v", err)
	return errcode.Wrap(errcode.PersistenceFailed, "calib.write", err)
}

// Tare zeroes the accelerometer and gyroscope calibration, lets the averages
// settle for half a second of full updates, then sets the biases from the
// mean of the next half second. The vehicle must be level and still.
func (c *Controller) Tare(ctx context.Context, src Source, fusion Resetter) (types.TareResult, error) {
	if !c.tareMu.TryLock() {
		return types.TareResult{}, errcode.Wrap(errcode.Busy, "calib.tare", nil)
	}
	defer c.tareMu.Unlock()

	res, err := c.tare(ctx, src, fusion)
	c.emit(types.CalibTare, err)
	return res, err
}

func (c *Controller) tare(ctx context.Context, src Source, fusion Resetter) (types.TareResult, error) {
	samples := 1
	if c.cfg.OuterPeriodUs > 0 {
		samples = max(1, int(500_000/c.cfg.OuterPeriodUs))
	}

	c.tbl.ResetNeutral(params.GroupAcc, params.GroupGyo)

	var seq uint32
	if last, ok := src.Latest(); ok {
		seq = last.Seq
	}
	next := func() (types.FullSample, error) {
		smp, err := src.WaitFull(ctx, seq)
		if err != nil {
			return smp, errcode.Wrap(errcode.TareAborted, "calib.tare", err)
		}
		seq = smp.Seq
		return smp, nil
	}

	for i := 0; i < samples; i++ {
		if _, err := next(); err != nil {
			return types.TareResult{}, err
		}
	}

	var acc, gyo [3]float64
	for i := 0; i < samples; i++ {
		smp, err := next()
		if err != nil {
			return types.TareResult{}, err
		}
		for j := 0; j < 3; j++ {
			acc[j] += float64(smp.Acc[j])
			gyo[j] += float64(smp.Gyo[j])
		}
	}

	n := float64(samples)
	res := types.TareResult{Samples: samples}
	res.AccBias = [3]float32{
		float32(-acc[0] / n),
		float32(-acc[1] / n),
		float32(float64(c.cfg.Gravity) - acc[2]/n),
	}
	res.GyoBias = [3]float32{float32(-gyo[0] / n), float32(-gyo[1] / n), float32(-gyo[2] / n)}

	for j := 0; j < 3; j++ {
		c.tbl.Set(params.AccBiasX+params.ID(j), res.AccBias[j])
		c.tbl.Set(params.GyoBiasX+params.ID(j), res.GyoBias[j])
	}

	if fusion != nil {
		fusion.ResetBias()
		fusion.ResetVels()
	}
	c.tares.Add(1)
	c.log.Infof("DIMU: tare complete over %d samples", samples)
	return res, nil
}

func (c *Controller) emit(op types.CalibOp, err error) {
	if c.event == nil {
		return
	}
	ev := types.CalibEvent{Op: op, OK: err == nil, TS: timex.NowMs()}
	if err != nil {
		ev.Code = string(errcode.Of(err))
		ev.Error = err.Error()
	}
	c.event(ev)
}

func (c *Controller) Reads() uint32  { return c.reads.Load() }
func (c *Controller) Writes() uint32 { return c.writes.Load() }
func (c *Controller) Tares() uint32  { return c.tares.Load() }
