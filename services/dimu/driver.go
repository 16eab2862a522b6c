// services/dimu/driver.go
package dimu

import (
	"context"
	"strings"
	"sync/atomic"

	"dimu-go/errcode"
	"dimu-go/services/dimu/internal/alarm"
	"dimu-go/services/dimu/internal/calib"
	"dimu-go/services/dimu/internal/irqbridge"
	"dimu-go/services/dimu/internal/params"
	"dimu-go/services/dimu/internal/sched"
	"dimu-go/services/dimu/sensor"
	"dimu-go/types"
	"dimu-go/x/notice"
	"dimu-go/x/timex"
)

// Timer is a counter peripheral with compare channels and one interrupt line.
type Timer interface {
	alarm.Timer
	Attach(isr func())
}

type (
	Store     = calib.Store
	Allocator = calib.Allocator
	Callback  = alarm.Callback
)

// Fusion consumes update notifications and is reset by tare.
type Fusion interface {
	SensorReady(kind types.UpdateKind)
	ResetBias()
	ResetVels()
}

// Deps are the driver's collaborators. Timer is required.
type Deps struct {
	Timer     Timer
	Sensors   []sensor.Sensor
	Store     Store // nil: calibration persistence disabled
	Fusion    Fusion
	Simulator sensor.Simulator
	Clock     func() uint32 // µs; defaults to a wall clock
	Logger    notice.Logger
	Alloc     Allocator
	Params    *params.Table
}

// Driver owns the timer alarm, the sampling worker and calibration.
type Driver struct {
	cfg  Config
	deps Deps
	log  notice.Logger

	alarm  *alarm.Alarm
	event  *irqbridge.Event
	params *params.Table
	calib  *calib.Controller
	sch    atomic.Pointer[sched.Scheduler] // set once by Init

	healthy []sensor.Sensor
	failed  []string

	started    atomic.Bool
	sensorsReq atomic.Int32 // -1 none, 0 off, 1 on; applied by the worker
	wakes      atomic.Uint32
	startMs    atomic.Int64
	done       chan struct{}

	pub atomic.Pointer[publisher]
}

// New validates cfg and assembles the driver. Nothing touches the hardware
// until Init.
func New(cfg Config, d Deps) (*Driver, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Timer == nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "dimu.new", Msg: "no timer"}
	}
	if d.Logger == nil {
		d.Logger = notice.Discard()
	}
	if d.Clock == nil {
		d.Clock = timex.NewMicros().Now
	}
	if d.Params == nil {
		d.Params = params.NewTable()
	}

	drv := &Driver{
		cfg:    cfg,
		deps:   d,
		log:    d.Logger,
		event:  irqbridge.New(),
		params: d.Params,
		done:   make(chan struct{}),
	}
	drv.sensorsReq.Store(-1)
	drv.alarm = alarm.New(d.Timer, drv.event.Signal)
	drv.calib = calib.New(
		calib.Config{OuterPeriodUs: cfg.OuterPeriodUs, Gravity: cfg.Gravity},
		d.Params,
		calib.Options{Store: d.Store, Alloc: d.Alloc, Logger: d.Logger, OnEvent: drv.onCalib},
	)
	return drv, nil
}

func (d *Driver) Config() Config { return d.cfg }

// Init brings up the sensors, loads calibration, starts the worker and arms
// the periodic tick. The worker stops when ctx is cancelled.
func (d *Driver) Init(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return errcode.Wrap(errcode.AlreadyStarted, "dimu.init", nil)
	}
	d.startMs.Store(timex.NowMs())

	for _, s := range d.deps.Sensors {
		if in, ok := s.(sensor.Initializer); ok {
			if err := in.Init(); err != nil {
				d.log.Warnf("DIMU: %s sensor init failed!", strings.ToUpper(s.Name()))
				d.log.Debugf("DIMU: %s: %v", s.Name(), errcode.Wrap(errcode.SensorInitFailed, "init", err))
				s.Disable()
				d.failed = append(d.failed, s.Name())
				continue
			}
		}
		d.healthy = append(d.healthy, s)
	}

	if d.calib.HasStore() {
		_ = d.calib.Load()
	} else {
		d.log.Warnf("DIMU: no EEPROM, calibration persistence disabled")
	}

	sch := sched.New(
		sched.Config{Divider: d.cfg.Divider(), RoomTemp: d.cfg.RoomTemp},
		sched.Deps{
			Sensors:   d.healthy,
			Consumer:  d.deps.Fusion,
			Calib:     d.calib,
			Simulator: d.deps.Simulator,
			Clock:     d.deps.Clock,
			OnFull:    d.onFull,
		},
	)
	sch.SetSimulation(d.cfg.Sim)
	sch.SetSensorsEnabled(true)
	d.sch.Store(sch)

	go d.worker(ctx, sch)

	d.deps.Timer.Attach(d.alarm.ISR)
	d.alarm.CancelOneShot()
	d.alarm.ArmPeriodic(d.cfg.InnerTicks())

	for _, s := range d.healthy {
		if b, ok := s.(sensor.InitialBiaser); ok {
			b.InitialBias()
		}
		if r, ok := s.(sensor.RestingRater); ok {
			g := r.RestingRate()
			d.log.Debugf("DIMU: %s resting rate %.4f %.4f %.4f rad/s", s.Name(), g[0], g[1], g[2])
		}
	}

	d.log.Infof("DIMU: running, %d sensors (%d failed), tick %dus, full every %d",
		len(d.healthy), len(d.failed), d.cfg.InnerPeriodUs, d.cfg.Divider())
	d.publishState("running", "ok")
	return nil
}

func (d *Driver) worker(ctx context.Context, sch *sched.Scheduler) {
	defer close(d.done)
	defer d.alarm.StopPeriodic()

	for {
		if err := d.event.Wait(ctx); err != nil {
			d.publishState("stopped", "ctx_done")
			return
		}
		d.wakes.Add(1)
		if v := d.sensorsReq.Swap(-1); v >= 0 {
			sch.SetSensorsEnabled(v == 1)
			d.publishState("running", "ok")
		}
		sch.Step()
	}
}

// Done is closed when the worker has exited.
func (d *Driver) Done() <-chan struct{} { return d.done }

// RequestCalibRead asks the worker to reload calibration. It reports false
// when another request is already pending.
func (d *Driver) RequestCalibRead() bool { return d.calib.RequestRead() }

// RequestCalibWrite asks the worker to persist calibration.
func (d *Driver) RequestCalibWrite() bool { return d.calib.RequestWrite() }

// RequestSensors asks the worker to switch sensors on or off at the next tick.
func (d *Driver) RequestSensors(on bool) {
	v := int32(0)
	if on {
		v = 1
	}
	d.sensorsReq.Store(v)
}

// Tare blocks for about a second of full updates. See calib.Controller.Tare.
func (d *Driver) Tare(ctx context.Context) (types.TareResult, error) {
	sch := d.sch.Load()
	if sch == nil {
		return types.TareResult{}, errcode.Wrap(errcode.NotStarted, "dimu.tare", nil)
	}
	return d.calib.Tare(ctx, sch, d.deps.Fusion)
}

// SetAlarm1 runs cb(param) from interrupt context us microseconds from now.
func (d *Driver) SetAlarm1(us uint32, cb Callback, param int) {
	ticks := uint32(uint64(us) * uint64(d.cfg.TimerHz) / 1_000_000)
	d.alarm.ScheduleOneShot(ticks, cb, param)
}

func (d *Driver) CancelAlarm1() { d.alarm.CancelOneShot() }

// Latest returns the newest full-update snapshot.
func (d *Driver) Latest() (types.FullSample, bool) {
	sch := d.sch.Load()
	if sch == nil {
		return types.FullSample{}, false
	}
	return sch.Latest()
}

// LastFullUpdate is the clock value stamped at the last full update.
func (d *Driver) LastFullUpdate() uint32 {
	sch := d.sch.Load()
	if sch == nil {
		return 0
	}
	return sch.LastFullUpdate()
}

// Params returns the live calibration table.
func (d *Driver) Params() *params.Table { return d.params }

// FailedSensors lists sensors whose Init failed. Valid after Init returns.
func (d *Driver) FailedSensors() []string { return append([]string(nil), d.failed...) }

func (d *Driver) Stats() types.DriverStats {
	st := types.DriverStats{
		Wakes:         d.wakes.Load(),
		Coalesced:     d.event.Coalesced(),
		PeriodicFires: d.alarm.PeriodicFires(),
		OneShotFires:  d.alarm.OneShotFires(),
		CalibReads:    d.calib.Reads(),
		CalibWrites:   d.calib.Writes(),
		Tares:         d.calib.Tares(),
	}
	if sch := d.sch.Load(); sch != nil {
		st.Loops = sch.Loops()
		st.FullUpdates = sch.FullUpdates()
		st.SensorsEnabled = sch.SensorsEnabled()
	}
	if ms := d.startMs.Load(); ms != 0 {
		st.UptimeMs = timex.NowMs() - ms
	}
	return st
}
