package dimu

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"dimu-go/bus"
	"dimu-go/drivers/eeprom"
	"dimu-go/drivers/hwtimer"
	"dimu-go/drivers/imu"
	"dimu-go/errcode"
	"dimu-go/services/dimu/internal/params"
	"dimu-go/services/dimu/sensor"
	"dimu-go/services/fusion"
	"dimu-go/types"
)

type harness struct {
	drv    *Driver
	timer  *hwtimer.Sim
	imu    *imu.Sim
	dev    *eeprom.MemDevice
	fusion *fusion.Notifier
	hook   *test.Hook
	cancel context.CancelFunc
}

// testConfig uses long periods so a tare needs only a few dozen ticks.
func testConfig() Config {
	c := DefaultConfig()
	c.InnerPeriodUs = 25000
	c.OuterPeriodUs = 50000
	return c
}

func newHarness(t *testing.T, cfg Config, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{timer: hwtimer.NewSim(16), dev: eeprom.NewMemDevice(8192, 4096)}
	h.imu = imu.NewSim(imu.SimConfig{
		AccBias: [3]float32{0.1, -0.2, 0.3},
		GyoBias: [3]float32{0.01, 0.02, -0.03},
		TempC:   24,
	})
	store, err := eeprom.New(h.dev, cfg.WithDefaults().EEPROMBlockSize)
	if err != nil {
		t.Fatal(err)
	}
	logger, hook := test.NewNullLogger()
	h.hook = hook
	h.fusion = fusion.New(nil, fusion.Config{})

	deps := Deps{
		Timer:   h.timer,
		Sensors: []sensor.Sensor{h.imu},
		Store:   store,
		Fusion:  h.fusion,
		Logger:  logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	drv, err := New(cfg, deps)
	if err != nil {
		t.Fatal(err)
	}
	h.drv = drv
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(func() {
		cancel()
		select {
		case <-drv.Done():
		case <-time.After(time.Second):
			t.Error("worker did not stop")
		}
	})
	if err := drv.Init(ctx); err != nil {
		t.Fatal(err)
	}
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(200 * time.Microsecond)
	}
}

// tick advances the timer one inner period and waits for the worker.
func (h *harness) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		want := h.drv.Stats().Loops + 1
		h.timer.Advance(int(h.drv.Config().InnerTicks()))
		waitFor(t, "worker step", func() bool { return h.drv.Stats().Loops >= want })
	}
}

func TestDriverRunsTwoRateLoop(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.tick(t, 8)

	st := h.drv.Stats()
	if st.Loops != 8 || st.FullUpdates != 4 || st.PeriodicFires != 8 {
		t.Fatalf("stats = %+v", st)
	}
	if !st.SensorsEnabled {
		t.Fatal("sensors not enabled after init")
	}
	rate, full, _, _ := h.fusion.Counts()
	if rate != 8 || full != 4 {
		t.Fatalf("fusion notified rate=%d full=%d", rate, full)
	}
	smp, ok := h.drv.Latest()
	if !ok || math.Abs(float64(smp.Acc[2])-(imu.StandardGravity+0.3)) > 1e-4 {
		t.Fatalf("latest = %+v", smp)
	}
	if smp.Temp != 24 || smp.DTemp != 4 {
		t.Fatalf("temperature terms = %v/%v", smp.Temp, smp.DTemp)
	}
	if h.drv.LastFullUpdate() != smp.Stamp {
		t.Fatal("last full update stamp mismatch")
	}
}

func TestDriverCalibrationWriteAndRead(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.drv.Params().Set(params.MagBiasY, 12.5)

	if !h.drv.RequestCalibWrite() {
		t.Fatal("write request refused")
	}
	if h.drv.RequestCalibRead() {
		t.Fatal("read accepted while write pending")
	}
	h.tick(t, 1)
	if h.drv.Stats().CalibWrites != 1 {
		t.Fatal("write not serviced on next tick")
	}
	if !bytes.HasPrefix(h.dev.Bytes(), []byte("IMU_ACC_BIAS_X\t")) {
		t.Fatalf("eeprom starts with %q", h.dev.Bytes()[:20])
	}

	h.drv.Params().Set(params.MagBiasY, 0)
	if !h.drv.RequestCalibRead() {
		t.Fatal("read request refused")
	}
	h.tick(t, 1)
	if got := h.drv.Params().Get(params.MagBiasY); got != 12.5 {
		t.Fatalf("MagBiasY = %v after read", got)
	}
	if !h.drv.Stats().SensorsEnabled {
		t.Fatal("sensors left disabled after calibration I/O")
	}
}

func TestDriverTare(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.drv.Params().Set(params.AccScalZ, 1.1)

	type result struct {
		res types.TareResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := h.drv.Tare(context.Background())
		done <- result{r, err}
	}()

	var r result
	for i := 0; ; i++ {
		if i > 200 {
			t.Fatal("tare did not finish")
		}
		select {
		case r = <-done:
		default:
			h.tick(t, 1)
			continue
		}
		break
	}
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.res.Samples != 10 {
		t.Fatalf("samples = %d", r.res.Samples)
	}
	p := h.drv.Params()
	want := map[params.ID]float32{
		params.AccBiasX: -0.1, params.AccBiasY: 0.2, params.AccBiasZ: -0.3,
		params.GyoBiasX: -0.01, params.GyoBiasY: -0.02, params.GyoBiasZ: 0.03,
		params.AccScalZ: 1,
	}
	for id, w := range want {
		if math.Abs(float64(p.Get(id)-w)) > 1e-4 {
			t.Fatalf("%s = %v, want %v", id, p.Get(id), w)
		}
	}
	if _, _, bias, vels := h.fusion.Counts(); bias != 1 || vels != 1 {
		t.Fatalf("fusion resets = %d/%d", bias, vels)
	}
}

func TestDriverSensorInitFailure(t *testing.T) {
	bad := imu.NewSim(imu.SimConfig{})
	bad.FailInit(errors.New("i2c nack"))
	h := newHarness(t, testConfig(), func(d *Deps) {
		d.Sensors = append(d.Sensors, bad)
	})

	if got := h.drv.FailedSensors(); len(got) != 1 || got[0] != "sim" {
		t.Fatalf("failed = %v", got)
	}
	found := false
	for _, e := range h.hook.AllEntries() {
		if e.Message == "DIMU: SIM sensor init failed!" {
			found = true
		}
	}
	if !found {
		t.Fatal("missing init failure notice")
	}

	h.tick(t, 2)
	if bad.Enabled() {
		t.Fatal("failed sensor was enabled")
	}
	if r, _, _ := bad.Counts(); r != 0 {
		t.Fatalf("failed sensor decoded %d times", r)
	}
}

func TestDriverLifecycleErrors(t *testing.T) {
	drv, err := New(testConfig(), Deps{Timer: hwtimer.NewSim(16)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := drv.Tare(context.Background()); errcode.Of(err) != errcode.NotStarted {
		t.Fatalf("tare before init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := drv.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := drv.Init(ctx); errcode.Of(err) != errcode.AlreadyStarted {
		t.Fatalf("second init: %v", err)
	}
	cancel()
	select {
	case <-drv.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	if _, err := New(testConfig(), Deps{}); errcode.Of(err) != errcode.InvalidConfig {
		t.Fatalf("missing timer: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want errcode.Code
	}{
		{"defaults", func(*Config) {}, errcode.OK},
		{"outer not multiple", func(c *Config) { c.OuterPeriodUs = 6000 }, errcode.InvalidPeriod},
		{"outer shorter", func(c *Config) { c.OuterPeriodUs = 1000 }, errcode.InvalidPeriod},
		{"inner past counter", func(c *Config) { c.InnerPeriodUs, c.OuterPeriodUs = 70000, 70000 }, errcode.InvalidPeriod},
		{"zero ticks", func(c *Config) { c.TimerHz, c.InnerPeriodUs, c.OuterPeriodUs = 100, 2500, 5000 }, errcode.InvalidPeriod},
		{"counter bits", func(c *Config) { c.CounterBits = 40 }, errcode.InvalidConfig},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.mut(&cfg)
		if got := errcode.Of(cfg.Validate()); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}

	cfg, err := DecodeConfig(map[string]any{"inner_period_us": 1000.0, "outer_period_us": 4000.0, "sim": true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Divider() != 4 || cfg.TimerHz != DefaultTimerHz || !cfg.Sim {
		t.Fatalf("decoded = %+v", cfg)
	}
	if _, err := DecodeConfig(`{"inner_period_us": "x"}`); errcode.Of(err) != errcode.InvalidPayload {
		t.Fatalf("bad payload: %v", err)
	}
}

func TestConfigRoomTempZero(t *testing.T) {
	cfg, err := DecodeConfig(`{"room_temp": 0}`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoomTemp != 0 {
		t.Fatalf("explicit 0 °C replaced by %v", cfg.RoomTemp)
	}
	if cfg.WithDefaults().RoomTemp != 0 {
		t.Fatal("WithDefaults replaced 0 °C")
	}

	cfg, err = DecodeConfig(`{}`)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoomTemp != DefaultRoomTemp {
		t.Fatalf("absent room_temp = %v, want %v", cfg.RoomTemp, DefaultRoomTemp)
	}

	cfg, err = DecodeConfig(map[string]any{"room_temp": -5.0})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoomTemp != -5 {
		t.Fatalf("room_temp = %v", cfg.RoomTemp)
	}
}

func TestDriverOneShotAlarm(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	fired := make(chan int, 1)
	h.drv.SetAlarm1(1000, func(p int) { fired <- p }, 42)

	h.timer.Advance(999)
	select {
	case <-fired:
		t.Fatal("fired early")
	default:
	}
	h.timer.Advance(1)
	select {
	case p := <-fired:
		if p != 42 {
			t.Fatalf("param = %d", p)
		}
	default:
		t.Fatal("one-shot did not fire")
	}

	h.drv.SetAlarm1(1000, func(p int) { fired <- p }, 1)
	h.drv.CancelAlarm1()
	h.timer.Advance(2000)
	select {
	case <-fired:
		t.Fatal("cancelled alarm fired")
	default:
	}
}

func TestServeControlPlane(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	b := bus.NewBus(16)
	srv := b.NewConnection("dimu")
	cli := b.NewConnection("cli")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.drv.Serve(ctx, srv, ServeOptions{SampleEvery: 1}) }()

	stateSub := cli.Subscribe(bus.T("dimu", "state"))
	select {
	case m := <-stateSub.Channel():
		if st := m.Payload.(types.DimuState); st.Level != "running" {
			t.Fatalf("state = %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no retained state")
	}

	request := func(verb string, payload any) types.Reply {
		t.Helper()
		rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
		defer rcancel()
		r, err := cli.RequestWait(rctx, cli.NewMessage(bus.T("dimu", "control", verb), payload, false))
		if err != nil {
			t.Fatalf("%s: %v", verb, err)
		}
		return r.Payload.(types.Reply)
	}

	if r := request(CtrlCalibWrite, nil); !r.OK {
		t.Fatalf("calib_write: %+v", r)
	}
	if r := request(CtrlCalibRead, nil); r.OK || r.Code != string(errcode.Busy) {
		t.Fatalf("calib_read while pending: %+v", r)
	}
	if r := request("bogus", nil); r.Code != string(errcode.InvalidTopic) {
		t.Fatalf("bogus: %+v", r)
	}
	if r := request(CtrlSensors, "not json"); r.Code != string(errcode.InvalidPayload) {
		t.Fatalf("sensors bad payload: %+v", r)
	}

	calibSub := cli.Subscribe(bus.T("dimu", "calib"))
	sampleSub := cli.Subscribe(bus.T("dimu", "sample"))
	h.tick(t, 2)

	select {
	case m := <-calibSub.Channel():
		ev := m.Payload.(types.CalibEvent)
		if ev.Op != types.CalibWrite || !ev.OK {
			t.Fatalf("calib event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no calib event")
	}
	select {
	case <-sampleSub.Channel():
	case <-time.After(time.Second):
		t.Fatal("no sample published")
	}

	if r := request(CtrlSensors, types.SensorsSet{Enabled: false}); !r.OK {
		t.Fatalf("sensors off: %+v", r)
	}
	h.tick(t, 1)
	if h.drv.Stats().SensorsEnabled {
		t.Fatal("sensors still enabled")
	}
	if r := request(CtrlStats, nil); !r.OK || r.Payload.(types.DriverStats).Loops != 3 {
		t.Fatalf("stats: %+v", r)
	}
	if r := request(CtrlParams, nil); len(r.Payload.(map[string]float32)) != int(params.Count) {
		t.Fatalf("params: %+v", r)
	}
}

func hasNotice(h *test.Hook, msg string) bool {
	for _, e := range h.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func TestDriverWithoutPersistence(t *testing.T) {
	h := newHarness(t, testConfig(), func(d *Deps) { d.Store = nil })
	if !hasNotice(h.hook, "DIMU: no EEPROM, calibration persistence disabled") {
		t.Fatalf("no init notice; entries = %v", h.hook.AllEntries())
	}

	b := bus.NewBus(16)
	cli := b.NewConnection("cli")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.drv.Serve(ctx, b.NewConnection("dimu"), ServeOptions{}) }()
	stateSub := cli.Subscribe(bus.T("dimu", "state"))
	select {
	case <-stateSub.Channel():
	case <-time.After(time.Second):
		t.Fatal("no retained state")
	}

	rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
	defer rcancel()
	for _, verb := range []string{CtrlCalibWrite, CtrlCalibRead} {
		r, err := cli.RequestWait(rctx, cli.NewMessage(bus.T("dimu", "control", verb), nil, false))
		if err != nil {
			t.Fatalf("%s: %v", verb, err)
		}
		if rep := r.Payload.(types.Reply); rep.OK || rep.Code != string(errcode.PersistenceUnavailable) {
			t.Fatalf("%s reply = %+v", verb, rep)
		}
	}

	// A request posted directly is consumed, reported and dropped.
	calibSub := cli.Subscribe(bus.T("dimu", "calib"))
	if !h.drv.RequestCalibWrite() {
		t.Fatal("request not posted")
	}
	h.tick(t, 2)
	select {
	case m := <-calibSub.Channel():
		ev := m.Payload.(types.CalibEvent)
		if ev.Op != types.CalibWrite || ev.OK || ev.Code != string(errcode.PersistenceUnavailable) {
			t.Fatalf("calib event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no calib event")
	}
	if !hasNotice(h.hook, "DIMU: no EEPROM, calibration write ignored") {
		t.Fatal("no notice for the dropped write")
	}
	st := h.drv.Stats()
	if st.CalibWrites != 0 || !st.SensorsEnabled {
		t.Fatalf("stats = %+v", st)
	}
	if !h.drv.RequestCalibWrite() {
		t.Fatal("flag not cleared after the dropped write")
	}
}
