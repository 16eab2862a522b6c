package calib

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"dimu-go/drivers/eeprom"
	"dimu-go/errcode"
	"dimu-go/services/dimu/internal/params"
	"dimu-go/types"
)

// journal records the order of enabler and store calls.
type journal struct{ ops []string }

func (j *journal) add(op string) { j.ops = append(j.ops, op) }

type recEnabler struct{ j *journal }

func (r recEnabler) SetSensorsEnabled(on bool) {
	if on {
		r.j.add("enable")
	} else {
		r.j.add("disable")
	}
}

// recStore wraps a real store and journals every call.
type recStore struct {
	j *journal
	s *eeprom.Store
}

func (r recStore) OpenRead() ([]byte, error)  { r.j.add("open_read"); return r.s.OpenRead() }
func (r recStore) Read() (int, error)         { r.j.add("read"); return r.s.Read() }
func (r recStore) OpenWrite() ([]byte, error) { r.j.add("open_write"); return r.s.OpenWrite() }
func (r recStore) Write() error               { r.j.add("write"); return r.s.Write() }
func (r recStore) Close() error               { r.j.add("close"); return r.s.Close() }

func newStore(t *testing.T) *eeprom.Store {
	t.Helper()
	s, err := eeprom.New(eeprom.NewMemDevice(8192, 4096), 256)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRequestIdempotence(t *testing.T) {
	c := New(Config{}, params.NewTable(), Options{})
	if c.Pending() {
		t.Fatal("pending at start")
	}
	if !c.RequestWrite() {
		t.Fatal("first request refused")
	}
	if c.RequestRead() || c.RequestWrite() {
		t.Fatal("second request accepted while one is pending")
	}
	if Request(c.req.Load()) != Write {
		t.Fatalf("request = %v, want write", Request(c.req.Load()))
	}

	c.Service(recEnabler{&journal{}})
	if c.Pending() {
		t.Fatal("request not cleared by Service")
	}
	if !c.RequestRead() {
		t.Fatal("request refused after service")
	}
}

func TestServiceBracketsIOWithSensorsDisabled(t *testing.T) {
	j := &journal{}
	c := New(Config{}, params.NewTable(), Options{Store: recStore{j, newStore(t)}})

	c.RequestWrite()
	c.Service(recEnabler{j})
	if j.ops[0] != "disable" || j.ops[len(j.ops)-1] != "enable" {
		t.Fatalf("ops = %v", j.ops)
	}
	if j.ops[1] != "open_write" || j.ops[len(j.ops)-2] != "close" {
		t.Fatalf("write not bracketed: %v", j.ops)
	}

	j.ops = nil
	c.RequestRead()
	c.Service(recEnabler{j})
	if j.ops[0] != "disable" || j.ops[1] != "open_read" || j.ops[len(j.ops)-1] != "enable" {
		t.Fatalf("read not bracketed: %v", j.ops)
	}
}

func TestWriteThenReadRestoresTable(t *testing.T) {
	store := newStore(t)
	logger, hook := test.NewNullLogger()
	var events []types.CalibEvent

	tbl := params.NewTable()
	for i, id := range params.Order() {
		tbl.Set(id, float32(i)/7-3)
	}
	c := New(Config{}, tbl, Options{
		Store:   store,
		Logger:  logger,
		OnEvent: func(ev types.CalibEvent) { events = append(events, ev) },
	})
	en := recEnabler{&journal{}}

	c.RequestWrite()
	c.Service(en)
	if got := hook.LastEntry().Message; got != "DIMU: wrote calibration parameters to EEPROM" {
		t.Fatalf("notice = %q", got)
	}

	want := tbl.Snapshot()
	tbl.ResetNeutral(params.GroupAcc, params.GroupGyo, params.GroupMag)

	c.RequestRead()
	c.Service(en)
	for name, v := range want {
		id, _ := params.Lookup(name)
		if tbl.Get(id) != v {
			t.Fatalf("%s = %v, want %v", name, tbl.Get(id), v)
		}
	}
	if c.Reads() != 1 || c.Writes() != 1 {
		t.Fatalf("reads=%d writes=%d", c.Reads(), c.Writes())
	}
	if len(events) != 2 || events[0].Op != types.CalibWrite || !events[1].OK {
		t.Fatalf("events = %+v", events)
	}
	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "DIMU: read calibration parameters from EEPROM" {
			found = true
		}
	}
	if !found {
		t.Fatal("missing read notice")
	}
}

// failingDevice lets ok writes through, then fails every WriteAt. Writes at
// or past failFrom fail when it is set.
type failingDevice struct {
	*eeprom.MemDevice
	ok       int
	failFrom int64
}

func (d *failingDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.ok == 0 || (d.failFrom > 0 && off >= d.failFrom) {
		return 0, errors.New("flash program error")
	}
	d.ok--
	return d.MemDevice.WriteAt(p, off)
}

func TestFailedWriteKeepsStoredCalibration(t *testing.T) {
	dev := &failingDevice{MemDevice: eeprom.NewMemDevice(8192, 4096), ok: -1}
	store, err := eeprom.New(dev, 256)
	if err != nil {
		t.Fatal(err)
	}
	logger, hook := test.NewNullLogger()
	var events []types.CalibEvent
	tbl := params.NewTable()
	c := New(Config{}, tbl, Options{
		Store:   store,
		Logger:  logger,
		OnEvent: func(ev types.CalibEvent) { events = append(events, ev) },
	})
	en := recEnabler{&journal{}}

	tbl.Set(params.MagBiasY, 12.5)
	c.RequestWrite()
	c.Service(en)

	tbl.Set(params.MagBiasY, 99)
	dev.ok = 2
	c.RequestWrite()
	c.Service(en)
	if len(events) != 2 || events[1].OK || events[1].Code != string(errcode.PersistenceFailed) {
		t.Fatalf("events = %+v", events)
	}
	if got := hook.LastEntry().Message; !strings.HasPrefix(got, "DIMU: Error writing to EEPROM: ") {
		t.Fatalf("notice = %q", got)
	}
	if c.Writes() != 1 {
		t.Fatalf("writes = %d", c.Writes())
	}

	// A commit that fails is a failed write too. Slot 1's commit record is
	// its last block.
	dev.ok, dev.failFrom = -1, 8192-256
	c.RequestWrite()
	c.Service(en)
	if len(events) != 3 || events[2].OK {
		t.Fatalf("write reported ok without a commit: %+v", events)
	}

	dev.failFrom = 0
	tbl.Set(params.MagBiasY, 0)
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if got := tbl.Get(params.MagBiasY); got != 12.5 {
		t.Fatalf("MagBiasY = %v, want the last committed 12.5", got)
	}
}

func TestWriteAllocationFailure(t *testing.T) {
	j := &journal{}
	logger, hook := test.NewNullLogger()
	c := New(Config{}, params.NewTable(), Options{
		Store:  recStore{j, newStore(t)},
		Logger: logger,
		Alloc:  func(int) ([]byte, bool) { return nil, false },
	})
	c.RequestWrite()
	c.Service(recEnabler{j})

	for _, op := range j.ops {
		if op == "open_write" || op == "write" {
			t.Fatalf("store touched after allocation failure: %v", j.ops)
		}
	}
	if got := hook.LastEntry().Message; got != "DIMU: Error writing to EEPROM, cannot allocate memory." {
		t.Fatalf("notice = %q", got)
	}
	if c.Writes() != 0 {
		t.Fatal("write counted")
	}
}

func TestNoStoreIsNoOp(t *testing.T) {
	j := &journal{}
	logger, hook := test.NewNullLogger()
	var events []types.CalibEvent
	c := New(Config{}, params.NewTable(), Options{
		Logger:  logger,
		OnEvent: func(ev types.CalibEvent) { events = append(events, ev) },
	})
	if c.HasStore() {
		t.Fatal("HasStore without a store")
	}
	c.RequestRead()
	c.Service(recEnabler{j})
	if len(j.ops) != 0 {
		t.Fatalf("sensors toggled without a store: %v", j.ops)
	}
	if c.Pending() {
		t.Fatal("request left pending")
	}
	if len(events) != 1 || events[0].OK || events[0].Code != string(errcode.PersistenceUnavailable) {
		t.Fatalf("events = %+v", events)
	}
	if got := hook.LastEntry().Message; got != "DIMU: no EEPROM, calibration read ignored" {
		t.Fatalf("notice = %q", got)
	}
	if errcode.Of(c.Load()) != errcode.PersistenceUnavailable {
		t.Fatal("Load without a store should report persistence_unavailable")
	}
}

func TestReadUnavailableNotice(t *testing.T) {
	dev := eeprom.NewMemDevice(4096, 4096)
	store, _ := eeprom.New(dev, 256)
	dev.Fail = errors.New("i2c nack")
	logger, hook := test.NewNullLogger()
	c := New(Config{}, params.NewTable(), Options{Store: store, Logger: logger})

	err := c.Load()
	if errcode.Of(err) != errcode.PersistenceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if got := hook.LastEntry().Message; got != "DIMU: cannot read EEPROM parameters!" {
		t.Fatalf("notice = %q", got)
	}
}

// steadySource produces identical full updates on demand.
type steadySource struct {
	acc, gyo [3]float32
	seq      uint32
	calls    int
}

func (s *steadySource) Latest() (types.FullSample, bool) {
	return types.FullSample{Seq: s.seq}, s.seq > 0
}

func (s *steadySource) WaitFull(ctx context.Context, seq uint32) (types.FullSample, error) {
	if err := ctx.Err(); err != nil {
		return types.FullSample{}, err
	}
	s.calls++
	s.seq = seq + 1
	return types.FullSample{Seq: s.seq, Acc: s.acc, Gyo: s.gyo}, nil
}

type fakeFusion struct{ bias, vels int }

func (f *fakeFusion) ResetBias() { f.bias++ }
func (f *fakeFusion) ResetVels() { f.vels++ }

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func TestTareBiasAndNeutralReset(t *testing.T) {
	tbl := params.NewTable()
	tbl.Set(params.AccScalX, 1.2)
	tbl.Set(params.AccBias2Y, 0.3)
	tbl.Set(params.GyoAlgnXZ, 0.01)
	tbl.Set(params.MagBiasX, 42)

	src := &steadySource{acc: [3]float32{0.2, -0.1, 9.7}, gyo: [3]float32{0.01, -0.02, 0.03}, seq: 5}
	fus := &fakeFusion{}
	c := New(Config{OuterPeriodUs: 5000, Gravity: 9.80665}, tbl, Options{})

	res, err := c.Tare(context.Background(), src, fus)
	if err != nil {
		t.Fatal(err)
	}
	if res.Samples != 100 || src.calls != 200 {
		t.Fatalf("samples=%d calls=%d", res.Samples, src.calls)
	}

	wantAcc := [3]float32{-0.2, 0.1, 9.80665 - 9.7}
	wantGyo := [3]float32{-0.01, 0.02, -0.03}
	for i := 0; i < 3; i++ {
		if !near(tbl.Get(params.AccBiasX+params.ID(i)), wantAcc[i]) {
			t.Fatalf("acc bias[%d] = %v, want %v", i, tbl.Get(params.AccBiasX+params.ID(i)), wantAcc[i])
		}
		if !near(tbl.Get(params.GyoBiasX+params.ID(i)), wantGyo[i]) {
			t.Fatalf("gyo bias[%d] = %v, want %v", i, tbl.Get(params.GyoBiasX+params.ID(i)), wantGyo[i])
		}
	}
	if tbl.Get(params.AccScalX) != 1 || tbl.Get(params.AccBias2Y) != 0 || tbl.Get(params.GyoAlgnXZ) != 0 {
		t.Fatal("accelerometer/gyroscope set not reset to neutral")
	}
	if tbl.Get(params.MagBiasX) != 42 {
		t.Fatal("magnetometer set touched by tare")
	}
	if fus.bias != 1 || fus.vels != 1 {
		t.Fatalf("fusion resets = %d/%d", fus.bias, fus.vels)
	}
}

func TestTareAbortedByContext(t *testing.T) {
	c := New(Config{OuterPeriodUs: 5000, Gravity: 9.80665}, params.NewTable(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	fus := &fakeFusion{}
	_, err := c.Tare(ctx, &steadySource{}, fus)
	if errcode.Of(err) != errcode.TareAborted {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "tare") || fus.bias != 0 {
		t.Fatalf("err=%v bias resets=%d", err, fus.bias)
	}
}
