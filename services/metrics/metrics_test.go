package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"dimu-go/bus"
	"dimu-go/types"
)

func TestObserveStats(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	m.ObserveStats(types.DriverStats{Loops: 40, FullUpdates: 20, Coalesced: 2, SensorsEnabled: true, UptimeMs: 1500})

	if got := testutil.ToFloat64(m.loops); got != 40 {
		t.Fatalf("loops = %v", got)
	}
	if got := testutil.ToFloat64(m.fullUpdates); got != 20 {
		t.Fatalf("full updates = %v", got)
	}
	if got := testutil.ToFloat64(m.sensorsEnabled); got != 1 {
		t.Fatalf("sensors_enabled = %v", got)
	}
	if got := testutil.ToFloat64(m.uptime); got != 1.5 {
		t.Fatalf("uptime = %v", got)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("second registration succeeded")
	}
}

func TestRunFeedsFromBus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	b := bus.NewBus(16)
	conn := b.NewConnection("metrics")
	pub := b.NewConnection("dimu")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, conn)

	// Retained calib events are replayed on subscribe.
	pub.Publish(pub.NewMessage(bus.T("dimu", "calib"), types.CalibEvent{Op: types.CalibWrite, OK: false}, true))

	// Wait for the subscriptions to exist before publishing live traffic.
	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.calibOps.WithLabelValues("write", "error")) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("calib event not counted")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		pub.Publish(pub.NewMessage(bus.T("imu", "ready", "dimu", "full"), types.ReadyEvent{Sensor: types.SensorDIMU, Kind: types.UpdateFull}, false))
	}
	pub.Publish(pub.NewMessage(bus.T("dimu", "sample"), types.FullSample{Temp: 23.5, DTemp: 3.5}, false))

	for testutil.ToFloat64(m.ready.WithLabelValues("dimu", "full")) != 3 || testutil.ToFloat64(m.temperature) != 23.5 {
		if time.Now().After(deadline) {
			t.Fatal("bus traffic not reflected")
		}
		time.Sleep(time.Millisecond)
	}

	want := `
# HELP dimu_calibration_ops_total Calibration operations by kind and outcome.
# TYPE dimu_calibration_ops_total counter
dimu_calibration_ops_total{op="write",result="error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "dimu_calibration_ops_total"); err != nil {
		t.Fatal(err)
	}
}
