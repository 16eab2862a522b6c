// Package metrics exposes driver telemetry from the bus as prometheus
// collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"dimu-go/bus"
	"dimu-go/types"
)

const namespace = "dimu"

type Metrics struct {
	loops          prometheus.Gauge
	wakes          prometheus.Gauge
	coalesced      prometheus.Gauge
	fullUpdates    prometheus.Gauge
	periodicFires  prometheus.Gauge
	oneShotFires   prometheus.Gauge
	sensorsEnabled prometheus.Gauge
	uptime         prometheus.Gauge
	temperature    prometheus.Gauge
	dTemp          prometheus.Gauge

	calibOps *prometheus.CounterVec
	ready    *prometheus.CounterVec
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		loops:          gauge("loops", "Scheduler steps since start."),
		wakes:          gauge("wakes", "Worker wake-ups since start."),
		coalesced:      gauge("coalesced_signals", "Interrupt signals merged into a pending wake-up."),
		fullUpdates:    gauge("full_updates", "Full updates since start."),
		periodicFires:  gauge("periodic_fires", "Periodic alarm expiries."),
		oneShotFires:   gauge("oneshot_fires", "One-shot alarm expiries."),
		sensorsEnabled: gauge("sensors_enabled", "1 when the sampling paths are enabled."),
		uptime:         gauge("uptime_seconds", "Seconds since the driver started."),
		temperature:    gauge("temperature_celsius", "Mean sensor temperature at the last published sample."),
		dTemp:          gauge("temperature_delta_celsius", "Temperature minus the room reference."),
		calibOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibration_ops_total",
			Help:      "Calibration operations by kind and outcome.",
		}, []string{"op", "result"}),
		ready: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_events_total",
			Help:      "Ready notifications seen on the bus.",
		}, []string{"sensor", "kind"}),
	}
	for _, c := range []prometheus.Collector{
		m.loops, m.wakes, m.coalesced, m.fullUpdates, m.periodicFires, m.oneShotFires,
		m.sensorsEnabled, m.uptime, m.temperature, m.dTemp, m.calibOps, m.ready,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveStats sets the gauges from a stats snapshot.
func (m *Metrics) ObserveStats(st types.DriverStats) {
	m.loops.Set(float64(st.Loops))
	m.wakes.Set(float64(st.Wakes))
	m.coalesced.Set(float64(st.Coalesced))
	m.fullUpdates.Set(float64(st.FullUpdates))
	m.periodicFires.Set(float64(st.PeriodicFires))
	m.oneShotFires.Set(float64(st.OneShotFires))
	m.uptime.Set(float64(st.UptimeMs) / 1000)
	if st.SensorsEnabled {
		m.sensorsEnabled.Set(1)
	} else {
		m.sensorsEnabled.Set(0)
	}
}

func (m *Metrics) ObserveCalib(ev types.CalibEvent) {
	result := "ok"
	if !ev.OK {
		result = "error"
	}
	m.calibOps.WithLabelValues(string(ev.Op), result).Inc()
}

func (m *Metrics) ObserveSample(s types.FullSample) {
	m.temperature.Set(float64(s.Temp))
	m.dTemp.Set(float64(s.DTemp))
}

// Run feeds the collectors from "dimu/stats", "dimu/calib", "dimu/sample" and
// "imu/ready/#" until ctx is cancelled.
func (m *Metrics) Run(ctx context.Context, conn *bus.Connection) {
	stats := conn.Subscribe(bus.T("dimu", "stats"))
	calib := conn.Subscribe(bus.T("dimu", "calib"))
	sample := conn.Subscribe(bus.T("dimu", "sample"))
	ready := conn.Subscribe(bus.T("imu", "ready", "#"))
	defer conn.Unsubscribe(stats)
	defer conn.Unsubscribe(calib)
	defer conn.Unsubscribe(sample)
	defer conn.Unsubscribe(ready)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-stats.Channel():
			if st, ok := msg.Payload.(types.DriverStats); ok {
				m.ObserveStats(st)
			}
		case msg := <-calib.Channel():
			if ev, ok := msg.Payload.(types.CalibEvent); ok {
				m.ObserveCalib(ev)
			}
		case msg := <-sample.Channel():
			if s, ok := msg.Payload.(types.FullSample); ok {
				m.ObserveSample(s)
			}
		case msg := <-ready.Channel():
			if ev, ok := msg.Payload.(types.ReadyEvent); ok {
				m.ready.WithLabelValues(string(ev.Sensor), string(ev.Kind)).Inc()
			}
		}
	}
}
