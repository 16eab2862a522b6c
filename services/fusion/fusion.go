// Package fusion stands in for the attitude estimator: it receives the
// driver's update and reset notifications and forwards them onto the bus.
package fusion

import (
	"sync/atomic"

	"dimu-go/bus"
	"dimu-go/types"
)

var (
	topicReady = bus.T("imu", "ready")
	topicReset = bus.T("imu", "reset")
)

type Config struct {
	Sensor types.SensorType
	// Publish every Nth rate / full notification; 0 disables publishing for
	// that kind. Counters always advance.
	RateEvery uint32
	FullEvery uint32
}

// Notifier is called from the sampling worker; it never blocks on the bus
// (subscriber queues drop oldest).
type Notifier struct {
	cfg  Config
	conn *bus.Connection

	rate, full   atomic.Uint32
	bias, vels   atomic.Uint32
	rateT, fullT bus.Topic
}

func New(conn *bus.Connection, cfg Config) *Notifier {
	if cfg.Sensor == "" {
		cfg.Sensor = types.SensorDIMU
	}
	return &Notifier{
		cfg:   cfg,
		conn:  conn,
		rateT: topicReady.Append(string(cfg.Sensor), string(types.UpdateRate)),
		fullT: topicReady.Append(string(cfg.Sensor), string(types.UpdateFull)),
	}
}

func (n *Notifier) SensorReady(kind types.UpdateKind) {
	switch kind {
	case types.UpdateRate:
		c := n.rate.Add(1)
		n.maybePublish(n.rateT, kind, c, n.cfg.RateEvery)
	case types.UpdateFull:
		c := n.full.Add(1)
		n.maybePublish(n.fullT, kind, c, n.cfg.FullEvery)
	}
}

func (n *Notifier) maybePublish(t bus.Topic, kind types.UpdateKind, count, every uint32) {
	if n.conn == nil || every == 0 || count%every != 0 {
		return
	}
	n.conn.Publish(n.conn.NewMessage(t, types.ReadyEvent{Sensor: n.cfg.Sensor, Kind: kind, Count: count}, false))
}

func (n *Notifier) ResetBias() {
	c := n.bias.Add(1)
	if n.conn != nil {
		n.conn.Publish(n.conn.NewMessage(topicReset.Append("bias"), c, false))
	}
}

func (n *Notifier) ResetVels() {
	c := n.vels.Add(1)
	if n.conn != nil {
		n.conn.Publish(n.conn.NewMessage(topicReset.Append("vels"), c, false))
	}
}

// Counts returns notification totals.
func (n *Notifier) Counts() (rate, full, bias, vels uint32) {
	return n.rate.Load(), n.full.Load(), n.bias.Load(), n.vels.Load()
}
