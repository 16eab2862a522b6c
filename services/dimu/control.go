// services/dimu/control.go
package dimu

import (
	"context"

	"dimu-go/bus"
	"dimu-go/errcode"
	"dimu-go/types"
	"dimu-go/x/jsonx"
	"dimu-go/x/timex"
)

var (
	topicControl = bus.T("dimu", "control")
	topicState   = bus.T("dimu", "state")
	topicCalib   = bus.T("dimu", "calib")
	topicSample  = bus.T("dimu", "sample")
)

// Control verbs, the last token of "dimu/control/<verb>".
const (
	CtrlCalibRead  = "calib_read"
	CtrlCalibWrite = "calib_write"
	CtrlTare       = "tare"
	CtrlSensors    = "sensors"
	CtrlStats      = "stats"
	CtrlParams     = "params"
)

type ServeOptions struct {
	// SampleEvery publishes every Nth full-update snapshot on "dimu/sample";
	// 0 disables.
	SampleEvery uint32
}

type publisher struct {
	conn        *bus.Connection
	sampleEvery uint32
}

// Serve connects the driver to the bus. It answers control requests and
// publishes state, calibration outcomes and samples until ctx is cancelled.
// The retained state is published once the control subscription is live.
func (d *Driver) Serve(ctx context.Context, conn *bus.Connection, o ServeOptions) error {
	d.pub.Store(&publisher{conn: conn, sampleEvery: o.SampleEvery})
	defer d.pub.Store(nil)

	sub := conn.Subscribe(topicControl.Append("+"))
	defer conn.Unsubscribe(sub)

	if d.sch.Load() != nil {
		d.publishState("running", "ok")
	} else {
		d.publishState("init", "awaiting_init")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			d.handleControl(ctx, conn, msg)
		}
	}
}

func (d *Driver) handleControl(ctx context.Context, conn *bus.Connection, msg *bus.Message) {
	verb, _ := msg.Topic.At(2).(string)
	switch verb {
	case CtrlCalibRead, CtrlCalibWrite:
		if !d.calib.HasStore() {
			replyErr(conn, msg, errcode.Wrap(errcode.PersistenceUnavailable, "dimu."+verb, nil))
			return
		}
		if verb == CtrlCalibRead {
			replyPosted(conn, msg, d.RequestCalibRead())
		} else {
			replyPosted(conn, msg, d.RequestCalibWrite())
		}
	case CtrlTare:
		go func() {
			res, err := d.Tare(ctx)
			if err != nil {
				replyErr(conn, msg, err)
				return
			}
			conn.Reply(msg, types.Reply{OK: true, Payload: res}, false)
		}()
	case CtrlSensors:
		var set types.SensorsSet
		if err := jsonx.Decode(msg.Payload, &set); err != nil {
			replyErr(conn, msg, errcode.Wrap(errcode.InvalidPayload, "dimu.sensors", err))
			return
		}
		if d.sch.Load() == nil {
			replyErr(conn, msg, errcode.Wrap(errcode.NotStarted, "dimu.sensors", nil))
			return
		}
		d.RequestSensors(set.Enabled)
		conn.Reply(msg, types.Reply{OK: true}, false)
	case CtrlStats:
		conn.Reply(msg, types.Reply{OK: true, Payload: d.Stats()}, false)
	case CtrlParams:
		conn.Reply(msg, types.Reply{OK: true, Payload: d.params.Snapshot()}, false)
	default:
		replyErr(conn, msg, errcode.Wrap(errcode.InvalidTopic, "dimu.control", nil))
	}
}

func replyPosted(conn *bus.Connection, msg *bus.Message, posted bool) {
	if posted {
		conn.Reply(msg, types.Reply{OK: true}, false)
		return
	}
	conn.Reply(msg, types.Reply{OK: false, Code: string(errcode.Busy), Error: "request already pending"}, false)
}

func replyErr(conn *bus.Connection, msg *bus.Message, err error) {
	conn.Reply(msg, types.Reply{OK: false, Code: string(errcode.Of(err)), Error: err.Error()}, false)
}

func (d *Driver) publishState(level, status string) {
	p := d.pub.Load()
	if p == nil {
		return
	}
	st := types.DimuState{Level: level, Status: status, Sim: d.cfg.Sim, TS: timex.NowMs()}
	if sch := d.sch.Load(); sch != nil {
		st.SensorsEnabled = sch.SensorsEnabled()
	}
	p.conn.Publish(p.conn.NewMessage(topicState, st, true))
}

func (d *Driver) onCalib(ev types.CalibEvent) {
	if p := d.pub.Load(); p != nil {
		p.conn.Publish(p.conn.NewMessage(topicCalib, ev, true))
	}
}

// onFull runs on the worker after every full update.
func (d *Driver) onFull(s types.FullSample) {
	p := d.pub.Load()
	if p == nil || p.sampleEvery == 0 || s.Seq%p.sampleEvery != 0 {
		return
	}
	p.conn.Publish(p.conn.NewMessage(topicSample, s, false))
}
