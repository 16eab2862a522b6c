package heartbeat

import (
	"context"
	"time"

	"dimu-go/bus"
	"dimu-go/types"
	"dimu-go/x/jsonx"
	"dimu-go/x/notice"
	"dimu-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicStats           = bus.Topic{"dimu", "stats"}
)

const defaultInterval = time.Second

type Service struct {
	// Stats is sampled on every beat. Nil publishes nothing.
	Stats  func() types.DriverStats
	Logger notice.Logger
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	log := s.Logger
	if log == nil {
		log = notice.Discard()
	}
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTimer(defaultInterval)
	defer timex.DrainTimer(tick)
	interval := defaultInterval

	for {
		select {
		case <-ctx.Done():
			log.Infof("heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(conn)
			timex.ResetTimer(tick, interval)
		case msg := <-cfgSub.Channel():
			var cfg types.HeartbeatConfig
			if err := jsonx.Decode(msg.Payload, &cfg); err != nil || cfg.IntervalMs <= 0 {
				log.Warnf("heartbeat: ignoring config %v", msg.Payload)
				continue
			}
			interval = time.Duration(cfg.IntervalMs) * time.Millisecond
			timex.ResetTimer(tick, interval)
			log.Infof("heartbeat interval set to %v", interval)
		}
	}
}

func (s *Service) beat(conn *bus.Connection) {
	if s.Stats == nil {
		return
	}
	conn.Publish(conn.NewMessage(topicStats, s.Stats(), false))
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
