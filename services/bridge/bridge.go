// services/bridge/bridge.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dimu-go/bus"
	"dimu-go/errcode"
	"dimu-go/types"
	"dimu-go/x/jsonx"
	"dimu-go/x/notice"
	"dimu-go/x/timex"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

// Start starts the bridge service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","bridge"} and (re)configures
// the MQTT uplink.
func Start(ctx context.Context, conn *bus.Connection, log notice.Logger) {
	if log == nil {
		log = notice.Discard()
	}
	s := &Service{
		conn:       conn,
		log:        log,
		stateTopic: bus.Topic{"bridge", "state"},
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is the slice of an MQTT client the bridge needs.
type Client interface {
	Connect(ctx context.Context) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, fn func(topic string, payload []byte)) error
	// Lost delivers the error that dropped an established connection.
	Lost() <-chan error
	Disconnect()
}

// Dial builds a client for cfg. Tests and alternative transports replace it.
var Dial = func(cfg types.BridgeConfig) Client { return newPahoClient(cfg) }

const requestTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	log        notice.Logger
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores types.BridgeConfig

	forwarded atomic.Uint32
	requests  atomic.Uint32
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg types.BridgeConfig) {
	s.mu.Lock()
	// Cancel any existing run.
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg types.BridgeConfig) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c := Dial(cfg)
		if err := c.Connect(ctx); err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Infof("bridge: connected to %s as %s", cfg.Broker, cfg.ClientID)
		err := s.handleLink(ctx, c, cfg)
		c.Disconnect()
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		// Clean close: restart only on new config.
		return
	}
}

type inbound struct {
	topic   string
	payload []byte
}

// handleLink forwards local topics up and control requests down until ctx
// ends or the connection drops.
func (s *Service) handleLink(ctx context.Context, c Client, cfg types.BridgeConfig) error {
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var subs []*bus.Subscription
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()
	for _, f := range cfg.Forward {
		sub := s.conn.Subscribe(ParseTopic(f))
		subs = append(subs, sub)
		go s.forward(ctx, c, cfg, sub, fail)
	}

	inbox := make(chan inbound, 8)
	ctrl := remoteTopic(cfg.Prefix, "dimu/control/+")
	err := c.Subscribe(ctrl, cfg.QoS, func(topic string, payload []byte) {
		select {
		case inbox <- inbound{topic: topic, payload: payload}:
		default:
			s.log.Warnf("bridge: dropping request on %s", topic)
		}
	})
	if err != nil {
		return err
	}
	s.publishState("up", "link_established", nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-c.Lost():
			return err
		case err := <-errCh:
			return err
		case in := <-inbox:
			go s.request(ctx, c, cfg, in)
		}
	}
}

func (s *Service) forward(ctx context.Context, c Client, cfg types.BridgeConfig, sub *bus.Subscription, fail func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			b, err := json.Marshal(msg.Payload)
			if err != nil {
				s.log.Warnf("bridge: cannot encode %s: %v", msg.Topic, err)
				continue
			}
			if err := c.Publish(remoteTopic(cfg.Prefix, msg.Topic.String()), cfg.QoS, msg.Retained, b); err != nil {
				fail(err)
				return
			}
			s.forwarded.Add(1)
		}
	}
}

// request turns "<prefix>/dimu/control/<verb>" into a local request and
// publishes the reply on "<prefix>/dimu/reply/<verb>".
func (s *Service) request(ctx context.Context, c Client, cfg types.BridgeConfig, in inbound) {
	s.requests.Add(1)
	verb := in.topic[strings.LastIndexByte(in.topic, '/')+1:]

	var payload any
	if len(in.payload) > 0 {
		payload = in.payload
	}
	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reply any
	r, err := s.conn.RequestWait(rctx, s.conn.NewMessage(bus.T("dimu", "control", verb), payload, false))
	if err != nil {
		reply = types.Reply{OK: false, Code: string(errcode.Timeout), Error: err.Error()}
	} else {
		reply = r.Payload
	}
	b, err := json.Marshal(reply)
	if err != nil {
		s.log.Warnf("bridge: cannot encode reply to %s: %v", verb, err)
		return
	}
	if err := c.Publish(remoteTopic(cfg.Prefix, "dimu/reply/"+verb), cfg.QoS, false, b); err != nil {
		s.log.Warnf("bridge: reply to %s: %v", verb, err)
	}
}

// Counts reports messages forwarded up and requests relayed down.
func (s *Service) Counts() (forwarded, requests uint32) {
	return s.forwarded.Load(), s.requests.Load()
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

// ParseTopic splits a "/" separated pattern into bus tokens.
func ParseTopic(s string) bus.Topic {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	t := make(bus.Topic, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return t
}

func remoteTopic(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

func decodeConfig(p any) (types.BridgeConfig, error) {
	var cfg types.BridgeConfig
	if err := jsonx.Decode(p, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Broker == "" {
		return cfg, errors.New("bridge config has no broker")
	}
	if cfg.QoS > 2 {
		return cfg, fmt.Errorf("bad qos %d", cfg.QoS)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	st := types.LinkState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
