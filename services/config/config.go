// Package config publishes a board's embedded configuration as retained
// "config/<section>" messages. Services subscribe to their section or block
// on it with Await.
package config

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"dimu-go/bus"
	"dimu-go/errcode"
	"dimu-go/x/notice"
)

const prefix = "config"

// Lookup resolves a board name to its embedded JSON. Tests replace it.
var Lookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Boards lists the boards with an embedded config.
func Boards() []string {
	out := make([]string, 0, len(embeddedConfigs))
	for k := range embeddedConfigs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Service struct {
	Board  string
	Logger notice.Logger
}

func New(board string, log notice.Logger) *Service {
	if log == nil {
		log = notice.Discard()
	}
	return &Service{Board: board, Logger: log}
}

// Publish splits the board config into top-level sections and publishes each
// one retained, in name order.
func (s *Service) Publish(conn *bus.Connection) error {
	const op = "config.publish"
	if s.Board == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: "no board name"}
	}
	raw, ok := Lookup(s.Board)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: "no embedded config for board " + s.Board}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return errcode.Wrap(errcode.InvalidConfig, op, err)
	}
	if m == nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: "config is not a JSON object"}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conn.Publish(conn.NewMessage(bus.T(prefix, k), m[k], true))
	}
	s.Logger.Infof("config: board %s, %d sections", s.Board, len(keys))
	return nil
}

// Start publishes from a goroutine and logs a failure.
func (s *Service) Start(conn *bus.Connection) {
	go func() {
		if err := s.Publish(conn); err != nil {
			s.Logger.Errorf("config: %v", err)
		}
	}()
}

// Await waits up to timeout for the retained section and decodes it.
func Await[T any](ctx context.Context, conn *bus.Connection, section string, timeout time.Duration, decode func(any) (T, error)) (T, error) {
	var zero T
	sub := conn.Subscribe(bus.T(prefix, section))
	defer conn.Unsubscribe(sub)

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case m := <-sub.Channel():
		return decode(m.Payload)
	case <-t.C:
		return zero, &errcode.E{C: errcode.Timeout, Op: "config.await", Msg: "no config/" + section}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
