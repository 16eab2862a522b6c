// Package notice is the driver's operator notice channel.
//
// Core packages depend only on Logger. Host builds pass a logrus logger or
// entry (both satisfy the interface); MCU builds write plain lines to a UART.
package notice

import (
	"fmt"
	"io"
	"sync"
)

// Logger is the subset of logrus.FieldLogger used by the firmware packages.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Discard drops everything.
func Discard() Logger { return discard{} }

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}

// NewWriter returns a Logger that writes "prefix level: message" lines to w.
// Debug lines are dropped unless debug is set.
func NewWriter(w io.Writer, prefix string, debug bool) Logger {
	return &writer{w: w, prefix: prefix, debug: debug}
}

type writer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	debug  bool
}

func (l *writer) line(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, "%s %s: %s\n", l.prefix, level, fmt.Sprintf(format, args...))
}

func (l *writer) Debugf(format string, args ...any) {
	if l.debug {
		l.line("debug", format, args...)
	}
}
func (l *writer) Infof(format string, args ...any)  { l.line("info", format, args...) }
func (l *writer) Warnf(format string, args ...any)  { l.line("warn", format, args...) }
func (l *writer) Errorf(format string, args ...any) { l.line("error", format, args...) }
