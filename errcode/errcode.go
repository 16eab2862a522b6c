package errcode

import "errors"

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	InvalidConfig  Code = "invalid_config"
	InvalidPeriod  Code = "invalid_period"
	Timeout        Code = "timeout"

	// Driver lifecycle.
	NotStarted     Code = "not_started"
	AlreadyStarted Code = "already_started"

	// Sensors and calibration.
	SensorInitFailed       Code = "sensor_init_failed"
	PersistenceUnavailable Code = "persistence_unavailable"
	PersistenceFailed      Code = "persistence_failed"
	OutOfMemory            Code = "out_of_memory"
	TareAborted            Code = "tare_aborted"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause next to a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E. A nil cause is allowed.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	for e := err; e != nil; e = errors.Unwrap(e) {
		if c, ok := e.(Code); ok {
			return c
		}
		if x, ok := e.(coder); ok {
			return x.Code()
		}
	}
	return Error
}
