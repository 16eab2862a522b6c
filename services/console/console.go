// Package console turns operator command lines into driver control requests
// and prints the replies. MCU builds run it over a UART, the host over stdin.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"dimu-go/bus"
	"dimu-go/types"
)

const help = "commands: tare | calib read | calib write | sensors on|off | stats | params | help"

type Console struct {
	conn    *bus.Connection
	out     io.Writer
	Timeout time.Duration // per request; tare waits longer
}

func New(conn *bus.Connection, out io.Writer) *Console {
	return &Console{conn: conn, out: out, Timeout: 2 * time.Second}
}

// Run executes one command per line of in until ctx ends or in is exhausted.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(c.out, c.Exec(ctx, line))
	}
	return sc.Err()
}

// Exec runs a single command and returns the line to print.
func (c *Console) Exec(ctx context.Context, line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return "? " + help
	}
	var verb string
	var payload any
	timeout := c.Timeout

	switch {
	case f[0] == "help":
		return help
	case f[0] == "tare" && len(f) == 1:
		verb, timeout = "tare", c.Timeout+5*time.Second
	case f[0] == "calib" && len(f) == 2 && (f[1] == "read" || f[1] == "write"):
		verb = "calib_" + f[1]
	case f[0] == "sensors" && len(f) == 2 && (f[1] == "on" || f[1] == "off"):
		verb, payload = "sensors", types.SensorsSet{Enabled: f[1] == "on"}
	case (f[0] == "stats" || f[0] == "params") && len(f) == 1:
		verb = f[0]
	default:
		return "? " + help
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	m, err := c.conn.RequestWait(rctx, c.conn.NewMessage(bus.T("dimu", "control", verb), payload, false))
	if err != nil {
		return "error timeout: " + err.Error()
	}
	r, ok := m.Payload.(types.Reply)
	if !ok {
		return fmt.Sprintf("error: unexpected reply %T", m.Payload)
	}
	if !r.OK {
		return fmt.Sprintf("error %s: %s", r.Code, r.Error)
	}
	return "ok" + describe(r.Payload)
}

func describe(p any) string {
	switch v := p.(type) {
	case nil:
		return ""
	case types.TareResult:
		return fmt.Sprintf(" acc_bias=%v gyo_bias=%v samples=%d", v.AccBias, v.GyoBias, v.Samples)
	case types.DriverStats:
		return fmt.Sprintf(" loops=%d full=%d wakes=%d coalesced=%d reads=%d writes=%d tares=%d sensors=%t up=%dms",
			v.Loops, v.FullUpdates, v.Wakes, v.Coalesced, v.CalibReads, v.CalibWrites, v.Tares, v.SensorsEnabled, v.UptimeMs)
	case map[string]float32:
		return fmt.Sprintf(" %d params", len(v))
	default:
		return fmt.Sprintf(" %v", v)
	}
}
