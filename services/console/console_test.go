package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"dimu-go/bus"
	"dimu-go/errcode"
	"dimu-go/types"
)

// fakeDriver answers control requests the way the driver's Serve does.
func fakeDriver(t *testing.T, b *bus.Bus) (got chan *bus.Message) {
	t.Helper()
	conn := b.NewConnection("dimu")
	sub := conn.Subscribe(bus.T("dimu", "control", "+"))
	got = make(chan *bus.Message, 8)
	go func() {
		for m := range sub.Channel() {
			got <- m
			switch m.Topic.At(2) {
			case "stats":
				conn.Reply(m, types.Reply{OK: true, Payload: types.DriverStats{Loops: 7}}, false)
			case "calib_read":
				conn.Reply(m, types.Reply{OK: false, Code: string(errcode.Busy), Error: "request already pending"}, false)
			default:
				conn.Reply(m, types.Reply{OK: true}, false)
			}
		}
	}()
	t.Cleanup(conn.Disconnect)
	return got
}

func TestExec(t *testing.T) {
	b := bus.NewBus(8)
	got := fakeDriver(t, b)
	c := New(b.NewConnection("console"), nil)
	ctx := context.Background()

	if r := c.Exec(ctx, "stats"); !strings.HasPrefix(r, "ok loops=7 ") {
		t.Fatalf("stats: %q", r)
	}
	<-got

	if r := c.Exec(ctx, "calib read"); r != "error busy: request already pending" {
		t.Fatalf("calib read: %q", r)
	}
	<-got

	if r := c.Exec(ctx, "sensors off"); r != "ok" {
		t.Fatalf("sensors: %q", r)
	}
	select {
	case m := <-got:
		if set, ok := m.Payload.(types.SensorsSet); !ok || set.Enabled {
			t.Fatalf("sensors payload = %#v", m.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no request seen")
	}

	for _, bad := range []string{"sensors maybe", "calib", "reboot now"} {
		if r := c.Exec(ctx, bad); !strings.HasPrefix(r, "? ") {
			t.Fatalf("%q accepted: %q", bad, r)
		}
	}
}

func TestExecTimesOutWithoutDriver(t *testing.T) {
	c := New(bus.NewBus(4).NewConnection("console"), nil)
	c.Timeout = 20 * time.Millisecond
	if r := c.Exec(context.Background(), "stats"); !strings.HasPrefix(r, "error timeout") {
		t.Fatalf("got %q", r)
	}
}

func TestRunReadsLines(t *testing.T) {
	b := bus.NewBus(8)
	fakeDriver(t, b)
	var out bytes.Buffer
	c := New(b.NewConnection("console"), &out)

	if err := c.Run(context.Background(), strings.NewReader("help\n\n calib write \n")); err != nil {
		t.Fatal(err)
	}
	want := help + "\nok\n"
	if out.String() != want {
		t.Fatalf("got %q want %q", out.String(), want)
	}
}
