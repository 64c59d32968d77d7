package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
)

func TestSchedules(t *testing.T) {
	qs := config.Default().Quantities
	tests := []struct {
		name     string
		sampling config.SamplingConfig
		want     []Schedule
	}{
		{
			name:     "shared period staggers quantities",
			sampling: config.SamplingConfig{SharedPeriod: 12 * time.Second, InitialDelay: 5 * time.Second},
			want: []Schedule{
				{First: 5 * time.Second, Period: 12 * time.Second},
				{First: 11 * time.Second, Period: 12 * time.Second},
			},
		},
		{
			name:     "independent periods",
			sampling: config.SamplingConfig{},
			want: []Schedule{
				{First: 16 * time.Second, Period: 16 * time.Second},
				{First: 10 * time.Second, Period: 10 * time.Second},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Schedules(tt.sampling, qs)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d schedules", len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("schedule %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSampleOffline(t *testing.T) {
	cw := &collectWriter{}
	n, _, eng := newTestNode(t, testConfig(), cw)

	n.sample(0)
	rows := cw.Rows()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Outcome != "offline" || r.ConnState != "init" || r.CorrelationKnown {
		t.Fatalf("unexpected row: %+v", r)
	}
	if r.Value < 295 || r.Value > 12370 {
		t.Fatalf("value %d outside range", r.Value)
	}
	if !n.quantities[0].Sampled || n.quantities[0].Value != r.Value {
		t.Fatalf("quantity state not updated")
	}
	if eng.Session.PublishCount() != 0 {
		t.Fatalf("published while offline")
	}
}

func TestSamplePublishesWhenSubscribed(t *testing.T) {
	cw := &collectWriter{}
	n, m, eng := newTestNode(t, testConfig(), cw)
	eng.Session.AutoConnect, eng.Session.AutoSubAck = true, true
	bringUp(t, m)

	n.sample(1)
	msgs := eng.Session.Published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Topic != "SafeTunnels/temp" {
		t.Fatalf("topic = %s", msgs[0].Topic)
	}
	if !strings.Contains(string(msgs[0].Payload), `"ID":"`+testNodeID+`"`) {
		t.Fatalf("payload = %s", msgs[0].Payload)
	}
	if got := cw.Rows()[0]; got.Outcome != "published" || got.ConnState != "subscribed" {
		t.Fatalf("unexpected row: %+v", got)
	}

	// An unchanged value inside the inactivity window is suppressed.
	n.quantities[1].ForceMax = true
	n.sample(1)
	n.quantities[1].ForceMax = true
	n.sample(1)
	rows := cw.Rows()
	if last := rows[len(rows)-1]; last.Outcome != "suppressed" || last.Value != 51 {
		t.Fatalf("unexpected last row: %+v", last)
	}
}

func TestSampleWriterErrorIsLogged(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig(), failWriter{err: errSink})
	n.sample(0)
	if !n.quantities[0].Sampled {
		t.Fatalf("sample not applied when the sink fails")
	}
}

func TestSampleWithoutWriter(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig(), nil)
	n.sample(0)
	if !n.quantities[0].Sampled {
		t.Fatalf("sample not applied")
	}
}

func startNode(t *testing.T, n *Node) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		errc <- n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("node did not stop")
		}
	})
	return cancel, errc
}

func waitStatus(t *testing.T, n *Node, cond func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		st, err := n.Status(ctx)
		cancel()
		if err == nil && cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
	return Status{}
}

func TestRunConnectsAndPublishes(t *testing.T) {
	cw := &collectWriter{}
	n, _, eng := newTestNode(t, testConfig(), cw)
	eng.Session.AutoConnect, eng.Session.AutoSubAck = true, true
	startNode(t, n)

	st := waitStatus(t, n, func(s Status) bool {
		return s.State == "subscribed" && s.Quantities[0].Sampled && s.Quantities[1].Sampled
	})
	if st.ID != testNodeID || !st.Online {
		t.Fatalf("unexpected status: %+v", st)
	}
	if eng.Identity() != testNodeID {
		t.Fatalf("registered identity = %q", eng.Identity())
	}
	if subs := eng.Session.Subscribes(); len(subs) == 0 || subs[0] != "SafeTunnels/avgFanRelSpeed" {
		t.Fatalf("subscribes = %v", subs)
	}
	if len(cw.Rows()) < 2 {
		t.Fatalf("rows = %d", len(cw.Rows()))
	}
}

func TestRunStopsAndDisconnects(t *testing.T) {
	n, _, eng := newTestNode(t, testConfig(), nil)
	eng.Session.AutoConnect, eng.Session.AutoSubAck = true, true
	cancel, errc := startNode(t, n)
	waitStatus(t, n, func(s Status) bool { return s.Online })

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if eng.Session.Disconnects() != 1 {
		t.Fatalf("disconnects = %d, want 1", eng.Session.Disconnects())
	}
	if _, err := n.Status(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Status after stop: %v", err)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig(), nil)
	n.schedules = nil
	_, errc := startNode(t, n)
	go n.exec(context.Background(), func() { panic("boom") })

	select {
	case err := <-errc:
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSimulateMax(t *testing.T) {
	cw := &collectWriter{}
	n, _, _ := newTestNode(t, testConfig(), cw)
	n.schedules = []Schedule{{First: time.Hour, Period: time.Hour}, {First: time.Hour, Period: time.Hour}}
	startNode(t, n)

	if err := n.SimulateMax(context.Background()); err != nil {
		t.Fatalf("SimulateMax: %v", err)
	}
	st := waitStatus(t, n, func(Status) bool { return true })
	for _, q := range st.Quantities {
		if q.Sampled {
			t.Fatalf("quantity %s sampled early", q.Name)
		}
	}
	for i, q := range n.quantities {
		if !q.ForceMax {
			t.Fatalf("quantity %d not forced", i)
		}
	}
}

func TestOverrideCorrelation(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig(), nil)
	startNode(t, n)

	if err := n.OverrideCorrelation(context.Background(), 70); err != nil {
		t.Fatalf("OverrideCorrelation: %v", err)
	}
	st := waitStatus(t, n, func(s Status) bool { return s.CorrelationKnown })
	if st.Correlation != 70 {
		t.Fatalf("correlation = %d", st.Correlation)
	}
	err := n.OverrideCorrelation(context.Background(), 101)
	if !errors.Is(err, connectivity.ErrCorrelationRange) {
		t.Fatalf("err = %v, want range error", err)
	}
}

func TestExecContextCancelled(t *testing.T) {
	n, _, _ := newTestNode(t, testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Status(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
