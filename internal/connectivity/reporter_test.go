package connectivity

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeLink struct {
	state     State
	err       error
	calls     int
	published [][]byte
}

func (f *fakeLink) State() State { return f.state }

func (f *fakeLink) Publish(topic string, payload []byte, qos byte, retain bool) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, payload)
	return nil
}

func TestReportBelowConnectedNeverPublishes(t *testing.T) {
	for _, s := range []State{Init, EngineReady, NetworkReady, Connecting} {
		var buf bytes.Buffer
		l := &fakeLink{state: s}
		r := NewReporter("node", errorsTopic, l, slog.New(slog.NewTextHandler(&buf, nil)))
		r.Reportf(ErrPubQuantityFailed, "(%s = %d, error = '%s')", "C02", 500, "boom")
		if l.calls != 0 {
			t.Fatalf("%s: publish called %d times", s, l.calls)
		}
		if !strings.Contains(buf.String(), "not published as disconnected from the MQTT broker") {
			t.Fatalf("%s: unexpected log %q", s, buf.String())
		}
	}
}

func TestReportPublishesRecord(t *testing.T) {
	var buf bytes.Buffer
	l := &fakeLink{state: Subscribed}
	r := NewReporter("node-1", errorsTopic, l, slog.New(slog.NewTextHandler(&buf, nil)))
	r.Report(ErrRecvInvalidCorrelation, "(250 > 100)")
	if len(l.published) != 1 {
		t.Fatalf("expected one publication, got %d", len(l.published))
	}
	var got map[string]any
	if err := json.Unmarshal(l.published[0], &got); err != nil {
		t.Fatal(err)
	}
	if got["ID"] != "node-1" || got["errCode"] != float64(4) || got["errDscr"] != "(250 > 100)" || got["connState"] != float64(5) {
		t.Fatalf("unexpected record %v", got)
	}
	if !strings.Contains(buf.String(), "submitted to the broker") {
		t.Fatalf("unexpected log %q", buf.String())
	}
}

func TestReportOmitsEmptyDetail(t *testing.T) {
	l := &fakeLink{state: Connected}
	r := NewReporter("n", errorsTopic, l, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r.Report(ErrMQTTDisconnected, "")
	if strings.Contains(string(l.published[0]), "errDscr") {
		t.Fatalf("detail should be omitted: %s", l.published[0])
	}
}

func TestReportPublishFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	l := &fakeLink{state: Connected, err: errors.New("queue full")}
	r := NewReporter("n", errorsTopic, l, slog.New(slog.NewTextHandler(&buf, nil)))
	r.Report(ErrUnknownEvent, "(7)")
	if l.calls != 1 {
		t.Fatalf("expected one attempt, got %d", l.calls)
	}
	if !strings.Contains(buf.String(), "failed to submit to the MQTT broker for error 'queue full'") {
		t.Fatalf("unexpected log %q", buf.String())
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("warning codes should log at warn: %q", buf.String())
	}
}
