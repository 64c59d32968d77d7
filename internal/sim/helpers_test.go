package sim

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
	"github.com/RickyDenton/SafeTunnels/internal/transport/transporttest"
)

const testNodeID = "00:12:4b:00:06:0d:b2:1a"

type collectWriter struct {
	mu   sync.Mutex
	rows []telemetry.SampleRow
}

func (c *collectWriter) Write(r telemetry.SampleRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, r)
	return nil
}

func (c *collectWriter) Rows() []telemetry.SampleRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.SampleRow(nil), c.rows...)
}

type batchCollector struct {
	collectWriter
	batches int
}

func (b *batchCollector) WriteBatch(rows []telemetry.SampleRow) error {
	b.batches++
	for _, r := range rows {
		b.Write(r)
	}
	return nil
}

type failWriter struct{ err error }

func (f failWriter) Write(telemetry.SampleRow) error { return f.err }

var errSink = errors.New("sink down")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Timing.Tick = 5 * time.Millisecond
	cfg.Sampling = config.SamplingConfig{SharedPeriod: 20 * time.Millisecond}
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config, w SampleWriter) (*Node, *connectivity.Machine, *transporttest.Engine) {
	t.Helper()
	eng := transporttest.NewEngine()
	m := connectivity.NewMachine(connectivity.Config{
		NodeID:           testNodeID,
		Broker:           cfg.Broker.ConnectOptions(),
		CorrelationTopic: cfg.Topics.Correlation,
		ErrorsTopic:      cfg.Topics.Errors,
		OfflineLogEvery:  cfg.Timing.OfflineLogEvery,
	}, eng, connectivity.ReachableFunc(func() bool { return true }), quietLogger())
	n := NewNode(cfg, testNodeID, m, w, rand.New(rand.NewSource(1)), quietLogger())
	return n, m, eng
}

// bringUp drives m to Subscribed on the test goroutine.
func bringUp(t *testing.T, m *connectivity.Machine) {
	t.Helper()
	for i := 0; i < 10 && m.State() != connectivity.Subscribed; i++ {
		m.Tick()
		for drained := false; !drained; {
			select {
			case ev := <-m.Events():
				m.Handle(ev)
			default:
				drained = true
			}
		}
	}
	if m.State() != connectivity.Subscribed {
		t.Fatalf("state = %v, want subscribed", m.State())
	}
}
