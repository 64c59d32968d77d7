package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/transport"
)

// Outcome classifies what happened to a sample.
type Outcome int

const (
	Published Outcome = iota
	Suppressed
	Offline
	Backpressure
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Published:
		return "published"
	case Suppressed:
		return "suppressed"
	case Offline:
		return "offline"
	case Backpressure:
		return "backpressure"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Link is the part of the connectivity machine a Publisher uses.
type Link interface {
	State() connectivity.State
	Publish(topic string, payload []byte, qos byte, retain bool) error
	Reportf(code connectivity.Code, format string, args ...any)
}

// ShouldPublish reports whether a sample must be sent: only while online,
// and only if the value changed or nothing was sent for longer than
// maxInactivity.
func ShouldPublish(state connectivity.State, current, previous uint, sinceLast, maxInactivity time.Duration) bool {
	return shouldPublish(state, current != previous, sinceLast, maxInactivity)
}

func shouldPublish(state connectivity.State, changed bool, sinceLast, maxInactivity time.Duration) bool {
	if !state.Online() {
		return false
	}
	return changed || sinceLast > maxInactivity
}

// Publisher sends quantity samples to the broker.
type Publisher struct {
	nodeID        string
	namespace     string
	maxInactivity time.Duration
	link          Link
	logger        *slog.Logger
}

// NewPublisher returns a Publisher for nodeID publishing under namespace.
func NewPublisher(nodeID, namespace string, maxInactivity time.Duration, link Link, logger *slog.Logger) *Publisher {
	return &Publisher{nodeID: nodeID, namespace: namespace, maxInactivity: maxInactivity, link: link, logger: logger}
}

// Publish offers value, the new sample of q, to the broker. q.Value still
// holds the previous sample; q.LastPublish is updated on submission.
func (p *Publisher) Publish(q *Quantity, value uint, now time.Time) Outcome {
	name := q.Spec.Name
	state := p.link.State()
	changed := !q.Sampled || value != q.Value
	if !shouldPublish(state, changed, now.Sub(q.LastPublish), p.maxInactivity) {
		if !state.Online() {
			p.logger.Warn("sampled quantity not published as disconnected from the MQTT broker", "quantity", name, "value", value)
			return Offline
		}
		p.logger.Debug("sampled quantity unchanged, publication skipped", "quantity", name, "value", value)
		return Suppressed
	}

	payload, err := p.payload(name, value)
	if err != nil {
		p.link.Reportf(connectivity.ErrPubQuantityFailed, "(%s = %d, error = '%v')", name, value, err)
		return Failed
	}
	err = p.link.Publish(q.Spec.Topic(p.namespace), payload, 0, false)
	switch {
	case err == nil:
		q.LastPublish = now
		p.logger.Info("published sampled quantity", "quantity", name, "value", value)
		return Published
	case errors.Is(err, transport.ErrQueueFull):
		p.logger.Warn("sampled quantity not published as the MQTT output queue is full", "quantity", name, "value", value)
		return Backpressure
	default:
		p.link.Reportf(connectivity.ErrPubQuantityFailed, "(%s = %d, error = '%v')", name, value, err)
		return Failed
	}
}

func (p *Publisher) payload(name string, value uint) ([]byte, error) {
	id, err := json.Marshal(p.nodeID)
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(name)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, `{"ID":%s,%s:%d}`, id, key, value), nil
}
