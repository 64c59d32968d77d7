package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// ErrorRecord is the payload published on the errors topic.
type ErrorRecord struct {
	ID        string `json:"ID"`
	Code      Code   `json:"errCode"`
	Detail    string `json:"errDscr,omitempty"`
	ConnState State  `json:"connState"`
}

// link is what the Reporter needs from the state machine.
type link interface {
	State() State
	Publish(topic string, payload []byte, qos byte, retain bool) error
}

// Reporter logs device errors and, while online, publishes them to the
// broker. Records are never queued or retried.
type Reporter struct {
	nodeID string
	topic  string
	link   link
	logger *slog.Logger
}

// NewReporter returns a Reporter publishing on topic through l.
func NewReporter(nodeID, topic string, l link, logger *slog.Logger) *Reporter {
	return &Reporter{nodeID: nodeID, topic: topic, link: l, logger: logger}
}

// Reportf is Report with a formatted detail.
func (r *Reporter) Reportf(code Code, format string, args ...any) {
	r.Report(code, fmt.Sprintf(format, args...))
}

// Report logs code and publishes it when the node is online.
func (r *Reporter) Report(code Code, detail string) {
	state := r.link.State()
	level := slog.LevelError
	if code.Severity() == SeverityWarning {
		level = slog.LevelWarn
	}
	attrs := []any{"code", int(code), "state", state.String()}
	if detail != "" {
		attrs = append(attrs, "detail", detail)
	}

	if !state.Online() {
		r.logger.Log(context.Background(), level, code.String()+" (not published as disconnected from the MQTT broker)", attrs...)
		return
	}

	payload, err := json.Marshal(ErrorRecord{ID: r.nodeID, Code: code, Detail: detail, ConnState: state})
	if err != nil {
		r.logger.Log(context.Background(), level, code.String()+" (failed to encode error record)", append(attrs, "err", err)...)
		return
	}
	if err := r.link.Publish(r.topic, payload, 0, false); err != nil {
		r.logger.Log(context.Background(), level, fmt.Sprintf("%s (failed to submit to the MQTT broker for error '%v')", code, err), attrs...)
		return
	}
	r.logger.Log(context.Background(), level, code.String()+" (submitted to the broker)", attrs...)
}
