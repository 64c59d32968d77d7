// Sample rows with greptime tags
package telemetry

import (
	"os"
	"time"
)

// SampleRow records one sampling of a quantity. It is what the node writes
// to its local sinks, whether or not the value reached the broker.
type SampleRow struct {
	NodeID           string    `json:"node_id"`           // TAG
	Quantity         string    `json:"quantity"`          // TAG
	Value            uint      `json:"value"`             // FIELD
	EqPoint          uint      `json:"eq_point"`          // FIELD
	Correlation      uint      `json:"correlation"`       // FIELD
	CorrelationKnown bool      `json:"correlation_known"` // FIELD
	ConnState        string    `json:"conn_state"`        // FIELD
	Outcome          string    `json:"outcome"`           // FIELD
	Timestamp        time.Time `json:"ts"`                // TIME INDEX
}

// SampleTableName holds the table name used when writing to GreptimeDB.
// It defaults to "sensor_samples" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var SampleTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "sensor_samples"
}()

func (SampleRow) TableName() string {
	return SampleTableName
}
