package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

const greptimeWriteTimeout = 5 * time.Second

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes sample rows to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
}

// NewGreptimeDBWriter connects to the GreptimeDB instance described by cfg.
func NewGreptimeDBWriter(cfg config.GreptimeConfig) (*GreptimeDBWriter, error) {
	gcfg := greptime.NewConfig(cfg.Endpoint).WithDatabase(cfg.Database)
	if cfg.Port > 0 {
		gcfg = gcfg.WithPort(cfg.Port)
	}
	client, err := greptime.NewClient(gcfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	name := cfg.Table
	if name == "" {
		name = telemetry.SampleTableName
	}
	return &GreptimeDBWriter{client: client, table: name}, nil
}

// Write inserts a single sample row.
func (w *GreptimeDBWriter) Write(row telemetry.SampleRow) error {
	return w.WriteBatch([]telemetry.SampleRow{row})
}

// WriteBatch inserts multiple sample rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.SampleRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.sampleTable(rows)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), greptimeWriteTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	return nil
}

func (w *GreptimeDBWriter) sampleTable(rows []telemetry.SampleRow) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	err = errors.Join(
		tbl.AddTagColumn("node_id", types.STRING),
		tbl.AddTagColumn("quantity", types.STRING),
		tbl.AddFieldColumn("value", types.UINT64),
		tbl.AddFieldColumn("eq_point", types.UINT64),
		tbl.AddFieldColumn("correlation", types.UINT64),
		tbl.AddFieldColumn("correlation_known", types.BOOLEAN),
		tbl.AddFieldColumn("conn_state", types.STRING),
		tbl.AddFieldColumn("outcome", types.STRING),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		err := tbl.AddRow(r.NodeID, r.Quantity, uint64(r.Value), uint64(r.EqPoint), uint64(r.Correlation),
			r.CorrelationKnown, r.ConnState, r.Outcome, r.Timestamp)
		if err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
