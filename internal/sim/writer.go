package sim

import "github.com/RickyDenton/SafeTunnels/internal/telemetry"

// SampleWriter records sample rows.
type SampleWriter interface {
	Write(row telemetry.SampleRow) error
}

// batchWriter is implemented by sinks that insert several rows at once.
type batchWriter interface {
	WriteBatch(rows []telemetry.SampleRow) error
}

// writeAll sends rows to w, in one batch when w supports it.
func writeAll(w SampleWriter, rows []telemetry.SampleRow) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
