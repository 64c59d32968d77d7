package sim

import (
	"errors"

	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

// MultiWriter fans sample rows out to several writers. Every writer is
// tried; the errors are joined.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a row to all writers.
func (mw *MultiWriter) Write(row telemetry.SampleRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends rows to all writers, using batch inserts if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.SampleRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := writeAll(w, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }
