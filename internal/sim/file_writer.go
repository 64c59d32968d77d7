package sim

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/RickyDenton/SafeTunnels/internal/telemetry"
)

// FileWriter appends sample rows to a JSONL file.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter opens path for appending, creating it if needed.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write appends a row.
func (fw *FileWriter) Write(row telemetry.SampleRow) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.enc.Encode(row)
}

// Close closes the underlying file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.file.Close()
}
