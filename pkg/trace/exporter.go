//go:build tracing

package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrExporterClosed is returned by Export after Close.
var ErrExporterClosed = errors.New("trace exporter closed")

// FileExporter appends trace records to a JSON Lines file. When the next
// record would push the file past its size limit, the file is rotated to
// <path>.1 and older rotations shift up to <path>.N.
type FileExporter struct {
	path string
	opts fileOptions

	mu      sync.Mutex
	file    *os.File
	written int64
	closed  bool
}

// NewFileExporter opens (or creates) the trace file at filePath, creating
// parent directories. An empty path disables export.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	if filePath == "" {
		return &NoopExporter{}, nil
	}

	fe := &FileExporter{path: filePath, opts: defaultFileOptions()}
	for _, opt := range opts {
		opt(&fe.opts)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	if err := fe.open(); err != nil {
		return nil, err
	}
	return fe, nil
}

func (fe *FileExporter) open() error {
	f, err := os.OpenFile(fe.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat trace file: %w", err)
	}
	fe.file = f
	fe.written = info.Size()
	return nil
}

// Export writes record as one line. Records for operations excluded by
// WithOperations are dropped silently.
func (fe *FileExporter) Export(ctx context.Context, record *TraceRecord) error {
	if record == nil || !fe.opts.wants(record.Operation) {
		return nil
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode trace record: %w", err)
	}
	line = append(line, '\n')

	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return ErrExporterClosed
	}

	// A single oversized record still gets written, alone in its file
	if fe.written > 0 && fe.written+int64(len(line)) > fe.opts.maxSizeBytes {
		if err := fe.rotate(); err != nil {
			return fmt.Errorf("failed to rotate trace file: %w", err)
		}
	}

	n, err := fe.file.Write(line)
	fe.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	return nil
}

// Close syncs and closes the file. Further calls are no-ops.
func (fe *FileExporter) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	if fe.closed {
		return nil
	}
	fe.closed = true

	syncErr := fe.file.Sync()
	closeErr := fe.file.Close()
	if syncErr != nil {
		return fmt.Errorf("failed to sync trace file: %w", syncErr)
	}
	return closeErr
}

// rotate must be called with mu held.
func (fe *FileExporter) rotate() error {
	if err := fe.file.Close(); err != nil {
		return err
	}

	if fe.opts.keep < 1 {
		// Nothing is kept: start the file over
		if err := os.Remove(fe.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return fe.open()
	}

	// The oldest rotation falls off the end
	if err := os.Remove(fe.rotated(fe.opts.keep)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := fe.opts.keep - 1; i >= 1; i-- {
		if err := os.Rename(fe.rotated(i), fe.rotated(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(fe.path, fe.rotated(1)); err != nil {
		return err
	}
	return fe.open()
}

func (fe *FileExporter) rotated(n int) string {
	return fmt.Sprintf("%s.%d", fe.path, n)
}
