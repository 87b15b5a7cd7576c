package trace

import (
	"context"
	"time"
)

// Exporter defines the interface for exporting operation traces.
// Implementations must be safe for concurrent use.
type Exporter interface {
	// Export writes a trace record to the configured destination.
	Export(ctx context.Context, record *TraceRecord) error

	// Close flushes any buffered records and releases resources.
	Close() error
}

// TraceRecord is one finished operation, ready for export.
// It carries identifiers and counts only; never file contents, node ids,
// email addresses or other dataset values.
type TraceRecord struct {
	// Timestamp is the operation start time
	Timestamp time.Time `json:"timestamp"`

	// OperationID uniquely identifies this operation (for correlation)
	OperationID string `json:"operationId"`

	// Operation is the operation type: "import", "create_diagram", "warm"
	Operation string `json:"operation"`

	// DurationMs is the total operation duration in milliseconds
	DurationMs int64 `json:"durationMs"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// Spans contains per-stage timing and status
	Spans []SpanRecord `json:"spans"`

	// ErrorType classifies the error (if Status == "error")
	// Values: format, storage, timeout, validation, unknown
	ErrorType string `json:"errorType,omitempty"`

	// IDs contains cache ids touched by the operation
	IDs map[string]interface{} `json:"ids,omitempty"`
}

// SpanRecord represents a single stage within an operation.
type SpanRecord struct {
	// Name is the stage name (parse, enrich, store, load)
	Name string `json:"name"`

	// DurationMs is the stage duration in milliseconds
	DurationMs int64 `json:"durationMs"`

	// OK indicates success (true) or failure (false)
	OK bool `json:"ok"`

	// ErrorType classifies the error (if OK == false)
	ErrorType string `json:"errorType,omitempty"`

	// Counters provides stage-specific metrics (e.g. rowsSkipped, nodeCount)
	Counters map[string]int64 `json:"counters,omitempty"`
}

// FileExporterOption configures the file exporter. Options are accepted,
// and ignored, in builds without tracing.
type FileExporterOption func(*fileOptions)

type fileOptions struct {
	maxSizeBytes int64
	keep         int
	operations   map[string]bool
}

func defaultFileOptions() fileOptions {
	return fileOptions{maxSizeBytes: 10 << 20, keep: 5}
}

// WithMaxSize sets the size at which the trace file is rotated (default: 10MB).
func WithMaxSize(bytes int64) FileExporterOption {
	return func(o *fileOptions) { o.maxSizeBytes = bytes }
}

// WithMaxRotatedFiles sets how many rotated files are kept (default: 5).
func WithMaxRotatedFiles(count int) FileExporterOption {
	return func(o *fileOptions) { o.keep = count }
}

// WithOperations restricts export to the named operations, e.g. "import".
// Without it every operation is exported.
func WithOperations(ops ...string) FileExporterOption {
	return func(o *fileOptions) {
		o.operations = make(map[string]bool, len(ops))
		for _, op := range ops {
			o.operations[op] = true
		}
	}
}

func (o fileOptions) wants(operation string) bool {
	return o.operations == nil || o.operations[operation]
}
