package metrics

import "context"

// NoopCollector discards everything. It is the default when the binary is
// built without the 'metrics' tag.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordOperation does nothing
func (n *NoopCollector) RecordOperation(ctx context.Context, operation string, status string, durationMs int64) {
}

// RecordStage does nothing
func (n *NoopCollector) RecordStage(ctx context.Context, operation string, stage string, durationMs int64) {
}

// RecordError does nothing
func (n *NoopCollector) RecordError(ctx context.Context, operation string, errorType string) {
}

// RecordLookup does nothing
func (n *NoopCollector) RecordLookup(ctx context.Context, space string, result string) {
}

// SetStorageCount does nothing
func (n *NoopCollector) SetStorageCount(ctx context.Context, space string, count int64) {
}
