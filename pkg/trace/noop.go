package trace

import "context"

// NoopExporter is a zero-overhead exporter that does nothing.
// Used when tracing is disabled at build time or no trace path is configured.
type NoopExporter struct{}

// Export does nothing.
func (n *NoopExporter) Export(ctx context.Context, record *TraceRecord) error {
	return nil
}

// Close does nothing.
func (n *NoopExporter) Close() error {
	return nil
}
