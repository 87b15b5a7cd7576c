//go:build !tracing

package trace

// NewFileExporter returns a NoopExporter: this build carries no tracing.
func NewFileExporter(filePath string, opts ...FileExporterOption) (Exporter, error) {
	return &NoopExporter{}, nil
}
