//go:build metrics

package metrics

// Default returns the collector used when none is configured.
// Built with -tags metrics it is a fresh Prometheus collector.
func Default() Collector {
	return NewCollector()
}
