//go:build !metrics

package metrics

// Default returns the collector used when none is configured.
// This file is only compiled when the 'metrics' build tag is NOT present.
func Default() Collector {
	return NewNoopCollector()
}
