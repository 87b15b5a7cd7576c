package metrics

import "context"

// Collector is the interface for metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector; Default picks one based on the 'metrics' build tag.
type Collector interface {
	// RecordOperation records a finished operation (import, add, remove, ...).
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)

	// RecordStage records the duration of one stage of an operation (parse, enrich, store).
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)

	// RecordError records an error occurrence classified by type.
	RecordError(ctx context.Context, operation string, errorType string)

	// RecordLookup records which tier satisfied a cache lookup: memory, durable or miss.
	RecordLookup(ctx context.Context, space string, result string)

	// SetStorageCount sets the number of known ids per space.
	SetStorageCount(ctx context.Context, space string, count int64)
}

// Lookup results accepted by RecordLookup.
const (
	LookupMemory  = "memory"
	LookupDurable = "durable"
	LookupMiss    = "miss"
)
