package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder collects the spans of one running operation.
// Span timers may finish from different goroutines.
type Recorder struct {
	mu     sync.Mutex
	start  time.Time
	record TraceRecord
}

// Start begins recording operation under a fresh operation id.
func Start(operation string) *Recorder {
	now := time.Now()
	return &Recorder{
		start: now,
		record: TraceRecord{
			Timestamp:   now.UTC(),
			OperationID: uuid.NewString(),
			Operation:   operation,
			Spans:       make([]SpanRecord, 0),
		},
	}
}

// OperationID returns the id assigned by Start.
func (r *Recorder) OperationID() string {
	return r.record.OperationID
}

// SetID attaches a correlation id (dataset id, diagram id) to the record.
func (r *Recorder) SetID(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.IDs == nil {
		r.record.IDs = make(map[string]interface{})
	}
	r.record.IDs[key] = value
}

// SpanTimer measures one stage.
type SpanTimer struct {
	name  string
	start time.Time
	r     *Recorder
	once  sync.Once
}

// StartSpan starts timing a named stage.
func (r *Recorder) StartSpan(name string) *SpanTimer {
	return &SpanTimer{name: name, start: time.Now(), r: r}
}

// Finish completes the span and returns its duration in milliseconds.
// An empty errorType marks it successful. Only the first call records
// anything.
func (st *SpanTimer) Finish(errorType string, counters map[string]int64) int64 {
	durationMs := time.Since(st.start).Milliseconds()
	st.once.Do(func() {
		span := SpanRecord{
			Name:       st.name,
			DurationMs: durationMs,
			OK:         errorType == "",
			ErrorType:  errorType,
			Counters:   counters,
		}
		st.r.mu.Lock()
		st.r.record.Spans = append(st.r.record.Spans, span)
		st.r.mu.Unlock()
	})
	return durationMs
}

// Finish closes the operation and returns its record. An empty errorType
// means success.
func (r *Recorder) Finish(errorType string) *TraceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.record
	rec.Spans = make([]SpanRecord, len(r.record.Spans))
	copy(rec.Spans, r.record.Spans)
	if r.record.IDs != nil {
		rec.IDs = make(map[string]interface{}, len(r.record.IDs))
		for k, v := range r.record.IDs {
			rec.IDs[k] = v
		}
	}
	rec.DurationMs = time.Since(r.start).Milliseconds()
	rec.Status = "success"
	if errorType != "" {
		rec.Status = "error"
		rec.ErrorType = errorType
	}
	return &rec
}
