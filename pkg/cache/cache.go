// Package cache is the two-tier (memory, then durable key-value store) cache
// for datasets and diagrams, including the id lists used for enumeration.
//
// Durable layout:
//
//	dataset-<id>  JSON {name, graph}
//	dia-<id>      JSON diagram record
//	datasets      JSON array of dataset ids
//	diagrams      JSON array of diagram ids
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dan-solli/commviz/pkg/dataset"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/enrich"
	"github.com/dan-solli/commviz/pkg/metrics"
	"github.com/dan-solli/commviz/pkg/store"
)

// Key namespaces in the durable store.
const (
	DatasetPrefix  = "dataset-"
	DiagramPrefix  = "dia-"
	DatasetListKey = "datasets"
	DiagramListKey = "diagrams"
)

// DefaultTimeout bounds every durable-store call.
const DefaultTimeout = 10 * time.Second

// ErrEmptyID is returned when adding an object without an id.
var ErrEmptyID = errors.New("empty id")

// Config configures a Cache.
type Config struct {
	// Timeout for each durable-store call (default: 10s)
	Timeout time.Duration

	// Enrich is used when datasets are rebuilt from the durable tier
	Enrich enrich.Options

	// Now is the clock used by CreateID (default: time.Now)
	Now func() time.Time
}

// Cache owns the in-memory maps and id lists for both spaces.
// Create one per application and share it; it is safe for concurrent use.
type Cache struct {
	kv      store.KVStore
	cfg     Config
	logger  *slog.Logger
	metrics metrics.Collector

	datasets *tier[*dataset.Dataset]
	diagrams *tier[*diagram.Diagram]

	// serializes diagram re-persists so the last snapshot taken is the last written
	persistMu sync.Mutex
}

// New creates a Cache over kv.
func New(kv store.KVStore, cfg Config) *Cache {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{
		kv:      kv,
		cfg:     cfg,
		logger:  slog.New(slog.DiscardHandler),
		metrics: metrics.NewNoopCollector(),
	}
	c.datasets = newTier(c, "dataset", DatasetPrefix, DatasetListKey, codec[*dataset.Dataset]{
		encode: encodeDataset,
		decode: c.decodeDataset,
	})
	c.diagrams = newTier(c, "diagram", DiagramPrefix, DiagramListKey, codec[*diagram.Diagram]{
		encode: encodeDiagram,
		decode: decodeDiagram,
	})
	return c
}

// WithLogger sets the logger. A nil logger discards output.
// Call before the cache is shared.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c.logger = logger
	return c
}

// WithMetrics sets the metrics collector. A nil collector disables metrics.
// Call before the cache is shared.
func (c *Cache) WithMetrics(m metrics.Collector) *Cache {
	if m == nil {
		m = metrics.NewNoopCollector()
	}
	c.metrics = m
	return c
}

// CreateID derives an id from the current time in milliseconds modulo
// 100000, followed by suffix. Collisions within the same millisecond window
// are possible; pass a suffix to disambiguate.
func (c *Cache) CreateID(suffix string) string {
	return strconv.FormatInt(c.cfg.Now().UnixMilli()%100000, 10) + suffix
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, &store.StorageError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (c *Cache) set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.kv.Set(ctx, key, value); err != nil {
		return &store.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c *Cache) apply(ctx context.Context, op, key string, mutations ...store.Mutation) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.kv.Apply(ctx, mutations...); err != nil {
		return &store.StorageError{Op: op, Key: key, Err: err}
	}
	return nil
}

func (c *Cache) recordStorageError(ctx context.Context, operation string, err error) {
	errType := "storage"
	if store.IsTimeout(err) {
		errType = "timeout"
	}
	c.metrics.RecordError(ctx, operation, errType)
}
