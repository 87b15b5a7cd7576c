// Package commviz wires ingestion, enrichment, the two-tier cache and the
// settings registry into one object owned by the application.
package commviz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dan-solli/commviz/pkg/cache"
	"github.com/dan-solli/commviz/pkg/dataset"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/enrich"
	"github.com/dan-solli/commviz/pkg/graph"
	"github.com/dan-solli/commviz/pkg/metrics"
	"github.com/dan-solli/commviz/pkg/settings"
	"github.com/dan-solli/commviz/pkg/store"
	"github.com/dan-solli/commviz/pkg/trace"
)

// Commviz is the main entry point: one per process, passed to every consumer.
type Commviz struct {
	config    Config
	kv        store.KVStore
	cache     *cache.Cache
	selection *Selection

	logger   *slog.Logger
	metrics  metrics.Collector
	exporter trace.Exporter

	// tracks ImportAsync workers so Close can wait for them
	workers sync.WaitGroup
}

// New opens the configured durable backend and creates a Commviz instance.
func New(cfg Config) (*Commviz, error) {
	cfg.applyDefaults()

	kv, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	c, err := NewWithStore(cfg, kv)
	if err != nil {
		kv.Close()
		return nil, err
	}
	return c, nil
}

// NewWithStore creates a Commviz instance over an existing store (useful for
// tests). Close closes kv.
func NewWithStore(cfg Config, kv store.KVStore) (*Commviz, error) {
	cfg.applyDefaults()

	exporter, err := trace.NewFileExporter(cfg.TracePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	c := &Commviz{
		config: cfg,
		kv:     kv,
		cache: cache.New(kv, cache.Config{
			Timeout: cfg.StorageTimeout,
			Enrich:  enrich.Options{Resolution: cfg.Resolution},
		}),
		selection: NewSelection(),
		logger:    slog.New(slog.DiscardHandler),
		metrics:   metrics.Default(),
		exporter:  exporter,
	}
	c.cache.WithMetrics(c.metrics)
	return c, nil
}

func openStore(cfg Config) (store.KVStore, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return store.NewSQLiteKV(cfg.DBPath)
	case BackendBadger:
		if cfg.DBPath == ":memory:" {
			return store.OpenBadgerInMemory()
		}
		return store.OpenBadgerKV(cfg.DBPath)
	case BackendMemory:
		return store.NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// WithLogger sets the logger and logs the effective configuration once.
// A nil logger discards output. Returns c for chaining.
func (c *Commviz) WithLogger(logger *slog.Logger) *Commviz {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c.logger = logger
	c.cache.WithLogger(logger)

	logger.Info("commviz configured",
		"backend", c.config.Backend,
		"storage_timeout_ms", c.config.StorageTimeout.Milliseconds(),
		"resolution", c.config.Resolution,
		"warm_parallelism", c.config.WarmParallelism,
		"tracing_enabled", c.config.TracePath != "",
	)
	return c
}

// WithMetrics replaces the metrics collector. A nil collector disables metrics.
func (c *Commviz) WithMetrics(m metrics.Collector) *Commviz {
	if m == nil {
		m = metrics.NewNoopCollector()
	}
	c.metrics = m
	c.cache.WithMetrics(m)
	return c
}

// WithTraceExporter replaces the trace exporter. The previous exporter is closed.
func (c *Commviz) WithTraceExporter(e trace.Exporter) *Commviz {
	if e == nil {
		e = &trace.NoopExporter{}
	}
	if c.exporter != nil {
		_ = c.exporter.Close()
	}
	c.exporter = e
	return c
}

// Cache exposes the underlying cache.
func (c *Commviz) Cache() *cache.Cache {
	return c.cache
}

// Selection returns the shared node selection list.
func (c *Commviz) Selection() *Selection {
	return c.selection
}

// Config returns the effective configuration.
func (c *Commviz) Config() Config {
	return c.config
}

// GetDataset returns the dataset stored under id.
func (c *Commviz) GetDataset(ctx context.Context, id string) (*dataset.Dataset, bool) {
	return c.cache.GetDataset(ctx, id)
}

// GetDiagram returns the diagram stored under id.
func (c *Commviz) GetDiagram(ctx context.Context, id string) (*diagram.Diagram, bool) {
	return c.cache.GetDiagram(ctx, id)
}

// Datasets lists dataset ids.
func (c *Commviz) Datasets(ctx context.Context) ([]string, error) {
	return c.cache.Datasets(ctx)
}

// Diagrams lists diagram ids.
func (c *Commviz) Diagrams(ctx context.Context) ([]string, error) {
	return c.cache.Diagrams(ctx)
}

// RemoveDataset deletes a dataset. Diagrams pointing at it are left alone.
func (c *Commviz) RemoveDataset(ctx context.Context, id string) error {
	return c.cache.RemoveDataset(ctx, id)
}

// RemoveDiagram deletes a diagram.
func (c *Commviz) RemoveDiagram(ctx context.Context, d *diagram.Diagram) error {
	return c.cache.RemoveDiagram(ctx, d)
}

// RemoveDiagramByID deletes the diagram stored under id.
func (c *Commviz) RemoveDiagramByID(ctx context.Context, id string) error {
	return c.cache.RemoveDiagramByID(ctx, id)
}

// ChangeSetting validates the resulting settings for d's kind and then
// applies, notifies and persists them.
func (c *Commviz) ChangeSetting(ctx context.Context, d *diagram.Diagram, key string, value any, keyvals ...any) error {
	if d == nil {
		return errors.New("nil diagram")
	}

	candidate := diagram.New(d.ID, d.GraphID, d.Type, d.SettingsSnapshot())
	if err := candidate.ApplySettings(key, value, keyvals...); err != nil {
		return err
	}
	if err := settings.Validate(d.Type, candidate.SettingsSnapshot()); err != nil {
		c.metrics.RecordError(ctx, "change_setting", ClassifyError(err))
		return err
	}
	return c.cache.ChangeSetting(ctx, d, key, value, keyvals...)
}

// ChangeName renames d and persists it.
func (c *Commviz) ChangeName(ctx context.Context, d *diagram.Diagram, name string) error {
	return c.cache.ChangeName(ctx, d, name)
}

// SetInvisible hides or shows d and persists it.
func (c *Commviz) SetInvisible(ctx context.Context, d *diagram.Diagram, invisible bool) error {
	return c.cache.SetInvisible(ctx, d, invisible)
}

// VisibleSettings lists the settings a view shows for the diagram with the
// given id. A missing dataset yields options without graph-derived entries.
func (c *Commviz) VisibleSettings(ctx context.Context, diagramID string) ([]settings.Setting, bool) {
	d, ok := c.cache.GetDiagram(ctx, diagramID)
	if !ok {
		return nil, false
	}
	var g *graph.Graph
	if ds, ok := c.cache.GetDataset(ctx, d.GraphID); ok {
		g = ds.Graph()
	}
	return settings.GetVisibleSettings(d, g), true
}

// Close waits for running imports, then closes the trace exporter and the store.
func (c *Commviz) Close() error {
	c.workers.Wait()

	var errs []error
	if c.exporter != nil {
		if err := c.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close trace exporter: %w", err))
		}
	}
	if c.kv != nil {
		if err := c.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Commviz) export(ctx context.Context, rec *trace.TraceRecord) {
	if err := c.exporter.Export(ctx, rec); err != nil {
		c.logger.Warn("trace export failed", "operation", rec.Operation, "error", err)
	}
}
