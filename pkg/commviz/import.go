package commviz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dan-solli/commviz/pkg/dataset"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/enrich"
	"github.com/dan-solli/commviz/pkg/ingest"
	"github.com/dan-solli/commviz/pkg/settings"
	"github.com/dan-solli/commviz/pkg/store"
	"github.com/dan-solli/commviz/pkg/trace"
)

// ImportResult describes one imported dataset.
type ImportResult struct {
	ID      string
	Dataset *dataset.Dataset
	Stats   ingest.Stats

	// Err is set only on results delivered by ImportAsync
	Err error
}

// Import parses data, enriches the graph and stores the dataset under id
// (a generated id when empty). The dataset is named after filename without
// its extension.
//
// A parse failure returns a *ingest.FormatError and no result. A durable
// write failure returns both the result and a *store.StorageError: the
// dataset is usable from memory for the life of this instance.
func (c *Commviz) Import(ctx context.Context, filename string, data []byte, id string) (*ImportResult, error) {
	start := time.Now()
	rec := trace.Start("import")

	result, err := c.runImport(ctx, rec, filename, data, id)

	errType := ClassifyError(err)
	status := "success"
	if err != nil {
		status = "error"
		c.metrics.RecordError(ctx, "import", errType)
	}
	c.metrics.RecordOperation(ctx, "import", status, time.Since(start).Milliseconds())
	c.export(ctx, rec.Finish(errType))

	return result, err
}

func (c *Commviz) runImport(ctx context.Context, rec *trace.Recorder, filename string, data []byte, id string) (*ImportResult, error) {
	span := rec.StartSpan("parse")
	g, stats, err := ingest.ParseWithStats(data, filename)
	if err != nil {
		span.Finish(ClassifyError(err), nil)
		c.logger.Warn("import rejected", "format", formatName(filename), "error", err)
		return nil, err
	}
	ms := span.Finish("", map[string]int64{
		"rowsRead":     int64(stats.RowsRead),
		"rowsAccepted": int64(stats.RowsAccepted),
		"rowsSkipped":  int64(stats.RowsSkipped),
		"nodeCount":    int64(g.NodeCount()),
		"edgeCount":    int64(g.EdgeCount()),
	})
	c.metrics.RecordStage(ctx, "import", "parse", ms)

	span = rec.StartSpan("enrich")
	ds := dataset.NewWithOptions(g, ingest.DatasetName(filename), enrich.Options{Resolution: c.config.Resolution})
	ms = span.Finish("", map[string]int64{"nodeCount": int64(g.NodeCount())})
	c.metrics.RecordStage(ctx, "import", "enrich", ms)

	if id == "" {
		if id, err = c.freeID(ctx, c.cache.Datasets); err != nil {
			span = rec.StartSpan("store")
			span.Finish(ClassifyError(err), nil)
			return nil, err
		}
	}
	rec.SetID("datasetId", id)
	result := &ImportResult{ID: id, Dataset: ds, Stats: stats}

	span = rec.StartSpan("store")
	err = c.cache.AddDataset(ctx, id, ds)
	ms = span.Finish(ClassifyError(err), nil)
	c.metrics.RecordStage(ctx, "import", "store", ms)

	c.logger.Info("dataset imported",
		"dataset_id", id,
		"format", formatName(filename),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"rows_skipped", stats.RowsSkipped,
		"stored", err == nil,
	)
	return result, err
}

// ImportAsync runs Import on a worker goroutine reading from r, and
// delivers exactly one result on the returned channel. Close waits for
// outstanding workers.
func (c *Commviz) ImportAsync(ctx context.Context, filename string, r io.Reader, id string) <-chan *ImportResult {
	out := make(chan *ImportResult, 1)
	c.workers.Add(1)

	go func() {
		defer c.workers.Done()
		defer close(out)

		data, err := io.ReadAll(r)
		if err != nil {
			out <- &ImportResult{ID: id, Err: &ingest.FormatError{Filename: filename, Reason: "read failed", Err: err}}
			return
		}
		if err := ctx.Err(); err != nil {
			out <- &ImportResult{ID: id, Err: err}
			return
		}

		result, err := c.Import(ctx, filename, data, id)
		if result == nil {
			result = &ImportResult{ID: id}
		}
		result.Err = err
		out <- result
	}()

	return out
}

// CreateDiagram attaches a new diagram of the given kind, with default
// settings, to a dataset id. As with Import, a *store.StorageError comes
// with a usable in-memory diagram.
func (c *Commviz) CreateDiagram(ctx context.Context, datasetID string, kind diagram.Kind) (*diagram.Diagram, error) {
	start := time.Now()
	rec := trace.Start("create_diagram")

	d, err := c.createDiagram(ctx, rec, datasetID, kind)

	errType := ClassifyError(err)
	status := "success"
	if err != nil {
		status = "error"
		c.metrics.RecordError(ctx, "create_diagram", errType)
	}
	c.metrics.RecordOperation(ctx, "create_diagram", status, time.Since(start).Milliseconds())
	c.export(ctx, rec.Finish(errType))
	return d, err
}

func (c *Commviz) createDiagram(ctx context.Context, rec *trace.Recorder, datasetID string, kind diagram.Kind) (*diagram.Diagram, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", diagram.ErrUnknownKind, kind)
	}

	span := rec.StartSpan("store")
	id, err := c.freeID(ctx, c.cache.Diagrams)
	if err != nil {
		span.Finish(ClassifyError(err), nil)
		return nil, err
	}
	rec.SetID("diagramId", id)
	rec.SetID("datasetId", datasetID)

	d := diagram.New(id, datasetID, kind, settings.GetDefaultSettings(kind))
	err = c.cache.AddDiagram(ctx, d)
	span.Finish(ClassifyError(err), nil)

	var se *store.StorageError
	if err != nil && !errors.As(err, &se) {
		return nil, err
	}
	c.logger.Debug("diagram created", "diagram_id", id, "dataset_id", datasetID, "type", string(kind))
	return d, err
}

// freeID returns a CreateID value not yet in the id list read by listed,
// adding a numeric suffix when the time-derived id is taken.
func (c *Commviz) freeID(ctx context.Context, listed func(context.Context) ([]string, error)) (string, error) {
	ids, err := listed(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[id] = true
	}

	id := c.cache.CreateID("")
	for n := 1; taken[id]; n++ {
		id = c.cache.CreateID(fmt.Sprintf("-%d", n))
	}
	return id, nil
}

func formatName(filename string) string {
	if ingest.IsGEXF(filename) {
		return "gexf"
	}
	return "delimited"
}
