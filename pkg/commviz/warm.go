package commviz

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dan-solli/commviz/pkg/trace"
	"golang.org/x/sync/errgroup"
)

// WarmStats counts what Warm loaded.
type WarmStats struct {
	Datasets int
	Diagrams int
	Missing  int // listed ids whose object could not be loaded
}

// Warm loads every listed dataset and diagram into memory, at most
// Config.WarmParallelism at a time. Missing or undecodable objects are
// counted, not returned as errors; only failing to read the id lists is.
func (c *Commviz) Warm(ctx context.Context) (WarmStats, error) {
	start := time.Now()
	rec := trace.Start("warm")

	stats, err := c.warm(ctx, rec)

	errType := ClassifyError(err)
	status := "success"
	if err != nil {
		status = "error"
		c.metrics.RecordError(ctx, "warm", errType)
	}
	c.metrics.RecordOperation(ctx, "warm", status, time.Since(start).Milliseconds())
	c.export(ctx, rec.Finish(errType))
	return stats, err
}

func (c *Commviz) warm(ctx context.Context, rec *trace.Recorder) (WarmStats, error) {
	span := rec.StartSpan("list")
	datasetIDs, err := c.cache.Datasets(ctx)
	if err != nil {
		span.Finish(ClassifyError(err), nil)
		return WarmStats{}, err
	}
	diagramIDs, err := c.cache.Diagrams(ctx)
	if err != nil {
		span.Finish(ClassifyError(err), nil)
		return WarmStats{}, err
	}
	span.Finish("", map[string]int64{
		"datasets": int64(len(datasetIDs)),
		"diagrams": int64(len(diagramIDs)),
	})

	var loadedDatasets, loadedDiagrams, missing atomic.Int64

	span = rec.StartSpan("load")
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.config.WarmParallelism)

	for _, id := range datasetIDs {
		eg.Go(func() error {
			if _, ok := c.cache.GetDataset(gCtx, id); ok {
				loadedDatasets.Add(1)
			} else {
				missing.Add(1)
			}
			return nil
		})
	}
	for _, id := range diagramIDs {
		eg.Go(func() error {
			if _, ok := c.cache.GetDiagram(gCtx, id); ok {
				loadedDiagrams.Add(1)
			} else {
				missing.Add(1)
			}
			return nil
		})
	}
	// Loads report failure as "missing", never as an error
	_ = eg.Wait()

	stats := WarmStats{
		Datasets: int(loadedDatasets.Load()),
		Diagrams: int(loadedDiagrams.Load()),
		Missing:  int(missing.Load()),
	}
	span.Finish("", map[string]int64{"missing": int64(stats.Missing)})

	c.logger.Info("cache warmed",
		"datasets", stats.Datasets,
		"diagrams", stats.Diagrams,
		"missing", stats.Missing,
	)
	return stats, nil
}
