package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dan-solli/commviz/pkg/dataset"
	"github.com/dan-solli/commviz/pkg/graph"
)

// datasetRecord is the durable form of a dataset. Derived indices are not
// stored; they are rebuilt when the dataset is loaded.
type datasetRecord struct {
	Name  string           `json:"name"`
	Graph graph.Serialized `json:"graph"`
}

func encodeDataset(ds *dataset.Dataset) ([]byte, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	return json.Marshal(datasetRecord{Name: ds.Name(), Graph: ds.Graph().Export()})
}

func (c *Cache) decodeDataset(_ string, data []byte) (*dataset.Dataset, error) {
	var rec datasetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	g, err := graph.FromSerialized(rec.Graph)
	if err != nil {
		return nil, err
	}
	return dataset.NewWithOptions(g, rec.Name, c.cfg.Enrich), nil
}

// AddDataset stores ds under id in memory and durably, and appends id to
// the dataset list. A *store.StorageError means the durable tier was not
// updated; ds is still served from memory for the life of this Cache.
func (c *Cache) AddDataset(ctx context.Context, id string, ds *dataset.Dataset) error {
	if ds == nil {
		return errors.New("nil dataset")
	}
	return c.datasets.add(ctx, id, ds)
}

// GetDataset returns the dataset stored under id. A dataset found only in
// the durable tier is rebuilt (graph plus enrichment) and kept in memory.
func (c *Cache) GetDataset(ctx context.Context, id string) (*dataset.Dataset, bool) {
	return c.datasets.get(ctx, id)
}

// RemoveDataset deletes id from both tiers and from the dataset list.
func (c *Cache) RemoveDataset(ctx context.Context, id string) error {
	return c.datasets.remove(ctx, id)
}

// Datasets returns the known dataset ids in insertion order.
func (c *Cache) Datasets(ctx context.Context) ([]string, error) {
	return c.datasets.listIDs(ctx)
}

// EvictDataset drops the in-memory copy of id; the next GetDataset reloads it.
func (c *Cache) EvictDataset(id string) {
	c.datasets.evict(id)
}
