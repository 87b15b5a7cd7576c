// Package dataset bundles a parsed graph with its derived indices.
package dataset

import (
	"sync"

	"github.com/dan-solli/commviz/pkg/enrich"
	"github.com/dan-solli/commviz/pkg/graph"
)

// Dataset is an enriched graph plus a display name.
// Everything except the name is fixed at construction; the graph is treated
// as read-only once the Dataset has been created.
type Dataset struct {
	graph          *graph.Graph
	clusteredNodes []string
	sortedEdges    map[string][]graph.EdgeID

	mu   sync.RWMutex
	name string
}

// New enriches g (community detection plus both indices) and wraps it.
func New(g *graph.Graph, name string) *Dataset {
	return NewWithOptions(g, name, enrich.Options{})
}

// NewWithOptions is New with explicit community-detection options.
func NewWithOptions(g *graph.Graph, name string, opts enrich.Options) *Dataset {
	result := enrich.Enrich(g, opts)
	return &Dataset{
		graph:          g,
		clusteredNodes: result.ClusteredNodes,
		sortedEdges:    result.SortedEdges,
		name:           name,
	}
}

// Graph returns the underlying graph. Callers must not mutate it.
func (d *Dataset) Graph() *graph.Graph {
	return d.graph
}

// Name returns the display name.
func (d *Dataset) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// SetName changes the display name.
func (d *Dataset) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// ClusteredNodes returns the node ids ordered by community.
// The slice is shared; do not modify it.
func (d *Dataset) ClusteredNodes() []string {
	return d.clusteredNodes
}

// SortedEdges returns the per-node date-sorted outgoing edges.
// The map is shared; do not modify it.
func (d *Dataset) SortedEdges() map[string][]graph.EdgeID {
	return d.sortedEdges
}

// SortedEdgesOf returns one node's outgoing edges ordered by date.
func (d *Dataset) SortedEdgesOf(node string) []graph.EdgeID {
	return d.sortedEdges[node]
}
