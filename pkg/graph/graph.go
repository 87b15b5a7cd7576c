// Package graph provides the attributed directed multigraph that datasets are built on.
package graph

import (
	"errors"
	"fmt"
)

// Attributes holds open key/value metadata for a node or an edge.
type Attributes map[string]any

// EdgeID identifies an edge. IDs are assigned sequentially in insertion order.
type EdgeID int

// Node represents a person in a communication dataset.
type Node struct {
	ID         string     // Unique identifier (e.g. the sender id from the CSV)
	Attributes Attributes // email, jobtitle, community, ...
}

// Edge represents one directed message between two nodes.
// Multiple edges may connect the same ordered pair.
type Edge struct {
	ID         EdgeID
	Source     string
	Target     string
	Attributes Attributes // date, messageType, sentiment, ...
}

// ErrNodeNotFound indicates that an operation referenced a node that does not exist.
var ErrNodeNotFound = errors.New("node not found")

// ErrDuplicateNode indicates that AddNode was called for an existing node id.
var ErrDuplicateNode = errors.New("node already exists")

// Graph is a directed multigraph with per-node and per-edge attribute maps.
// Node iteration order is insertion order, which makes every derived index
// reproducible. A Graph is not safe for concurrent mutation.
type Graph struct {
	nodes map[string]*Node
	order []string
	edges []*Edge
	out   map[string][]EdgeID
	in    map[string][]EdgeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		out:   make(map[string][]EdgeID),
		in:    make(map[string][]EdgeID),
	}
}

// AddNode adds a new node. Fails with ErrDuplicateNode if the id is taken.
func (g *Graph) AddNode(id string, attrs Attributes) error {
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, id)
	}
	g.insertNode(id, attrs)
	return nil
}

// MergeNode upserts a node: a new node is created, or the attributes are merged
// into the existing node's map (last write wins per key).
func (g *Graph) MergeNode(id string, attrs Attributes) *Node {
	if node, ok := g.nodes[id]; ok {
		for k, v := range attrs {
			node.Attributes[k] = v
		}
		return node
	}
	return g.insertNode(id, attrs)
}

func (g *Graph) insertNode(id string, attrs Attributes) *Node {
	node := &Node{ID: id, Attributes: make(Attributes, len(attrs))}
	for k, v := range attrs {
		node.Attributes[k] = v
	}
	g.nodes[id] = node
	g.order = append(g.order, id)
	g.out[id] = nil
	g.in[id] = nil
	return node
}

// AddDirectedEdge appends a new edge source->target.
// Both endpoints must already exist.
func (g *Graph) AddDirectedEdge(source, target string, attrs Attributes) (EdgeID, error) {
	if _, ok := g.nodes[source]; !ok {
		return 0, fmt.Errorf("%w: source %q", ErrNodeNotFound, source)
	}
	if _, ok := g.nodes[target]; !ok {
		return 0, fmt.Errorf("%w: target %q", ErrNodeNotFound, target)
	}

	id := EdgeID(len(g.edges))
	edge := &Edge{ID: id, Source: source, Target: target, Attributes: make(Attributes, len(attrs))}
	for k, v := range attrs {
		edge.Attributes[k] = v
	}

	g.edges = append(g.edges, edge)
	g.out[source] = append(g.out[source], id)
	g.in[target] = append(g.in[target], id)
	return id, nil
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all node ids in iteration (insertion) order.
func (g *Graph) Nodes() []string {
	result := make([]string, len(g.order))
	copy(result, g.order)
	return result
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Edge returns the edge with the given id, or nil.
func (g *Graph) Edge(id EdgeID) *Edge {
	if id < 0 || int(id) >= len(g.edges) {
		return nil
	}
	return g.edges[id]
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []*Edge {
	result := make([]*Edge, len(g.edges))
	copy(result, g.edges)
	return result
}

// OutEdges returns the ids of edges whose source is the node, in insertion order.
func (g *Graph) OutEdges(id string) []EdgeID {
	return append([]EdgeID(nil), g.out[id]...)
}

// InEdges returns the ids of edges whose target is the node, in insertion order.
func (g *Graph) InEdges(id string) []EdgeID {
	return append([]EdgeID(nil), g.in[id]...)
}

// EdgesBetween returns every parallel edge source->target.
func (g *Graph) EdgesBetween(source, target string) []EdgeID {
	var result []EdgeID
	for _, id := range g.out[source] {
		if g.edges[id].Target == target {
			result = append(result, id)
		}
	}
	return result
}

// NodeAttribute returns one attribute of a node.
func (g *Graph) NodeAttribute(id, key string) (any, bool) {
	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	v, ok := node.Attributes[key]
	return v, ok
}

// SetNodeAttribute sets one attribute on an existing node.
func (g *Graph) SetNodeAttribute(id, key string, value any) error {
	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	node.Attributes[key] = value
	return nil
}

// EdgeAttribute returns one attribute of an edge.
func (g *Graph) EdgeAttribute(id EdgeID, key string) (any, bool) {
	edge := g.Edge(id)
	if edge == nil {
		return nil, false
	}
	v, ok := edge.Attributes[key]
	return v, ok
}

// EdgeString returns a string attribute of an edge, or "" when absent or not a string.
func (g *Graph) EdgeString(id EdgeID, key string) string {
	v, _ := g.EdgeAttribute(id, key)
	s, _ := v.(string)
	return s
}
