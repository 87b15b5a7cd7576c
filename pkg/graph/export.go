package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Serialized is the exportable form of a Graph, shaped like the graphology
// JSON export so existing browser datasets stay readable.
type Serialized struct {
	Options    Options          `json:"options"`
	Attributes Attributes       `json:"attributes,omitempty"`
	Nodes      []SerializedNode `json:"nodes"`
	Edges      []SerializedEdge `json:"edges"`
}

// Options describes the graph flavour of a serialized graph.
type Options struct {
	Type           string `json:"type"`
	Multi          bool   `json:"multi"`
	AllowSelfLoops bool   `json:"allowSelfLoops"`
}

// SerializedNode is one exported node.
type SerializedNode struct {
	Key        string     `json:"key"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// SerializedEdge is one exported edge.
type SerializedEdge struct {
	Key        string     `json:"key,omitempty"`
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// Export returns the serializable representation of the graph.
// Nodes and edges are emitted in insertion order.
func (g *Graph) Export() Serialized {
	s := Serialized{
		Options: Options{Type: "directed", Multi: true, AllowSelfLoops: true},
		Nodes:   make([]SerializedNode, 0, len(g.order)),
		Edges:   make([]SerializedEdge, 0, len(g.edges)),
	}

	for _, id := range g.order {
		s.Nodes = append(s.Nodes, SerializedNode{
			Key:        id,
			Attributes: copyAttributes(g.nodes[id].Attributes),
		})
	}

	for _, e := range g.edges {
		s.Edges = append(s.Edges, SerializedEdge{
			Key:        strconv.Itoa(int(e.ID)),
			Source:     e.Source,
			Target:     e.Target,
			Attributes: copyAttributes(e.Attributes),
		})
	}

	return s
}

// FromSerialized rebuilds a Graph from its exported form.
// Edge endpoints that were not exported as nodes are upserted as bare nodes.
func FromSerialized(s Serialized) (*Graph, error) {
	if s.Options.Type != "" && s.Options.Type != "directed" && s.Options.Type != "mixed" {
		return nil, fmt.Errorf("unsupported graph type %q", s.Options.Type)
	}

	g := New()
	for _, n := range s.Nodes {
		if n.Key == "" {
			return nil, fmt.Errorf("serialized node without key")
		}
		g.MergeNode(n.Key, n.Attributes)
	}

	for i, e := range s.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, fmt.Errorf("serialized edge %d without endpoints", i)
		}
		g.MergeNode(e.Source, nil)
		g.MergeNode(e.Target, nil)
		if _, err := g.AddDirectedEdge(e.Source, e.Target, e.Attributes); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func copyAttributes(attrs Attributes) Attributes {
	if len(attrs) == 0 {
		return nil
	}
	out := make(Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// MarshalJSON writes integral float64 values with a fractional part ("2.0")
// so UnmarshalJSON can tell them apart from integers.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(a))
	for k, v := range a {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
			out[k] = json.RawMessage(strconv.FormatFloat(f, 'f', 1, 64))
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores numbers as int64 when written without a fraction
// or exponent, and as float64 otherwise.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*a = nil
		return nil
	}
	for k, v := range raw {
		raw[k] = restoreNumbers(v)
	}
	*a = raw
	return nil
}

func restoreNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if !strings.ContainsAny(v.String(), ".eE") {
			if i, err := v.Int64(); err == nil {
				return i
			}
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		for i := range v {
			v[i] = restoreNumbers(v[i])
		}
	case map[string]any:
		for k := range v {
			v[k] = restoreNumbers(v[k])
		}
	}
	return v
}
