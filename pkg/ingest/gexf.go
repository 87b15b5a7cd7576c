package ingest

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/dan-solli/commviz/pkg/graph"
)

type gexfDocument struct {
	XMLName xml.Name   `xml:"gexf"`
	Graph   *gexfGraph `xml:"graph"`
}

type gexfGraph struct {
	DefaultEdgeType string           `xml:"defaultedgetype,attr"`
	Attributes      []gexfAttributes `xml:"attributes"`
	Nodes           []gexfNode       `xml:"nodes>node"`
	Edges           []gexfEdge       `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class      string          `xml:"class,attr"`
	Attributes []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID      string  `xml:"id,attr"`
	Title   string  `xml:"title,attr"`
	Type    string  `xml:"type,attr"`
	Default *string `xml:"default"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr"`
	AttValues []gexfAttValue `xml:"attvalues>attvalue"`
}

type gexfEdge struct {
	ID        string         `xml:"id,attr"`
	Source    string         `xml:"source,attr"`
	Target    string         `xml:"target,attr"`
	Label     string         `xml:"label,attr"`
	Weight    string         `xml:"weight,attr"`
	AttValues []gexfAttValue `xml:"attvalues>attvalue"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

// attrSchema resolves attvalue ids to keys and typed values for one class.
type attrSchema map[string]gexfAttribute

func (s attrSchema) resolve(values []gexfAttValue) graph.Attributes {
	attrs := make(graph.Attributes, len(s))

	// Declared defaults first, explicit values override
	for _, def := range s {
		if def.Default != nil {
			attrs[def.key()] = typedValue(def.Type, *def.Default)
		}
	}

	for _, av := range values {
		def, ok := s[av.For]
		if !ok {
			attrs[av.For] = av.Value
			continue
		}
		attrs[def.key()] = typedValue(def.Type, av.Value)
	}

	return attrs
}

func (a gexfAttribute) key() string {
	if a.Title != "" {
		return a.Title
	}
	return a.ID
}

func typedValue(kind, raw string) any {
	switch strings.ToLower(kind) {
	case "integer", "long":
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return v
		}
	case "float", "double":
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	return raw
}

func parseGEXF(data []byte, filename string) (*graph.Graph, error) {
	var doc gexfDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, &FormatError{Filename: filename, Reason: "malformed GEXF", Err: err}
	}
	if doc.Graph == nil {
		return nil, &FormatError{Filename: filename, Reason: "GEXF document has no graph element"}
	}

	nodeSchema := attrSchema{}
	edgeSchema := attrSchema{}
	for _, group := range doc.Graph.Attributes {
		target := nodeSchema
		if strings.EqualFold(group.Class, "edge") {
			target = edgeSchema
		}
		for _, a := range group.Attributes {
			target[a.ID] = a
		}
	}

	g := graph.New()
	for _, n := range doc.Graph.Nodes {
		if n.ID == "" {
			return nil, &FormatError{Filename: filename, Reason: "GEXF node without id"}
		}
		attrs := nodeSchema.resolve(n.AttValues)
		if n.Label != "" {
			attrs[AttrLabel] = n.Label
		}
		g.MergeNode(n.ID, attrs)
	}

	for _, e := range doc.Graph.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, &FormatError{Filename: filename, Reason: "GEXF edge without source or target"}
		}
		attrs := edgeSchema.resolve(e.AttValues)
		if e.Label != "" {
			attrs[AttrLabel] = e.Label
		}
		if e.Weight != "" {
			attrs[AttrWeight] = typedValue("double", e.Weight)
		}

		// Undeclared endpoints become bare nodes
		g.MergeNode(e.Source, nil)
		g.MergeNode(e.Target, nil)
		if _, err := g.AddDirectedEdge(e.Source, e.Target, attrs); err != nil {
			return nil, &FormatError{Filename: filename, Reason: "invalid GEXF edge", Err: err}
		}
	}

	return g, nil
}
