// Package ingest turns uploaded dataset files into attributed graphs.
//
// Two formats are understood: delimited text (one communication record per
// line, fixed 9-column layout) and GEXF, the graph-exchange XML format.
// Both produce the same graph shape.
package ingest

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dan-solli/commviz/pkg/graph"
)

// Attribute keys produced by ingestion.
const (
	AttrEmail       = "email"
	AttrJobTitle    = "jobtitle"
	AttrDate        = "date"
	AttrMessageType = "messageType"
	AttrSentiment   = "sentiment"
	AttrLabel       = "label"
	AttrWeight      = "weight"
)

// FormatError reports that an input file could not be interpreted.
// Malformed individual rows are not FormatErrors; they are skipped.
type FormatError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid dataset %q: %s", e.Filename, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Stats summarizes one parse.
type Stats struct {
	Format       string // "delimited" or "gexf"
	RowsRead     int    // data rows seen (header excluded)
	RowsAccepted int
	RowsSkipped  int // column-count mismatches, CSV syntax errors, failed validation
}

// Parse decodes raw file content into a graph. The format is chosen by the
// extension of the declared filename: ".gexf" selects the XML decoder,
// anything else the delimited-text path.
func Parse(data []byte, filename string) (*graph.Graph, error) {
	g, _, err := ParseWithStats(data, filename)
	return g, err
}

// ParseReader reads r fully and parses it like Parse.
func ParseReader(r io.Reader, filename string) (*graph.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Filename: filename, Reason: "read failed", Err: err}
	}
	return Parse(data, filename)
}

// ParseWithStats is Parse, also returning row statistics.
func ParseWithStats(data []byte, filename string) (*graph.Graph, Stats, error) {
	if IsGEXF(filename) {
		g, err := parseGEXF(data, filename)
		return g, Stats{Format: "gexf"}, err
	}
	return parseDelimited(data, filename)
}

// IsGEXF reports whether the filename selects the GEXF decoder.
func IsGEXF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".gexf")
}

// DatasetName derives a display name from an uploaded filename by dropping
// directories and the extension.
func DatasetName(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
