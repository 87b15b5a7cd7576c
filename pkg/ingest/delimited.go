package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dan-solli/commviz/pkg/graph"
)

// Positional column layout of the delimited format. Header values are not
// interpreted; the header only fixes the expected column count.
const (
	colDate = iota
	colSource
	colSourceEmail
	colSourceJobTitle
	colTarget
	colTargetEmail
	colTargetJobTitle
	colMessageType
	colSentiment

	// MinColumns is the number of columns the layout requires.
	MinColumns
)

// record is one accepted communication row.
type record struct {
	Date           string `validate:"required"`
	Source         string `validate:"required"`
	SourceEmail    string
	SourceJobTitle string
	Target         string `validate:"required"`
	TargetEmail    string
	TargetJobTitle string
	MessageType    string
	Sentiment      string
}

var validate = validator.New()

func parseDelimited(data []byte, filename string) (*graph.Graph, Stats, error) {
	stats := Stats{Format: "delimited"}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, stats, &FormatError{Filename: filename, Reason: "empty input"}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, stats, &FormatError{Filename: filename, Reason: "unreadable header", Err: err}
	}
	columns := len(header)
	if columns < MinColumns {
		return nil, stats, &FormatError{
			Filename: filename,
			Reason:   "header declares fewer than 9 columns",
		}
	}

	g := graph.New()
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// Syntax errors are confined to one record; keep going
				stats.RowsRead++
				stats.RowsSkipped++
				continue
			}
			return nil, stats, &FormatError{Filename: filename, Reason: "read failed", Err: err}
		}
		stats.RowsRead++

		if len(fields) != columns {
			stats.RowsSkipped++
			continue
		}

		rec := toRecord(fields)
		if err := validate.Struct(rec); err != nil {
			stats.RowsSkipped++
			continue
		}

		addRecord(g, rec)
		stats.RowsAccepted++
	}

	return g, stats, nil
}

func toRecord(fields []string) record {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return record{
		Date:           fields[colDate],
		Source:         fields[colSource],
		SourceEmail:    fields[colSourceEmail],
		SourceJobTitle: fields[colSourceJobTitle],
		Target:         fields[colTarget],
		TargetEmail:    fields[colTargetEmail],
		TargetJobTitle: fields[colTargetJobTitle],
		MessageType:    fields[colMessageType],
		Sentiment:      fields[colSentiment],
	}
}

// addRecord upserts both endpoints and appends one parallel edge.
func addRecord(g *graph.Graph, rec record) {
	g.MergeNode(rec.Source, graph.Attributes{
		AttrEmail:    rec.SourceEmail,
		AttrJobTitle: rec.SourceJobTitle,
	})
	g.MergeNode(rec.Target, graph.Attributes{
		AttrEmail:    rec.TargetEmail,
		AttrJobTitle: rec.TargetJobTitle,
	})

	// Both endpoints exist at this point
	_, _ = g.AddDirectedEdge(rec.Source, rec.Target, graph.Attributes{
		AttrDate:        rec.Date,
		AttrMessageType: rec.MessageType,
		AttrSentiment:   rec.Sentiment,
	})
}
