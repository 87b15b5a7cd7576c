package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Range is an inclusive date window. Bounds use the dataset's date format.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FullRange is returned by FindMinMaxDates for datasets without edges.
var FullRange = Range{From: "0001-01-01", To: "9999-12-31"}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses a calendar date in one of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// DateIsBetween reports whether date lies inside r, bounds included.
// Comparison is by instant, not by string. Unparseable input yields false.
func DateIsBetween(date string, r Range) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	lo, err := ParseDate(r.From)
	if err != nil {
		return false
	}
	hi, err := ParseDate(r.To)
	if err != nil {
		return false
	}
	return !d.Before(lo) && !d.After(hi)
}

// FindMinMaxDates returns the earliest and latest edge date of the dataset.
// Only the first and last entry of each node's sorted edge list are inspected.
// A dataset without edges yields FullRange.
func FindMinMaxDates(d *Dataset) Range {
	var (
		r     Range
		found bool
	)

	g := d.Graph()
	for _, node := range g.Nodes() {
		edges := d.SortedEdgesOf(node)
		if len(edges) == 0 {
			continue
		}
		first := g.EdgeString(edges[0], "date")
		last := g.EdgeString(edges[len(edges)-1], "date")

		if !found {
			r = Range{From: first, To: last}
			found = true
			continue
		}
		if first < r.From {
			r.From = first
		}
		if last > r.To {
			r.To = last
		}
	}

	if !found {
		return FullRange
	}
	return r
}

// ContainsEdgeInRange reports whether any edge source->target has a date inside r.
func ContainsEdgeInRange(d *Dataset, source, target string, r Range) bool {
	g := d.Graph()
	for _, id := range d.SortedEdgesOf(source) {
		e := g.Edge(id)
		if e.Target != target {
			continue
		}
		if DateIsBetween(g.EdgeString(id, "date"), r) {
			return true
		}
	}
	return false
}
