package settings

import (
	"slices"

	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/graph"
)

// Widget kinds a view renders a setting with.
const (
	SelectSetting   = "SelectSetting"
	NumberSetting   = "NumberSetting"
	CheckboxSetting = "CheckboxSetting"
)

// NoRoot is the sunburst root option meaning "no root selected".
const NoRoot = "[no root]"

// Setting describes one user-editable setting of a diagram.
type Setting struct {
	ID         string         `json:"id"`
	Component  string         `json:"component"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

var jobtitleFilters = []string{
	"None", "Employee", "Trader", "Vice President", "Managing",
	"Unknown", "Manager", "Director", "President", "CEO",
}

var directions = []string{"incoming", "outgoing", "both"}

// GetVisibleSettings lists the settings a view shows for d, in display order.
// g supplies the node-dependent options; it may be nil.
func GetVisibleSettings(d *diagram.Diagram, g *graph.Graph) []Setting {
	s := d.SettingsSnapshot()

	switch d.Type {
	case diagram.ArcDiagram:
		return []Setting{
			selectSetting("variety", "Node-Link Diagram Variety", []string{"circle", "line"}, s["variety"]),
			selectSetting("edgeHighlightDirection", "Edge Direction", directions, s["edgeHighlightDirection"]),
			selectSetting("filterJobtitle", "Filter", jobtitleFilters, s["filterJobtitle"]),
		}

	case diagram.SunburstDiagram:
		return []Setting{
			selectSetting("variety", "Hierarchical Diagram Variety", []string{"sunburst", "flame", "inverse-flame"}, s["variety"]),
			selectSetting("root", "Root Node", rootOptions(g), s["root"]),
			selectSetting("edgeType", "Edge Direction", directions, s["edgeType"]),
			selectSetting("colourType", "Colour Determined By", colourOptions(g), s["colourType"]),
			{ID: "minRenderSize", Component: NumberSetting, Name: "Minimum Node Size 1/x", Properties: map[string]any{
				"min":   1,
				"value": s["minRenderSize"],
			}},
			{ID: "height", Component: NumberSetting, Name: "Layer Count", Properties: map[string]any{
				"min":   2,
				"max":   10,
				"value": s["height"],
			}},
		}

	case diagram.MatrixDiagram:
		return []Setting{
			selectSetting("ordering", "Node Ordering", []string{"community", "name", "degree"}, s["ordering"]),
		}

	case diagram.DistributionDiagram:
		return []Setting{
			selectSetting("variety", "Diagram Variety", []string{"distribution", "histogram"}, s["variety"]),
			{ID: "logarithmic", Component: CheckboxSetting, Name: "Logarithmic", Properties: map[string]any{
				"value": s["logarithmic"],
			}},
		}
	}
	return nil
}

func selectSetting(id, name string, options []string, value any) Setting {
	return Setting{ID: id, Component: SelectSetting, Name: name, Properties: map[string]any{
		"options": options,
		"value":   value,
	}}
}

func rootOptions(g *graph.Graph) []string {
	opts := []string{NoRoot}
	if g == nil {
		return opts
	}
	return append(opts, g.Nodes()...)
}

// colourOptions offers "rainbow" plus every attribute key of the first node.
func colourOptions(g *graph.Graph) []string {
	opts := []string{"rainbow"}
	if g == nil || g.NodeCount() == 0 {
		return opts
	}
	first := g.Node(g.Nodes()[0])
	keys := make([]string, 0, len(first.Attributes))
	for k := range first.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return append(opts, keys...)
}
