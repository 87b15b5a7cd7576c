// Package settings is the per-kind settings registry for diagrams: default
// values, the setting widgets a view should show, and range validation.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid diagram settings")

var validate = validator.New()

// ArcSettings configures a node-link arc diagram.
type ArcSettings struct {
	Variety                string `json:"variety" validate:"oneof=circle line"`
	EdgeHighlightDirection string `json:"edgeHighlightDirection" validate:"oneof=incoming outgoing both"`
	FilterJobtitle         string `json:"filterJobtitle" validate:"required"`
}

// SunburstSettings configures a hierarchical sunburst or flame diagram.
// A nil Root means no root node is selected.
type SunburstSettings struct {
	Variety       string  `json:"variety" validate:"oneof=sunburst flame inverse-flame"`
	Root          *string `json:"root"`
	EdgeType      string  `json:"edgeType" validate:"oneof=incoming outgoing both"`
	Height        int     `json:"height" validate:"min=2,max=10"`
	WidthType     string  `json:"widthType" validate:"required"`
	ColourType    string  `json:"colourType" validate:"required"`
	DiagramColour int     `json:"diagramColour" validate:"min=0,max=16777215"`
	MinRenderSize int     `json:"minRenderSize" validate:"min=1"`
}

// MatrixSettings configures an adjacency matrix.
type MatrixSettings struct {
	Variety  string `json:"variety" validate:"eq=matrix"`
	Ordering string `json:"ordering" validate:"oneof=community name degree"`
}

// DistributionSettings configures a statistical distribution chart.
type DistributionSettings struct {
	Variety     string `json:"variety" validate:"oneof=distribution histogram"`
	Logarithmic bool   `json:"logarithmic"`
}

// defaults returns a pointer to the typed default settings for kind.
func defaults(kind diagram.Kind) (any, bool) {
	switch kind {
	case diagram.ArcDiagram:
		return &ArcSettings{
			Variety:                "circle",
			EdgeHighlightDirection: "outgoing",
			FilterJobtitle:         "None",
		}, true
	case diagram.SunburstDiagram:
		return &SunburstSettings{
			Variety:       "sunburst",
			EdgeType:      "outgoing",
			Height:        4,
			WidthType:     "connections",
			ColourType:    "rainbow",
			DiagramColour: 0x4287f5,
			MinRenderSize: 10000,
		}, true
	case diagram.MatrixDiagram:
		return &MatrixSettings{
			Variety:  "matrix",
			Ordering: "community",
		}, true
	case diagram.DistributionDiagram:
		return &DistributionSettings{
			Variety:     "distribution",
			Logarithmic: false,
		}, true
	}
	return nil, false
}

// GetDefaultSettings returns the default settings map for kind.
// An unknown kind yields an empty map.
//
// Values have the shape they take after a JSON round trip (numbers are
// float64), so a freshly created diagram and one reloaded from storage agree.
func GetDefaultSettings(kind diagram.Kind) map[string]any {
	typed, ok := defaults(kind)
	if !ok {
		return map[string]any{}
	}
	m, err := toMap(typed)
	if err != nil {
		return map[string]any{}
	}
	return m
}

// Validate overlays values on the defaults for kind and checks the result.
// Keys the kind does not define are ignored.
func Validate(kind diagram.Kind, values map[string]any) error {
	typed, ok := defaults(kind)
	if !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidSettings, diagram.ErrUnknownKind, kind)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidSettings, kind, err)
	}
	if err := json.Unmarshal(data, typed); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidSettings, kind, err)
	}
	if err := validate.Struct(typed); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidSettings, kind, err)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
