package commviz

import (
	"github.com/dan-solli/commviz/pkg/dataset"
	"github.com/dan-solli/commviz/pkg/diagram"
	"github.com/dan-solli/commviz/pkg/ingest"
	"github.com/dan-solli/commviz/pkg/settings"
	"github.com/dan-solli/commviz/pkg/store"
)

// Type re-exports for caller convenience

// Dataset is re-exported from dataset package
type Dataset = dataset.Dataset

// Range is re-exported from dataset package
type Range = dataset.Range

// Diagram is re-exported from diagram package
type Diagram = diagram.Diagram

// DiagramKind is re-exported from diagram package
type DiagramKind = diagram.Kind

// DiagramKind constants re-exported from diagram package
const (
	ArcDiagram          = diagram.ArcDiagram
	SunburstDiagram     = diagram.SunburstDiagram
	MatrixDiagram       = diagram.MatrixDiagram
	DistributionDiagram = diagram.DistributionDiagram
)

// Setting is re-exported from settings package
type Setting = settings.Setting

// FormatError is re-exported from ingest package
type FormatError = ingest.FormatError

// StorageError is re-exported from store package
type StorageError = store.StorageError
