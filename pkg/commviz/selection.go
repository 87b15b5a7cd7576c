package commviz

import (
	"slices"
	"sync"
)

// SelectedNode identifies a node the user selected in some view.
type SelectedNode struct {
	DatasetID string `json:"datasetID"`
	NodeID    string `json:"nodeID"`
}

// Selection is the node selection shared between views. It is populated by
// the view layer; nothing in this module reads or validates it.
type Selection struct {
	mu    sync.RWMutex
	nodes []SelectedNode
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Add appends n unless it is already selected.
func (s *Selection) Add(n SelectedNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.nodes, n) {
		s.nodes = append(s.nodes, n)
	}
}

// Remove drops n and reports whether it was selected.
func (s *Selection) Remove(n SelectedNode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.nodes, n)
	if i < 0 {
		return false
	}
	s.nodes = slices.Delete(s.nodes, i, i+1)
	return true
}

// List returns the selection in selection order.
func (s *Selection) List() []SelectedNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.nodes)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.nodes = nil
	s.mu.Unlock()
}
