// Package diagram holds the per-visualization configuration record that the
// cache persists and the settings registry reads.
package diagram

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Kind names a diagram type.
type Kind string

const (
	ArcDiagram          Kind = "ArcDiagram"
	SunburstDiagram     Kind = "SunburstDiagram"
	MatrixDiagram       Kind = "MatrixDiagram"
	DistributionDiagram Kind = "DistributionDiagram"
)

// ErrUnknownKind is returned when a diagram type string is not recognized.
var ErrUnknownKind = errors.New("unknown diagram kind")

// Kinds lists every known diagram kind.
func Kinds() []Kind {
	return []Kind{ArcDiagram, SunburstDiagram, MatrixDiagram, DistributionDiagram}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case ArcDiagram, SunburstDiagram, MatrixDiagram, DistributionDiagram:
		return true
	}
	return false
}

// ParseKind converts a type string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Subscriber receives change notifications for a diagram.
type Subscriber interface {
	DiagramChanged(d *Diagram, changedKey string)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(d *Diagram, changedKey string)

// DiagramChanged calls f(d, changedKey).
func (f SubscriberFunc) DiagramChanged(d *Diagram, changedKey string) {
	f(d, changedKey)
}

type subscription struct {
	id int
	s  Subscriber
}

// Diagram is one visualization attached to a dataset.
// ID, GraphID and Type are fixed at construction. GraphID is not checked
// against the dataset space; dangling ids are tolerated.
type Diagram struct {
	ID      string
	GraphID string
	Type    Kind

	mu        sync.RWMutex
	name      string
	settings  map[string]any
	invisible bool

	subMu       sync.Mutex
	subscribers []subscription
	nextSubID   int
}

// New creates a diagram. A nil settings map starts empty; a non-nil map is copied.
func New(id, graphID string, kind Kind, settings map[string]any) *Diagram {
	d := &Diagram{
		ID:       id,
		GraphID:  graphID,
		Type:     kind,
		name:     DefaultName(kind, id),
		settings: make(map[string]any, len(settings)),
	}
	maps.Copy(d.settings, settings)
	return d
}

// DefaultName returns the "<type>-<id>" name given to new diagrams.
func DefaultName(kind Kind, id string) string {
	return string(kind) + "-" + id
}

// Name returns the display name.
func (d *Diagram) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// SetName changes the display name without notifying subscribers.
func (d *Diagram) SetName(name string) {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
}

// Invisible reports whether the diagram is hidden.
func (d *Diagram) Invisible() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.invisible
}

// SetInvisible hides or shows the diagram without notifying subscribers.
func (d *Diagram) SetInvisible(invisible bool) {
	d.mu.Lock()
	d.invisible = invisible
	d.mu.Unlock()
}

// Setting returns one setting value.
func (d *Diagram) Setting(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.settings[key]
	return v, ok
}

// SettingsSnapshot returns a shallow copy of the settings map.
func (d *Diagram) SettingsSnapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.settings)
}

// ApplySettings writes key/value and every further pair from keyvals.
// keyvals must alternate string keys and values. Nothing is written when
// keyvals is malformed.
func (d *Diagram) ApplySettings(key string, value any, keyvals ...any) error {
	if len(keyvals)%2 != 0 {
		return fmt.Errorf("odd number of key/value arguments: %d", len(keyvals))
	}
	pending := map[string]any{key: value}
	order := []string{key}
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			return fmt.Errorf("setting key at position %d is %T, not string", i, keyvals[i])
		}
		if _, seen := pending[k]; !seen {
			order = append(order, k)
		}
		pending[k] = keyvals[i+1]
	}

	d.mu.Lock()
	for _, k := range order {
		d.settings[k] = pending[k]
	}
	d.mu.Unlock()
	return nil
}

// Subscribe registers s and returns a function that removes it again.
func (d *Diagram) Subscribe(s Subscriber) (unsubscribe func()) {
	d.subMu.Lock()
	id := d.nextSubID
	d.nextSubID++
	d.subscribers = append(d.subscribers, subscription{id: id, s: s})
	d.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.subMu.Lock()
			defer d.subMu.Unlock()
			for i, sub := range d.subscribers {
				if sub.id == id {
					d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// SubscriberCount returns the number of registered subscribers.
func (d *Diagram) SubscriberCount() int {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return len(d.subscribers)
}

// Notify calls every subscriber once, in registration order, with changedKey.
// Subscribers run without any diagram lock held and may read the diagram.
func (d *Diagram) Notify(changedKey string) {
	d.subMu.Lock()
	subs := make([]Subscriber, len(d.subscribers))
	for i, sub := range d.subscribers {
		subs[i] = sub.s
	}
	d.subMu.Unlock()

	for _, s := range subs {
		s.DiagramChanged(d, changedKey)
	}
}

// record is the durable form; subscribers are never part of it.
type record struct {
	ID        string         `json:"id"`
	GraphID   string         `json:"graphID"`
	Type      Kind           `json:"type"`
	Name      string         `json:"name"`
	Settings  map[string]any `json:"settings"`
	Invisible bool           `json:"invisible"`
}

// MarshalJSON encodes every field except the subscriber list.
func (d *Diagram) MarshalJSON() ([]byte, error) {
	d.mu.RLock()
	rec := record{
		ID:        d.ID,
		GraphID:   d.GraphID,
		Type:      d.Type,
		Name:      d.name,
		Settings:  maps.Clone(d.settings),
		Invisible: d.invisible,
	}
	d.mu.RUnlock()
	if rec.Settings == nil {
		rec.Settings = map[string]any{}
	}
	return json.Marshal(rec)
}

// Decode rebuilds a diagram from its durable form. The result has no subscribers.
func Decode(data []byte) (*Diagram, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode diagram: %w", err)
	}
	if rec.ID == "" {
		return nil, errors.New("failed to decode diagram: missing id")
	}
	if !rec.Type.Valid() {
		return nil, fmt.Errorf("failed to decode diagram %s: %w: %q", rec.ID, ErrUnknownKind, rec.Type)
	}

	d := New(rec.ID, rec.GraphID, rec.Type, rec.Settings)
	if rec.Name != "" {
		d.name = rec.Name
	}
	d.invisible = rec.Invisible
	return d, nil
}
