package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dan-solli/commviz/pkg/diagram"
)

var errNilDiagram = errors.New("nil diagram")

func encodeDiagram(d *diagram.Diagram) ([]byte, error) {
	if d == nil {
		return nil, errNilDiagram
	}
	return json.Marshal(d)
}

func decodeDiagram(id string, data []byte) (*diagram.Diagram, error) {
	d, err := diagram.Decode(data)
	if err != nil {
		return nil, err
	}
	if d.ID != id {
		return nil, fmt.Errorf("stored diagram has id %q", d.ID)
	}
	return d, nil
}

// AddDiagram stores d under d.ID and appends the id to the diagram list.
func (c *Cache) AddDiagram(ctx context.Context, d *diagram.Diagram) error {
	if d == nil {
		return errNilDiagram
	}
	return c.diagrams.add(ctx, d.ID, d)
}

// GetDiagram returns the diagram stored under id. A diagram loaded from the
// durable tier starts with no subscribers.
func (c *Cache) GetDiagram(ctx context.Context, id string) (*diagram.Diagram, bool) {
	return c.diagrams.get(ctx, id)
}

// RemoveDiagram deletes d from both tiers and from the diagram list.
func (c *Cache) RemoveDiagram(ctx context.Context, d *diagram.Diagram) error {
	if d == nil {
		return nil
	}
	return c.diagrams.remove(ctx, d.ID)
}

// RemoveDiagramByID is RemoveDiagram for callers holding only the id.
func (c *Cache) RemoveDiagramByID(ctx context.Context, id string) error {
	return c.diagrams.remove(ctx, id)
}

// Diagrams returns the known diagram ids in insertion order.
func (c *Cache) Diagrams(ctx context.Context) ([]string, error) {
	return c.diagrams.listIDs(ctx)
}

// EvictDiagram drops the in-memory copy of id; the next GetDiagram reloads it.
func (c *Cache) EvictDiagram(id string) {
	c.diagrams.evict(id)
}

// ChangeSetting writes key=value plus any further key/value pairs to d's
// settings, notifies subscribers once with key, then persists d.
//
// The persisted form is a snapshot taken after subscribers return, so any
// setting a subscriber writes is persisted too. A remove racing with this
// call can leave the object key behind without a list entry.
func (c *Cache) ChangeSetting(ctx context.Context, d *diagram.Diagram, key string, value any, keyvals ...any) error {
	if d == nil {
		return errNilDiagram
	}
	if err := d.ApplySettings(key, value, keyvals...); err != nil {
		return err
	}
	d.Notify(key)
	return c.persistDiagram(ctx, "change_setting", d)
}

// ChangeName renames d, notifies subscribers with "name" and persists d.
func (c *Cache) ChangeName(ctx context.Context, d *diagram.Diagram, name string) error {
	if d == nil {
		return errNilDiagram
	}
	d.SetName(name)
	d.Notify("name")
	return c.persistDiagram(ctx, "change_name", d)
}

// SetInvisible hides or shows d, notifies subscribers with "invisible" and persists d.
func (c *Cache) SetInvisible(ctx context.Context, d *diagram.Diagram, invisible bool) error {
	if d == nil {
		return errNilDiagram
	}
	d.SetInvisible(invisible)
	d.Notify("invisible")
	return c.persistDiagram(ctx, "set_invisible", d)
}

func (c *Cache) persistDiagram(ctx context.Context, operation string, d *diagram.Diagram) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	data, err := encodeDiagram(d)
	if err != nil {
		return fmt.Errorf("failed to encode diagram %s: %w", d.ID, err)
	}
	if err := c.set(ctx, c.diagrams.key(d.ID), data); err != nil {
		c.recordStorageError(ctx, operation, err)
		c.logger.Warn("diagram not persisted", "id", d.ID, "operation", operation, "error", err)
		return err
	}
	return nil
}
