package model

import (
	"sort"
	"sync"
)

// Kind identifies a component type within a device.
type Kind string

// Field identifies one value of a component.
type Field string

// Change describes one committed batch.
type Change struct {
	Kind Kind

	// Fields lists the fields whose value changed, in first-write order.
	Fields []Field

	// Published is the publication state after the batch.
	Published bool

	// PublicationChanged is true if the batch published or unpublished the component.
	PublicationChanged bool
}

// Has returns true if field f changed in this batch.
func (ch Change) Has(f Field) bool {
	for _, x := range ch.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Observer is notified when a component commits a batch.
type Observer interface {
	OnChange(c *Component, ch Change)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(c *Component, ch Change)

// OnChange calls f.
func (f ObserverFunc) OnChange(c *Component, ch Change) { f(c, ch) }

// Component is the published model of one peripheral of a device.
type Component struct {
	mu sync.RWMutex

	kind     Kind
	registry *Registry

	fields    map[Field]any
	published bool

	subscribers []*subscription
}

type subscription struct {
	obs Observer
}

// Kind returns the component kind.
func (c *Component) Kind() Kind {
	return c.kind
}

// DeviceUID returns the uid of the device owning the component.
func (c *Component) DeviceUID() string {
	return c.registry.deviceUID
}

// Published returns true if the component is visible to consumers.
func (c *Component) Published() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

// Get returns the committed value of a field.
func (c *Component) Get(f Field) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.fields[f]
	return v, ok
}

// Fields returns a copy of every committed field.
func (c *Component) Fields() map[Field]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[Field]any, len(c.fields))
	for f, v := range c.fields {
		result[f] = v
	}
	return result
}

// FieldNames returns the names of the committed fields, sorted.
func (c *Component) FieldNames() []Field {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]Field, 0, len(c.fields))
	for f := range c.fields {
		names = append(names, f)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Subscribe adds an observer of this component. The returned function
// removes it.
func (c *Component) Subscribe(obs Observer) (unsubscribe func()) {
	sub := &subscription{obs: obs}

	c.mu.Lock()
	c.subscribers = append(c.subscribers, sub)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s == sub {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Begin starts a batch of mutations.
func (c *Component) Begin() *Tx {
	return &Tx{c: c}
}

// apply commits staged writes and returns the resulting change.
func (c *Component) apply(tx *Tx) (Change, []Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := Change{Kind: c.kind}
	for _, w := range tx.writes {
		old, had := c.fields[w.field]
		if w.clear {
			if !had {
				continue
			}
			delete(c.fields, w.field)
		} else {
			if had && equal(old, w.value) {
				continue
			}
			c.fields[w.field] = w.value
		}
		if !ch.Has(w.field) {
			ch.Fields = append(ch.Fields, w.field)
		}
	}

	if tx.publication != nil && *tx.publication != c.published {
		c.published = *tx.publication
		ch.PublicationChanged = true
	}
	ch.Published = c.published

	obs := make([]Observer, len(c.subscribers))
	for i, s := range c.subscribers {
		obs[i] = s.obs
	}
	return ch, obs
}
