package model

import (
	"sort"
	"sync"
)

// Registry holds the components of one device.
type Registry struct {
	mu sync.RWMutex

	deviceUID  string
	components map[Kind]*Component
	observers  []*subscription
}

// NewRegistry creates an empty registry for a device.
func NewRegistry(deviceUID string) *Registry {
	return &Registry{
		deviceUID:  deviceUID,
		components: make(map[Kind]*Component),
	}
}

// DeviceUID returns the device uid.
func (r *Registry) DeviceUID() string {
	return r.deviceUID
}

// Add returns the component of the given kind, creating it on first use.
// A device has exactly one component per kind.
func (r *Registry) Add(kind Kind) *Component {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.components[kind]; ok {
		return c
	}
	c := &Component{
		kind:     kind,
		registry: r,
		fields:   make(map[Field]any),
	}
	r.components[kind] = c
	return c
}

// Component returns the component of the given kind.
func (r *Registry) Component(kind Kind) (*Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[kind]
	return c, ok
}

// Components returns every component sorted by kind.
func (r *Registry) Components() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Component, 0, len(r.components))
	for _, c := range r.components {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].kind < list[j].kind })
	return list
}

// Published returns the published components sorted by kind.
func (r *Registry) Published() []*Component {
	var list []*Component
	for _, c := range r.Components() {
		if c.Published() {
			list = append(list, c)
		}
	}
	return list
}

// Subscribe adds an observer of every component. The returned function
// removes it.
func (r *Registry) Subscribe(obs Observer) (unsubscribe func()) {
	sub := &subscription{obs: obs}

	r.mu.Lock()
	r.observers = append(r.observers, sub)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.observers {
			if s == sub {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) notify(c *Component, ch Change) {
	r.mu.RLock()
	obs := make([]Observer, len(r.observers))
	for i, s := range r.observers {
		obs[i] = s.obs
	}
	r.mu.RUnlock()

	for _, o := range obs {
		o.OnChange(c, ch)
	}
}

// Value returns the committed value of a field converted to T.
func Value[T any](c *Component, f Field) (T, bool) {
	v, ok := c.Get(f)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
