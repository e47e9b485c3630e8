package store

import (
	"strings"
	"sync"
)

// Namespace prefixes.
const (
	DevicePrefix = "device"
	PresetPrefix = "preset"
)

// DefaultProfile is the preset profile used when none is configured.
const DefaultProfile = "default"

// Hub hands out Settings handles over one backend. Handles are cached so
// every user of a namespace shares its staged writes.
type Hub struct {
	mu      sync.Mutex
	backend Backend
	handles map[string]*Settings
}

// NewHub creates a hub over a backend.
func NewHub(b Backend) *Hub {
	return &Hub{
		backend: b,
		handles: make(map[string]*Settings),
	}
}

// Device returns the device-scoped settings of a component.
func (h *Hub) Device(uid, component string) *Settings {
	return h.settings(DevicePrefix + "/" + uid + "/" + component)
}

// Preset returns the preset-scoped settings of a component.
func (h *Hub) Preset(profile, component string) *Settings {
	if profile == "" {
		profile = DefaultProfile
	}
	return h.settings(PresetPrefix + "/" + profile + "/" + component)
}

func (h *Hub) settings(ns string) *Settings {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.handles[ns]; ok {
		return s
	}
	s := newSettings(h.backend, ns)
	h.handles[ns] = s
	return s
}

// ForgetDevice clears every device-scoped namespace of a uid known to the hub.
func (h *Hub) ForgetDevice(uid string) error {
	prefix := DevicePrefix + "/" + uid + "/"

	h.mu.Lock()
	var list []*Settings
	for ns, s := range h.handles {
		if strings.HasPrefix(ns, prefix) {
			list = append(list, s)
		}
	}
	h.mu.Unlock()

	for _, s := range list {
		if err := s.Clear(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the backend.
func (h *Hub) Close() error {
	return h.backend.Close()
}
