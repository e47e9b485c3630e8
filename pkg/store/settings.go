package store

import (
	"cmp"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Settings is a handle on one namespace. Writes are staged until Commit;
// reads see staged writes.
type Settings struct {
	mu      sync.Mutex
	backend Backend
	ns      string

	committed map[string][]byte // nil until first load
	staged    map[string][]byte
	deleted   map[string]struct{}
}

func newSettings(b Backend, ns string) *Settings {
	return &Settings{
		backend: b,
		ns:      ns,
		staged:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Namespace returns the namespace of the handle.
func (s *Settings) Namespace() string {
	return s.ns
}

// loadLocked reads the namespace from the backend once. Caller holds mu.
func (s *Settings) loadLocked() error {
	if s.committed != nil {
		return nil
	}
	entries, err := s.backend.Read(s.ns)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.ns, err)
	}
	s.committed = entries
	return nil
}

// Get returns the raw value of a key.
func (s *Settings) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.staged[key]; ok {
		return v, nil
	}
	if _, ok := s.deleted[key]; ok {
		return nil, ErrNotFound
	}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	v, ok := s.committed[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put stages a raw value.
func (s *Settings) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.deleted, key)
	s.staged[key] = append([]byte(nil), value...)
}

// Delete stages the removal of a key.
func (s *Settings) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.staged, key)
	s.deleted[key] = struct{}{}
}

// Keys returns the keys visible through the handle, sorted.
func (s *Settings) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for k := range s.committed {
		if _, gone := s.deleted[k]; !gone {
			seen[k] = struct{}{}
		}
	}
	for k := range s.staged {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// IsNew returns true if the namespace holds no value at all.
func (s *Settings) IsNew() bool {
	keys, err := s.Keys()
	return err != nil || len(keys) == 0
}

// Commit flushes staged writes to the backend.
func (s *Settings) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 && len(s.deleted) == 0 {
		return nil
	}

	del := make([]string, 0, len(s.deleted))
	for k := range s.deleted {
		del = append(del, k)
	}
	if err := s.backend.Write(s.ns, s.staged, del); err != nil {
		return fmt.Errorf("writing %s: %w", s.ns, err)
	}

	if s.committed != nil {
		for _, k := range del {
			delete(s.committed, k)
		}
		for k, v := range s.staged {
			s.committed[k] = v
		}
	}
	s.staged = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
	return nil
}

// Clear drops the namespace and every staged write.
func (s *Settings) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
	s.committed = make(map[string][]byte)
	if err := s.backend.Drop(s.ns); err != nil {
		return fmt.Errorf("dropping %s: %w", s.ns, err)
	}
	return nil
}

// ReadValue decodes the value of a key.
func ReadValue[T any](s *Settings, key string) (T, error) {
	var v T
	data, err := s.Get(key)
	if err != nil {
		return v, err
	}
	if err := wire.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s/%s: %v", ErrInvalidValue, s.ns, key, err)
	}
	return v, nil
}

// WriteValue encodes and stages the value of a key.
func WriteValue[T any](s *Settings, key string, v T) error {
	data, err := wire.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", s.ns, key, err)
	}
	s.Put(key, data)
	return nil
}

// ReadSet decodes a set of values stored with WriteSet.
func ReadSet[E cmp.Ordered](s *Settings, key string) ([]E, error) {
	return ReadValue[[]E](s, key)
}

// WriteSet stages a set of values, stored sorted and deduplicated.
func WriteSet[E cmp.Ordered](s *Settings, key string, values []E) error {
	set := append([]E(nil), values...)
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	out := set[:0]
	for i, v := range set {
		if i == 0 || v != set[i-1] {
			out = append(out, v)
		}
	}
	return WriteValue(s, key, out)
}

// ReadRange decodes a closed range stored with WriteRange.
func ReadRange[N cmp.Ordered](s *Settings, key string) (lo, hi N, err error) {
	r, err := ReadValue[[2]N](s, key)
	if err != nil {
		return lo, hi, err
	}
	if r[0] > r[1] {
		return lo, hi, fmt.Errorf("%w: %s/%s: inverted range", ErrInvalidValue, s.ns, key)
	}
	return r[0], r[1], nil
}

// WriteRange stages a closed range.
func WriteRange[N cmp.Ordered](s *Settings, key string, lo, hi N) error {
	return WriteValue(s, key, [2]N{lo, hi})
}

// ReadMultiRange decodes ranges keyed by name stored with WriteMultiRange.
func ReadMultiRange[N cmp.Ordered](s *Settings, key string) (map[string][2]N, error) {
	m, err := ReadValue[map[string][2]N](s, key)
	if err != nil {
		return nil, err
	}
	for name, r := range m {
		if r[0] > r[1] {
			return nil, fmt.Errorf("%w: %s/%s[%s]: inverted range", ErrInvalidValue, s.ns, key, name)
		}
	}
	return m, nil
}

// WriteMultiRange stages ranges keyed by name.
func WriteMultiRange[N cmp.Ordered](s *Settings, key string, ranges map[string][2]N) error {
	return WriteValue(s, key, ranges)
}

// IsNotFound reports whether err means the key has no value.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
