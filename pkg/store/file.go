package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileVersion is the current version of the store file format.
const FileVersion = 1

// fileDocument is the on-disk layout of a FileBackend.
type fileDocument struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the file was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Namespaces maps namespace -> key -> CBOR value (base64 in JSON).
	Namespaces map[string]map[string][]byte `json:"namespaces,omitempty"`
}

// FileBackend stores every namespace in one JSON file.
// The document is loaded once and rewritten atomically on every change.
type FileBackend struct {
	mu     sync.Mutex
	path   string
	doc    *fileDocument
	closed bool
}

// NewFileBackend creates a backend writing to path. The file is read lazily;
// a missing file is an empty store.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// load reads the document if not already loaded. Caller holds mu.
func (f *FileBackend) load() error {
	if f.closed {
		return ErrClosed
	}
	if f.doc != nil {
		return nil
	}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.doc = &fileDocument{Version: FileVersion, Namespaces: make(map[string]map[string][]byte)}
		return nil
	}
	if err != nil {
		return err
	}

	doc := &fileDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("parsing %s: %w", f.path, err)
	}
	if doc.Namespaces == nil {
		doc.Namespaces = make(map[string]map[string][]byte)
	}
	f.doc = doc
	return nil
}

// save writes the document through a temp file. Caller holds mu.
func (f *FileBackend) save() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f.doc.Version = FileVersion
	f.doc.SavedAt = time.Now()

	data, err := json.MarshalIndent(f.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Read returns a copy of the namespace.
func (f *FileBackend) Read(ns string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return nil, err
	}
	return copyEntries(f.doc.Namespaces[ns]), nil
}

// Write applies set and del to the namespace and saves the file.
func (f *FileBackend) Write(ns string, set map[string][]byte, del []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	entries := f.doc.Namespaces[ns]
	if entries == nil {
		entries = make(map[string][]byte)
		f.doc.Namespaces[ns] = entries
	}
	for _, k := range del {
		delete(entries, k)
	}
	for k, v := range set {
		entries[k] = append([]byte(nil), v...)
	}
	if len(entries) == 0 {
		delete(f.doc.Namespaces, ns)
	}
	return f.save()
}

// Drop removes the namespace and saves the file.
func (f *FileBackend) Drop(ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	if _, ok := f.doc.Namespaces[ns]; !ok {
		return nil
	}
	delete(f.doc.Namespaces, ns)
	return f.save()
}

// Close releases the cached document.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.doc = nil
	return nil
}

// Compile-time interface satisfaction check.
var _ Backend = (*FileBackend)(nil)
