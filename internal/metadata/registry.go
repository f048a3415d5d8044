package metadata

import (
	"strings"
	"sync"
)

// Reader extracts tag metadata for files it understands. Readers fail
// softly: Read returning false marks the file unreadable for this scan.
type Reader interface {
	// CanRead reports whether the reader handles the given lowercase
	// extension (without the leading dot).
	CanRead(ext string) bool
	// Read extracts tags from path into sink.
	Read(path string, sink Sink) bool
}

// Registry holds the registered readers. Registration order defines
// priority: the indexer uses the first reader whose CanRead matches.
type Registry struct {
	mu      sync.Mutex
	readers []Reader
	devices map[string]bool
}

// NewRegistry returns a registry with no readers.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]bool)}
}

// DefaultRegistry returns a registry with the built-in file reader
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewFileReader())
	return r
}

// Register appends a reader. Earlier registrations win.
func (r *Registry) Register(reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers = append(r.readers, reader)
}

// For returns the first reader that can read ext, or nil.
// ext may be passed with or without the leading dot, in any case.
func (r *Registry) For(ext string) Reader {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reader := range r.readers {
		if reader.CanRead(ext) {
			return reader
		}
	}
	return nil
}

// DeviceToken grants exclusive access to a shared read device (an optical
// drive, for instance). Releasing the token frees the device.
type DeviceToken struct {
	registry *Registry
	name     string
	once     sync.Once
}

// AcquireDevice grants exclusive access to the named device. Returns nil
// if the device is already held.
func (r *Registry) AcquireDevice(name string) *DeviceToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.devices[name] {
		return nil
	}
	r.devices[name] = true
	return &DeviceToken{registry: r, name: name}
}

// Release frees the device. Safe to call more than once.
func (t *DeviceToken) Release() {
	t.once.Do(func() {
		t.registry.mu.Lock()
		delete(t.registry.devices, t.name)
		t.registry.mu.Unlock()
	})
}
