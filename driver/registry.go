package driver

import (
	"fmt"
	"sync"
)

// Backend is a named Device factory. Backend packages register one from
// an init function so that importing the package is enough to make it
// selectable.
type Backend interface {
	// Name returns the backend name, such as "sim" or "wgpu".
	Name() string

	// Open creates a Device with the backend's default configuration.
	Open() (Device, error)
}

var (
	mu       sync.Mutex
	backends []Backend
)

// Register registers a Backend. Backend implementations are expected to
// call Register exactly once, from an init function. Registering a name
// that already exists replaces the previous backend.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	for i := range backends {
		if backends[i].Name() == b.Name() {
			backends[i] = b
			return
		}
	}
	backends = append(backends, b)
}

// Backends returns the registered backends in registration order.
func Backends() []Backend {
	mu.Lock()
	defer mu.Unlock()
	bs := make([]Backend, len(backends))
	copy(bs, backends)
	return bs
}

// Open creates a Device from the backend registered under name.
func Open(name string) (Device, error) {
	mu.Lock()
	var found Backend
	for _, b := range backends {
		if b.Name() == name {
			found = b
			break
		}
	}
	mu.Unlock()
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
	return found.Open()
}
