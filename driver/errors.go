package driver

import "errors"

// Errors shared across driver implementations. Backends return these
// (possibly wrapped) so callers can match with errors.Is regardless of
// which backend is active.
var (
	// ErrNoDeviceMemory indicates a failed device memory allocation.
	ErrNoDeviceMemory = errors.New("driver: no device memory")

	// ErrNoHostMemory indicates a failed host memory allocation.
	ErrNoHostMemory = errors.New("driver: no host memory")

	// ErrUnsupported indicates the device cannot provide the requested
	// feature, such as backend counters on a compute-only device.
	ErrUnsupported = errors.New("driver: unsupported")

	// ErrNotBound indicates an engine operation before BindMemory.
	ErrNotBound = errors.New("driver: no memory bound")

	// ErrNoBackend indicates Open was called with a name no registered
	// backend matches.
	ErrNoBackend = errors.New("driver: no such backend")
)
