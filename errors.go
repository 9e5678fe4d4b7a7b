package querypool

import "errors"

// Pool errors.
var (
	// ErrOutOfMemory is returned when pool creation fails to allocate
	// driver or backend storage. No partial state survives: every
	// per-device engine constructed before the failure is destroyed.
	ErrOutOfMemory = errors.New("querypool: out of memory")

	// ErrPoolDestroyed is returned when operating on a destroyed pool.
	ErrPoolDestroyed = errors.New("querypool: pool has been destroyed")

	// ErrInvalidDescriptor is returned when a PoolDescriptor is
	// malformed, such as a pipeline-statistics pool with an empty
	// statistics mask.
	ErrInvalidDescriptor = errors.New("querypool: invalid pool descriptor")

	// ErrSlotSize is returned when the device's timestamp slot size is
	// incompatible with the read-view format it requires. Typed
	// two-channel views demand 8-byte slots.
	ErrSlotSize = errors.New("querypool: unsupported timestamp slot size")

	// ErrNilDevice is returned when creating a pool without a device.
	ErrNilDevice = errors.New("querypool: device is nil")
)
