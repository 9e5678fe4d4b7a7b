package driver

// Heap identifies a GPU memory heap class.
type Heap uint8

const (
	// HeapDeviceLocal is device-resident memory, host-visible on
	// devices with a resizable aperture.
	HeapDeviceLocal Heap = iota

	// HeapHostCached is host memory with CPU caching, readable by the
	// device. The right choice for memory the host polls.
	HeapHostCached

	// HeapHostUncached is host write-combined memory. Fast for host
	// writes, slow for host reads.
	HeapHostUncached

	// HeapDeviceInvisible is device-resident memory with no host
	// mapping. Never valid for query-pool storage.
	HeapDeviceInvisible
)

// String returns the string representation of Heap.
func (h Heap) String() string {
	switch h {
	case HeapDeviceLocal:
		return "DeviceLocal"
	case HeapHostCached:
		return "HostCached"
	case HeapHostUncached:
		return "HostUncached"
	case HeapDeviceInvisible:
		return "DeviceInvisible"
	default:
		return "Unknown"
	}
}

// MemoryRequirements reports the size and alignment an engine needs for
// its bound storage.
type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
}

// MemoryInfo describes a GPU memory allocation to create.
type MemoryInfo struct {
	// Label is an optional debug name.
	Label string

	// Size is the allocation size in bytes.
	Size uint64

	// Alignment is the required base alignment in bytes. Zero means
	// the device default.
	Alignment uint64

	// Heaps lists acceptable heaps in preference order. Must not
	// include HeapDeviceInvisible for host-polled memory.
	Heaps []Heap

	// Shareable requests a single allocation visible to every physical
	// device instead of per-device replicas. Used by multi-device
	// timestamp pools so that all devices observe identical data.
	Shareable bool

	// HomeDevice is the device index the allocation is bound through
	// when Shareable is set.
	HomeDevice int
}

// Memory is a GPU-visible allocation with persistent host mapping.
//
// Non-shareable allocations hold one replica per physical device; Map
// returns the replica for the given device index. Shareable allocations
// hold a single region that every index maps to.
//
// The mapped view is live: device writes become visible to the host
// through it without remapping, and 64-bit words may be read or written
// atomically via LoadUint64 and StoreUint64.
type Memory interface {
	// Size returns the allocation size in bytes.
	Size() uint64

	// Map returns the persistently mapped host view for one device's
	// replica. Mapping an already-mapped replica is cheap and returns
	// the same view.
	Map(deviceIdx int) ([]byte, error)

	// Unmap releases the view returned by Map. Views from persistent
	// mappings remain valid until Destroy; Unmap marks the end of a
	// host access scope.
	Unmap(deviceIdx int)

	// Destroy releases the allocation. Idempotent. All mapped views
	// become invalid.
	Destroy()
}
