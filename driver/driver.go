// Package driver defines the narrow interfaces through which the query-pool
// subsystem reaches its collaborators: a device abstraction that enumerates
// physical devices and allocates GPU memory, a backend counter engine that
// owns hardware counters, and a host-mappable memory region.
//
// Implementations live in backend packages (backend/sim, backend/wgpu) and
// register themselves on init so that client code can select one by name
// via blank import:
//
//	import _ "github.com/gogpu/querypool/backend/sim"
//
//	dev, err := driver.Open("sim")
package driver

import "math/bits"

// DeviceProperties describes capabilities shared by every physical device
// behind a logical Device. Devices operate in lock-step, so the properties
// are reported once for the whole group.
type DeviceProperties struct {
	// Name identifies the device for logging and diagnostics.
	Name string

	// TimestampSlotSize is the size in bytes of one timestamp query slot.
	// Fixed per device, never per pool. Must be a multiple of 8.
	TimestampSlotSize uint32

	// StridedCopy reports whether device-side result copies can address
	// the timestamp memory as a raw strided buffer. When false, copy
	// kernels use a fixed two-channel 32-bit view instead, which
	// requires TimestampSlotSize == 8.
	StridedCopy bool
}

// CounterKind selects the backend counter implementation for a pool.
// Timestamps are not a CounterKind: they are driver-owned memory written
// directly by the device, with no backend engine involved.
type CounterKind uint8

const (
	// KindOcclusion counts samples that pass depth/stencil testing.
	// One 64-bit value per slot.
	KindOcclusion CounterKind = iota

	// KindPipelineStats counts pipeline stage invocations and primitives.
	// One 64-bit value per enabled statistic per slot.
	KindPipelineStats

	// KindStreamout counts streaming-output primitives. Two 64-bit
	// values per slot, in engine-native order: element 0 is the number
	// of primitives needed, element 1 the number actually written.
	KindStreamout
)

// String returns the string representation of CounterKind.
func (k CounterKind) String() string {
	switch k {
	case KindOcclusion:
		return "Occlusion"
	case KindPipelineStats:
		return "PipelineStats"
	case KindStreamout:
		return "Streamout"
	default:
		return "Unknown"
	}
}

// StatFlags is a bitmask of pipeline statistics collected by a
// KindPipelineStats engine, named after the engine's hardware stages.
// Engines emit one value element per enabled bit, in ascending bit
// order.
type StatFlags uint32

const (
	StatIaVertices StatFlags = 1 << iota
	StatIaPrimitives
	StatVsInvocations
	StatGsInvocations
	StatGsPrimitives
	StatCInvocations
	StatCPrimitives
	StatPsInvocations
	StatHsInvocations
	StatDsInvocations
	StatCsInvocations
)

// Count returns the number of enabled statistics, which equals the
// number of value elements one slot emits.
func (s StatFlags) Count() int {
	return bits.OnesCount32(uint32(s))
}

// CounterPoolInfo describes a backend counter pool to create.
type CounterPoolInfo struct {
	// Label is an optional debug name.
	Label string

	// Kind selects the counter implementation.
	Kind CounterKind

	// SlotCount is the number of query slots.
	SlotCount uint32

	// EnabledStats selects the statistics collected per slot.
	// Only meaningful for KindPipelineStats.
	EnabledStats StatFlags
}

// ReadViewFormat selects how a timestamp read view presents the memory to
// device-side copy kernels.
type ReadViewFormat uint8

const (
	// ViewFormatRaw is an untyped strided view over the slots.
	ViewFormatRaw ReadViewFormat = iota

	// ViewFormatRG32Uint is a typed two-channel 32-bit view. The slot
	// size must be exactly 8 bytes.
	ViewFormatRG32Uint
)

// ReadViewInfo describes a per-device read view over timestamp memory.
type ReadViewInfo struct {
	// Memory is the backing allocation the view addresses.
	Memory Memory

	// Range is the addressable size in bytes, starting at the base of
	// the allocation.
	Range uint64

	// Stride is the distance between consecutive slots in bytes.
	// Zero for ViewFormatRaw views.
	Stride uint64

	// Format selects the view encoding.
	Format ReadViewFormat
}

// Device is the query-pool subsystem's window onto a logical GPU device
// composed of one or more physical devices in lock-step.
//
// Device implementations must be safe for concurrent use by multiple
// goroutines.
type Device interface {
	// DeviceCount returns the number of physical devices in the group.
	// Always at least 1.
	DeviceCount() int

	// Properties returns the capabilities shared by the device group.
	Properties() DeviceProperties

	// CounterPoolSupported reports whether the physical device at
	// deviceIdx can collect backend counters. Devices without support
	// are skipped during counter-pool creation and reset, supporting
	// degraded multi-GPU configurations.
	CounterPoolSupported(deviceIdx int) bool

	// NewCounterPool constructs a backend counter engine on one
	// physical device. The engine owns no memory until BindMemory.
	NewCounterPool(deviceIdx int, info CounterPoolInfo) (CounterEngine, error)

	// AllocMemory allocates GPU-visible memory per info. The returned
	// allocation is persistently host-mappable on every device unless
	// info requested otherwise.
	AllocMemory(info MemoryInfo) (Memory, error)

	// TimestampReadView builds an opaque per-device view descriptor
	// over timestamp memory for use by device-side copy kernels. The
	// returned blob is owned by the caller.
	TimestampReadView(deviceIdx int, info ReadViewInfo) ([]byte, error)
}
