package querypool

import (
	"fmt"
	"sync"

	"github.com/gogpu/querypool/driver"
)

// Pool is a fixed-capacity collection of counter slots of one query
// type, replicated across every physical device of its Device.
//
// A Pool is one of exactly two concrete kinds, chosen once at creation:
// a hardware-counter pool backed by per-device counter engines, or a
// timestamp pool backed by persistently mapped memory the host polls.
// All operations dispatch on that choice; the kind never changes.
//
// Thread safety: Destroy may race with itself and is idempotent, but
// Results and Reset on the same pool must be serialized by the caller,
// matching the external-synchronization contract of the underlying
// device interfaces.
type Pool struct {
	// mu guards destruction against concurrent Destroy calls.
	mu sync.Mutex

	label     string
	queryType QueryType
	slotCount uint32

	// Exactly one of counter and timestamp is non-nil, fixed at
	// creation. This is the dispatch tag's payload.
	counter   *counterPool
	timestamp *timestampPool

	destroyed bool
}

// New creates a query pool on dev as described by desc.
//
// Creation replicates across every physical device in the group. It is
// atomic: on any failure every per-device resource constructed so far
// is released before New returns, and no pool exists.
func New(dev driver.Device, desc PoolDescriptor) (*Pool, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if desc.Type == TypePipelineStatistics && desc.PipelineStatistics == 0 {
		return nil, fmt.Errorf("%w: pipeline-statistics pool with empty statistics mask", ErrInvalidDescriptor)
	}

	p := &Pool{
		label:     desc.Label,
		queryType: desc.Type,
		slotCount: desc.SlotCount,
	}

	var err error
	if desc.Type == TypeTimestamp {
		p.timestamp, err = newTimestampPool(dev, desc)
	} else {
		p.counter, err = newCounterPool(dev, desc)
	}
	if err != nil {
		return nil, err
	}

	Logger().Debug("query pool created",
		"label", desc.Label,
		"type", desc.Type.String(),
		"slots", desc.SlotCount,
		"devices", dev.DeviceCount())
	return p, nil
}

// Type returns the pool's query type.
func (p *Pool) Type() QueryType { return p.queryType }

// SlotCount returns the number of query slots.
func (p *Pool) SlotCount() uint32 { return p.slotCount }

// Label returns the pool's debug label.
func (p *Pool) Label() string { return p.label }

// Results marshals slots [start, start+count) into dst.
//
// Each slot produces its value elements (one for occlusion, statistics
// and timestamp pools, two for streaming-output pools) followed by an
// availability element when FlagWithAvailability is set.
// Values are 64-bit with FlagWide64 and 32-bit (wrapping) without.
// Consecutive slots are stride bytes apart in dst; stride 0 selects
// the natural slot width. The effective count is clamped so that no
// write ever lands past len(dst), even when count and stride disagree
// with the buffer size.
//
// StatusNotReady reports that at least one requested slot had not been
// written by the device yet; it is a routine outcome, not an error.
// With FlagWait, Results polls until every requested slot is ready.
// The poll yields between probes but has no timeout: on a stalled
// device it does not return. Callers needing a bound must poll without
// FlagWait.
func (p *Pool) Results(start, count uint32, dst []byte, stride uint64, flags ResultFlags) (Status, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return StatusNotReady, ErrPoolDestroyed
	}
	p.mu.Unlock()

	switch p.queryType {
	case TypeTimestamp:
		return p.timestamp.results(start, count, dst, stride, flags)
	default:
		return p.counter.results(start, count, dst, stride, flags)
	}
}

// Reset returns slots [start, start+count) to the unwritten state on
// every physical device. Out-of-range portions of the request are
// ignored.
//
// Reset never fails observably: a device whose storage cannot be
// reached is skipped and logged, so one degraded device does not block
// slot reuse on the healthy ones. Calling Reset on a destroyed pool is
// a no-op.
func (p *Pool) Reset(start, count uint32) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	switch p.queryType {
	case TypeTimestamp:
		p.timestamp.reset(start, count)
	default:
		p.counter.reset(start, count)
	}
}

// Destroy releases the pool: per-device engines first, then the GPU
// allocation bound to them. Idempotent.
func (p *Pool) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	counter := p.counter
	timestamp := p.timestamp
	p.mu.Unlock()

	if counter != nil {
		counter.destroy()
	}
	if timestamp != nil {
		timestamp.destroy()
	}
	Logger().Debug("query pool destroyed", "label", p.label, "type", p.queryType.String())
}

// Memory returns the pool's backing GPU allocation, or nil for a
// zero-slot timestamp pool. Command-recording collaborators use it to
// address slots directly; the allocation remains owned by the pool.
func (p *Pool) Memory() driver.Memory {
	if p.timestamp != nil {
		return p.timestamp.mem
	}
	return p.counter.mem
}

// SlotSize returns the byte size of one timestamp slot, or 0 for
// pools whose slot layout is engine-owned.
func (p *Pool) SlotSize() uint64 {
	if p.timestamp != nil {
		return uint64(p.timestamp.slotSize)
	}
	return 0
}

// SlotOffset returns the byte offset of slot idx inside the backing
// memory. Meaningful for timestamp pools only; engine-owned layouts
// return 0.
func (p *Pool) SlotOffset(idx uint32) uint64 {
	if p.timestamp != nil {
		return uint64(idx) * uint64(p.timestamp.slotSize)
	}
	return 0
}

// ReadView returns the opaque per-device view descriptor over the
// timestamp memory, for use by device-side copy kernels. Nil for
// non-timestamp pools and zero-slot pools.
func (p *Pool) ReadView(deviceIdx int) []byte {
	if p.timestamp == nil || deviceIdx < 0 || deviceIdx >= len(p.timestamp.views) {
		return nil
	}
	return p.timestamp.views[deviceIdx]
}
