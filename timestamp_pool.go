package querypool

import (
	"fmt"
	"runtime"

	"github.com/gogpu/querypool/driver"
	"github.com/gogpu/querypool/internal/layout"
)

// TimestampNotReady is the reserved slot value marking a timestamp as
// not yet written. The device counter can never legally produce it, so
// any other value means the slot is ready. Each slot transitions from
// sentinel to value with a single atomic 64-bit device store.
const TimestampNotReady = ^uint64(0)

// timestampPool is the driver-implemented counter kind: no backend
// engine, just persistently mapped memory the device writes raw 64-bit
// timestamps into and the host polls by sentinel comparison.
type timestampPool struct {
	entryCount  uint32
	slotSize    uint32
	deviceCount int

	// mem is nil when entryCount is 0: a pool that stores nothing
	// allocates nothing.
	mem driver.Memory

	// views holds one opaque read-view descriptor per device for
	// device-side copy kernels.
	views [][]byte
}

// timestampHeaps lists acceptable heaps for a single-device timestamp
// allocation. Multi-device groups instead share one allocation on the
// cacheable host heap so that every device observes identical data
// without replication.
var timestampHeaps = []driver.Heap{
	driver.HeapDeviceLocal,
	driver.HeapHostCached,
	driver.HeapHostUncached,
}

func newTimestampPool(dev driver.Device, desc PoolDescriptor) (*timestampPool, error) {
	props := dev.Properties()
	slotSize := props.TimestampSlotSize
	if slotSize < 8 || slotSize%8 != 0 {
		return nil, fmt.Errorf("%w: device reports %d-byte slots", ErrSlotSize, slotSize)
	}

	t := &timestampPool{
		entryCount:  desc.SlotCount,
		slotSize:    slotSize,
		deviceCount: dev.DeviceCount(),
	}
	if desc.SlotCount == 0 {
		return t, nil
	}

	info := driver.MemoryInfo{
		Label:     desc.Label,
		Size:      uint64(desc.SlotCount) * uint64(slotSize),
		Alignment: uint64(slotSize),
		Heaps:     timestampHeaps,
	}
	if t.deviceCount > 1 {
		info.Heaps = []driver.Heap{driver.HeapHostCached}
		info.Shareable = true
		info.HomeDevice = 0
	}

	mem, err := dev.AllocMemory(info)
	if err != nil {
		return nil, fmt.Errorf("%w: allocating timestamp storage: %w", ErrOutOfMemory, err)
	}
	t.mem = mem

	// Fresh slots must read as not-ready before the device's first
	// write, on every replica.
	t.reset(0, desc.SlotCount)

	viewInfo := driver.ReadViewInfo{
		Memory: mem,
		Range:  info.Size,
		Stride: uint64(slotSize),
	}
	if props.StridedCopy {
		viewInfo.Format = driver.ViewFormatRaw
	} else {
		// The fixed two-channel 32-bit view addresses exactly one
		// 8-byte slot per texel pair.
		if slotSize != 8 {
			mem.Destroy()
			return nil, fmt.Errorf("%w: two-channel read view requires 8-byte slots, device reports %d", ErrSlotSize, slotSize)
		}
		viewInfo.Format = driver.ViewFormatRG32Uint
	}

	t.views = make([][]byte, t.deviceCount)
	for d := 0; d < t.deviceCount; d++ {
		t.views[d], err = dev.TimestampReadView(d, viewInfo)
		if err != nil {
			mem.Destroy()
			return nil, fmt.Errorf("building timestamp read view on device %d: %w", d, err)
		}
	}
	return t, nil
}

func (t *timestampPool) results(start, count uint32, dst []byte, stride uint64, flags ResultFlags) (Status, error) {
	// An empty range is vacuously complete, as is any range that lies
	// entirely past the pool's slots.
	if start >= t.entryCount {
		return StatusAllReady, nil
	}
	if rest := t.entryCount - start; count > rest {
		count = rest
	}

	dflags := convertResultFlags(flags)
	slotWidth := layout.SlotWidth(1, dflags)
	count = layout.ClampCount(count, uint64(len(dst)), slotWidth, stride)
	if count == 0 {
		return StatusAllReady, nil
	}
	outStride := layout.EffectiveStride(slotWidth, stride)
	valueWidth := layout.ElemWidth(dflags)

	view, err := t.mem.Map(0)
	if err != nil {
		return StatusNotReady, fmt.Errorf("mapping timestamp memory: %w", err)
	}
	defer t.mem.Unmap(0)

	allReady := true
	for i := uint32(0); i < count; i++ {
		srcOff := uint64(start+i) * uint64(t.slotSize)

		value := driver.LoadUint64(view, srcOff)
		ready := value != TimestampNotReady

		// The documented blocking primitive: re-probe the slot until
		// the device writes a non-sentinel value, yielding between
		// probes. No timeout.
		if dflags.Has(driver.ResultWait) {
			for !ready {
				runtime.Gosched()
				value = driver.LoadUint64(view, srcOff)
				ready = value != TimestampNotReady
			}
		}

		slot := dst[uint64(i)*outStride:]
		if ready {
			layout.PutElem(slot, dflags, value)
		}
		if dflags.Has(driver.ResultWithAvailability) {
			var a uint64
			if ready {
				a = 1
			}
			layout.PutElem(slot[valueWidth:], dflags, a)
		}

		allReady = allReady && ready
	}

	if !allReady {
		return StatusNotReady, nil
	}
	return StatusAllReady, nil
}

// reset writes the sentinel into every 64-bit word of the affected
// range on every device replica. A replica that cannot be mapped is
// skipped: one degraded device must not block slot reuse on the rest.
func (t *timestampPool) reset(start, count uint32) {
	if start >= t.entryCount {
		return
	}
	if rest := t.entryCount - start; count > rest {
		count = rest
	}

	base := uint64(start) * uint64(t.slotSize)
	words := uint64(count) * uint64(t.slotSize) / 8

	for d := 0; d < t.deviceCount; d++ {
		view, err := t.mem.Map(d)
		if err != nil {
			Logger().Warn("timestamp reset skipped device", "device", d, "err", err)
			continue
		}
		for w := uint64(0); w < words; w++ {
			driver.StoreUint64(view, base+w*8, TimestampNotReady)
		}
		t.mem.Unmap(d)
	}
}

func (t *timestampPool) destroy() {
	if t.mem != nil {
		t.mem.Destroy()
	}
}
