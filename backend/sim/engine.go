package sim

import (
	"fmt"
	"runtime"

	"github.com/gogpu/querypool/driver"
	"github.com/gogpu/querypool/internal/layout"
)

// Engine is a software counter engine for one virtual device.
//
// Storage layout inside the bound memory, per slot: one 64-bit word
// per value element followed by one 64-bit availability marker. The
// element count depends on the counter kind: 1 for occlusion, 2 for
// streamout (needed first, written second, the engine-native order),
// one per enabled statistic for pipeline stats.
//
// Tests play the command stream's role through Finish, which stores a
// slot's values and then flips its availability marker last, so a
// concurrent reader can never observe ready-but-unwritten values.
type Engine struct {
	deviceIdx int
	info      driver.CounterPoolInfo
	elems     uint32

	mem    *memory
	offset uint64

	destroyed bool
}

func newEngine(deviceIdx int, info driver.CounterPoolInfo) *Engine {
	return &Engine{
		deviceIdx: deviceIdx,
		info:      info,
		elems:     elemsPerSlot(info),
	}
}

// elemsPerSlot returns the number of value elements one slot carries.
func elemsPerSlot(info driver.CounterPoolInfo) uint32 {
	switch info.Kind {
	case driver.KindStreamout:
		return 2
	case driver.KindPipelineStats:
		return uint32(info.EnabledStats.Count())
	default:
		return 1
	}
}

// slotBytes is the engine-native storage footprint of one slot.
func (e *Engine) slotBytes() uint64 { return uint64(e.elems+1) * 8 }

// DeviceIndex returns the virtual device this engine lives on.
func (e *Engine) DeviceIndex() int { return e.deviceIdx }

// IsDestroyed returns true if the engine has been destroyed.
func (e *Engine) IsDestroyed() bool { return e.destroyed }

// MemoryRequirements reports the storage the engine needs.
func (e *Engine) MemoryRequirements() driver.MemoryRequirements {
	return driver.MemoryRequirements{
		Size:      uint64(e.info.SlotCount) * e.slotBytes(),
		Alignment: 8,
	}
}

// BindMemory attaches backing storage at the given byte offset.
func (e *Engine) BindMemory(mem driver.Memory, offset uint64) error {
	m, ok := mem.(*memory)
	if !ok {
		return ErrForeignMemory
	}
	need := offset + e.MemoryRequirements().Size
	if need > m.size {
		return fmt.Errorf("%w: engine needs %d bytes at offset %d, allocation is %d",
			driver.ErrNoDeviceMemory, e.MemoryRequirements().Size, offset, m.size)
	}
	e.mem = m
	e.offset = offset
	return nil
}

// view returns this engine's device replica.
func (e *Engine) view() ([]byte, error) {
	if e.mem == nil {
		return nil, driver.ErrNotBound
	}
	return e.mem.Map(e.deviceIdx)
}

// Finish plays the device's part: it completes a slot by storing its
// value elements and then setting the availability marker, in that
// order. Missing values are stored as zero, extras ignored.
func (e *Engine) Finish(slot uint32, values ...uint64) error {
	view, err := e.view()
	if err != nil {
		return err
	}
	if slot >= e.info.SlotCount {
		return fmt.Errorf("%w: slot %d of %d", ErrBadConfig, slot, e.info.SlotCount)
	}
	base := e.offset + uint64(slot)*e.slotBytes()
	for i := uint32(0); i < e.elems; i++ {
		var v uint64
		if int(i) < len(values) {
			v = values[i]
		}
		driver.StoreUint64(view, base+uint64(i)*8, v)
	}
	// Marker last: readiness must never precede the values.
	driver.StoreUint64(view, base+uint64(e.elems)*8, 1)
	return nil
}

// Results marshals slots [start, start+count) into dst per flags.
func (e *Engine) Results(flags driver.ResultFlags, start, count uint32, dst []byte, stride uint64) (bool, error) {
	view, err := e.view()
	if err != nil {
		return false, err
	}

	if start >= e.info.SlotCount {
		return true, nil
	}
	if rest := e.info.SlotCount - start; count > rest {
		count = rest
	}

	slotWidth := layout.SlotWidth(e.elems, flags)
	count = layout.ClampCount(count, uint64(len(dst)), slotWidth, stride)
	if count == 0 {
		return true, nil
	}
	outStride := layout.EffectiveStride(slotWidth, stride)
	valueWidth := layout.ElemWidth(flags)

	allReady := true
	for i := uint32(0); i < count; i++ {
		base := e.offset + uint64(start+i)*e.slotBytes()
		availOff := base + uint64(e.elems)*8

		ready := driver.LoadUint64(view, availOff) != 0
		if flags.Has(driver.ResultWait) {
			for !ready {
				runtime.Gosched()
				ready = driver.LoadUint64(view, availOff) != 0
			}
		}

		slot := dst[uint64(i)*outStride:]
		if ready || flags.Has(driver.ResultPartial) {
			for el := uint32(0); el < e.elems; el++ {
				v := driver.LoadUint64(view, base+uint64(el)*8)
				layout.PutElem(slot[uint64(el)*valueWidth:], flags, v)
			}
		}
		if flags.Has(driver.ResultWithAvailability) {
			var a uint64
			if ready {
				a = 1
			}
			layout.PutElem(slot[uint64(e.elems)*valueWidth:], flags, a)
		}

		allReady = allReady && ready
	}
	return allReady, nil
}

// Reset returns slots [start, start+count) to the unwritten state:
// availability markers and values zeroed.
func (e *Engine) Reset(start, count uint32) error {
	view, err := e.view()
	if err != nil {
		return err
	}
	if start >= e.info.SlotCount {
		return nil
	}
	if rest := e.info.SlotCount - start; count > rest {
		count = rest
	}

	base := e.offset + uint64(start)*e.slotBytes()
	words := uint64(count) * e.slotBytes() / 8
	for w := uint64(0); w < words; w++ {
		driver.StoreUint64(view, base+w*8, 0)
	}
	return nil
}

// Destroy releases the engine. The bound memory belongs to the pool
// and is left alone. Idempotent.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.mem = nil
}
