package querypool

import (
	"encoding/binary"

	"github.com/gogpu/querypool/driver"
	"github.com/gogpu/querypool/internal/layout"
)

// streamoutElems is the number of value elements a streaming-output
// slot carries: primitives written and primitives needed.
const streamoutElems = 2

// streamoutResults reads streaming-output counters through a two-step
// conversion. The engine emits 64-bit values only and in its native
// element order: element 0 is the number of primitives the consumer
// needed, element 1 the number actually written. The caller-visible
// contract reverses them: written first, needed second. The reversal
// is a deliberate compatibility requirement; the orders really are
// opposed.
//
// Step one reads every requested slot into an intermediate 64-bit
// buffer with the engine forced to wide mode; step two reverses,
// narrows to the caller's width, and repacks at the caller's stride.
func (c *counterPool) streamoutResults(start, count uint32, dst []byte, stride uint64, flags ResultFlags) (Status, error) {
	dflags := convertResultFlags(flags)
	avail := dflags.Has(driver.ResultWithAvailability)

	numElems := uint64(streamoutElems)
	if avail {
		numElems++
	}
	rawStride := numElems * 8

	// The caller's stride applies to the repacked output; zero selects
	// the conversion's own slot spacing. Clamp so the repack can never
	// write past dst even when count oversells the buffer.
	outStride := layout.EffectiveStride(rawStride, stride)
	count = layout.ClampCount(count, uint64(len(dst)), layout.SlotWidth(streamoutElems, dflags), outStride)
	if count == 0 {
		return StatusAllReady, nil
	}

	raw := make([]byte, uint64(count)*rawStride)
	ready, err := c.engines[0].Results(dflags|driver.ResultWide64, start, count, raw, rawStride)
	if err != nil {
		return StatusNotReady, err
	}

	// Value elements are written only when the whole range is ready or
	// the caller explicitly allowed partial results; the availability
	// element, when requested, is always written to the slot's last
	// position.
	writeValues := ready || dflags.Has(driver.ResultPartial)
	valueWidth := layout.ElemWidth(dflags)

	for i := uint32(0); i < count; i++ {
		src := uint64(i) * rawStride
		needed := binary.LittleEndian.Uint64(raw[src:])
		written := binary.LittleEndian.Uint64(raw[src+8:])

		slot := dst[uint64(i)*outStride:]
		if writeValues {
			layout.PutElem(slot, dflags, written)
			layout.PutElem(slot[valueWidth:], dflags, needed)
		}
		if avail {
			layout.PutElem(slot[2*valueWidth:], dflags, binary.LittleEndian.Uint64(raw[src+16:]))
		}
	}

	if !ready {
		return StatusNotReady, nil
	}
	return StatusAllReady, nil
}
