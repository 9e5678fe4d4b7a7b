// Package layout computes result-buffer geometry for query pools: element
// widths, per-slot widths, effective strides, and the clamp that keeps
// marshalled output inside the caller's buffer.
package layout

import (
	"encoding/binary"

	"github.com/gogpu/querypool/driver"
)

// ElemWidth returns the byte width of one value element under flags:
// 8 with ResultWide64, 4 otherwise.
func ElemWidth(flags driver.ResultFlags) uint64 {
	if flags.Has(driver.ResultWide64) {
		return 8
	}
	return 4
}

// SlotWidth returns the natural byte width of one marshalled slot:
// elems value elements plus a trailing availability element when
// requested, all at the width selected by flags.
func SlotWidth(elems uint32, flags driver.ResultFlags) uint64 {
	n := uint64(elems)
	if flags.Has(driver.ResultWithAvailability) {
		n++
	}
	return n * ElemWidth(flags)
}

// EffectiveStride resolves a caller stride: zero selects the natural
// slot width, anything else is used as given.
func EffectiveStride(slotWidth, stride uint64) uint64 {
	if stride == 0 {
		return slotWidth
	}
	return stride
}

// ClampCount limits count so that marshalling never writes past
// dataSize bytes, accounting for the larger of the slot width and the
// caller stride. A zero geometry clamps to zero.
func ClampCount(count uint32, dataSize, slotWidth, stride uint64) uint32 {
	unit := slotWidth
	if stride > unit {
		unit = stride
	}
	if unit == 0 {
		return 0
	}
	if max := dataSize / unit; uint64(count) > max {
		return uint32(max)
	}
	return count
}

// PutElem writes one value element at the start of dst, 64-bit when
// flags request it and truncated to 32 bits otherwise. 32-bit results
// are allowed to wrap.
func PutElem(dst []byte, flags driver.ResultFlags, v uint64) {
	if flags.Has(driver.ResultWide64) {
		binary.LittleEndian.PutUint64(dst, v)
	} else {
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}
