package driver

import (
	"sync/atomic"

	"honnef.co/go/safeish"
)

// Atomic access to 64-bit words inside mapped memory. The device writes
// each query slot with a single 64-bit store, so a matching atomic load
// on the host can never observe a torn value. Offsets must be 8-byte
// aligned; mapped regions returned by Memory.Map are 8-byte aligned at
// their base.

// LoadUint64 atomically loads the 64-bit word at byte offset off in b.
func LoadUint64(b []byte, off uint64) uint64 {
	w := safeish.SliceCast[[]uint64](b[off : off+8])
	return atomic.LoadUint64(&w[0])
}

// StoreUint64 atomically stores v into the 64-bit word at byte offset
// off in b.
func StoreUint64(b []byte, off uint64, v uint64) {
	w := safeish.SliceCast[[]uint64](b[off : off+8])
	atomic.StoreUint64(&w[0], v)
}
