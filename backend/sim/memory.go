package sim

import (
	"fmt"
	"sync"

	"github.com/gogpu/querypool/driver"
)

// memory is a host-backed allocation. Non-shareable allocations hold
// one replica per virtual device; shareable allocations hold a single
// region every device index maps to, which is how multi-device
// timestamp pools observe identical data without replication.
//
// Mapping is persistent: Map returns the live backing slice, so device
// writes made through storeAll become visible to holders immediately,
// and 64-bit words stay torn-free under driver.LoadUint64 and
// driver.StoreUint64.
type memory struct {
	label     string
	size      uint64
	dev       *Device
	shareable bool
	replicas  [][]byte

	mu        sync.Mutex
	destroyed bool
}

// Size returns the allocation size in bytes.
func (m *memory) Size() uint64 { return m.size }

// Map returns the live view of one device's replica.
func (m *memory) Map(deviceIdx int) ([]byte, error) {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return nil, ErrMemoryDestroyed
	}
	if deviceIdx < 0 || deviceIdx >= m.dev.deviceCount {
		return nil, fmt.Errorf("%w: device index %d of %d", ErrBadConfig, deviceIdx, m.dev.deviceCount)
	}
	if m.dev.mapFail[deviceIdx] {
		return nil, fmt.Errorf("%w: device %d mapping disabled", driver.ErrNoHostMemory, deviceIdx)
	}
	return m.replicas[m.replica(deviceIdx)], nil
}

// Unmap ends a host access scope. Persistent mappings stay valid.
func (m *memory) Unmap(int) {}

// Destroy releases the allocation. Idempotent.
func (m *memory) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.replicas = nil
	m.mu.Unlock()
	slogger().Debug("sim memory destroyed", "label", m.label, "size", m.size)
}

// replica maps a device index to a backing-slice index.
func (m *memory) replica(deviceIdx int) int {
	if m.shareable {
		return 0
	}
	return deviceIdx
}

// storeAll atomically stores v at byte offset off in every replica,
// modeling a lock-step device write. Replicas of devices whose mapping
// is disabled still receive the write: the device aperture, not the
// device itself, is what map failures model.
func (m *memory) storeAll(off uint64, v uint64) error {
	m.mu.Lock()
	destroyed := m.destroyed
	m.mu.Unlock()
	if destroyed {
		return ErrMemoryDestroyed
	}
	if off+8 > m.size {
		return fmt.Errorf("%w: store at %d exceeds size %d", ErrBadConfig, off, m.size)
	}
	for _, r := range m.replicas {
		driver.StoreUint64(r, off, v)
	}
	return nil
}
