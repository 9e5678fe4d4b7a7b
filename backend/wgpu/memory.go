// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/querypool/driver"
)

// Memory is a GPU storage buffer with staged host access.
//
// The HAL exposes no persistent host mapping, so Map synchronizes with
// the queue and reads the buffer back into a host shadow, and Unmap
// writes the host's modifications forward. Only the bytes the host
// actually changed are flushed, so device writes landing elsewhere in
// the buffer between Map and Unmap survive.
type Memory struct {
	label string
	size  uint64

	dev *Device
	buf hal.Buffer

	mu        sync.Mutex
	shadow    []byte
	clean     []byte // snapshot taken at Map time, diffed against shadow on Unmap
	mapped    bool
	destroyed bool
}

var _ driver.Memory = (*Memory)(nil)

// Size returns the allocation size in bytes.
func (m *Memory) Size() uint64 { return m.size }

// Buffer returns the underlying HAL buffer, for binding into copy
// dispatches.
func (m *Memory) Buffer() hal.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf
}

// Map returns the host shadow of the buffer, refreshed from the device.
// The readback waits for previously submitted work, so every completed
// device write is visible in the returned view. The single physical
// device is index 0.
func (m *Memory) Map(deviceIdx int) ([]byte, error) {
	if deviceIdx != 0 {
		return nil, fmt.Errorf("%w: device index %d out of range", driver.ErrNoHostMemory, deviceIdx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, fmt.Errorf("%w: map %q: %w", driver.ErrNoHostMemory, m.label, ErrMemoryDestroyed)
	}
	if m.mapped {
		return m.shadow, nil
	}

	if err := m.dev.readBack(m.buf, m.size, m.shadow); err != nil {
		return nil, fmt.Errorf("%w: reading back %q: %w", driver.ErrNoHostMemory, m.label, err)
	}
	if m.clean == nil {
		m.clean = make([]byte, m.size)
	}
	copy(m.clean, m.shadow)
	m.mapped = true
	return m.shadow, nil
}

// Unmap flushes host modifications back to the buffer and ends the
// access scope. A view with no modifications flushes nothing.
func (m *Memory) Unmap(deviceIdx int) {
	if deviceIdx != 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mapped || m.destroyed {
		return
	}
	m.mapped = false

	first, last := diffSpan(m.shadow, m.clean)
	if first == last {
		return
	}
	// Widen to 8-byte boundaries to satisfy copy alignment; slots are
	// 8-byte words, so the widened span stays within host-owned bytes.
	first &^= 7
	last = (last + 7) &^ 7
	if last > m.size {
		last = m.size
	}
	m.dev.queue.WriteBuffer(m.buf, first, m.shadow[first:last])
}

// diffSpan returns the half-open byte range [first, last) where a and b
// differ, or (0, 0) when they are identical.
func diffSpan(a, b []byte) (first, last uint64) {
	n := len(a)
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	if i == n {
		return 0, 0
	}
	j := n - 1
	for j > i && a[j] == b[j] {
		j--
	}
	return uint64(i), uint64(j) + 1
}

// Destroy releases the buffer. Idempotent.
func (m *Memory) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}
	m.destroyed = true
	m.mapped = false
	m.shadow = nil
	m.clean = nil
	if m.buf != nil {
		m.dev.device.DestroyBuffer(m.buf)
		m.buf = nil
	}
}
