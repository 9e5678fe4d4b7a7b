package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/querypool/driver"
	"github.com/gogpu/querypool/internal/layout"
)

// Device errors.
var (
	// ErrBadConfig is returned by New for an unusable configuration.
	ErrBadConfig = errors.New("sim: invalid device configuration")

	// ErrForeignMemory is returned when an allocation from another
	// backend is passed to a sim object.
	ErrForeignMemory = errors.New("sim: memory does not belong to this backend")

	// ErrMemoryDestroyed is returned when operating on destroyed memory.
	ErrMemoryDestroyed = errors.New("sim: memory has been destroyed")
)

// Option configures a Device during creation.
type Option func(*Device)

// WithDeviceCount sets the number of virtual physical devices in the
// lock-step group. Default 1.
func WithDeviceCount(n int) Option {
	return func(d *Device) { d.deviceCount = n }
}

// WithTimestampSlotSize sets the reported timestamp slot size in bytes.
// Default 8.
func WithTimestampSlotSize(size uint32) Option {
	return func(d *Device) { d.slotSize = size }
}

// WithStridedCopy sets whether the device reports strided-copy support
// for device-side result copies. Default true.
func WithStridedCopy(enabled bool) Option {
	return func(d *Device) { d.stridedCopy = enabled }
}

// WithoutCounters marks a virtual device as unable to collect backend
// counters, modeling a degraded multi-GPU configuration.
func WithoutCounters(deviceIdx int) Option {
	return func(d *Device) { d.noCounters[deviceIdx] = true }
}

// WithEngineFailure makes counter-engine creation fail on one virtual
// device with err. Used to exercise creation rollback.
func WithEngineFailure(deviceIdx int, err error) Option {
	return func(d *Device) { d.engineFail[deviceIdx] = err }
}

// WithAllocFailure makes every memory allocation fail with err.
func WithAllocFailure(err error) Option {
	return func(d *Device) { d.allocFail = err }
}

// WithMapFailure makes mapping any allocation on one virtual device
// fail, modeling a device whose aperture is gone. Used to exercise
// best-effort reset.
func WithMapFailure(deviceIdx int) Option {
	return func(d *Device) { d.mapFail[deviceIdx] = true }
}

// Device is a virtual lock-step multi-GPU device. It implements
// driver.Device entirely in host memory.
//
// Tests and demos play the device's role: WriteTimestamp stands in for
// the timestamp commands a queue would execute, and Engine.Finish for
// the counter writes of a command buffer.
type Device struct {
	deviceCount int
	slotSize    uint32
	stridedCopy bool

	noCounters map[int]bool
	engineFail map[int]error
	mapFail    map[int]bool
	allocFail  error

	mu      sync.Mutex
	engines map[int][]*Engine
}

// New creates a virtual device.
func New(opts ...Option) (*Device, error) {
	d := &Device{
		deviceCount: 1,
		slotSize:    8,
		stridedCopy: true,
		noCounters:  make(map[int]bool),
		engineFail:  make(map[int]error),
		mapFail:     make(map[int]bool),
		engines:     make(map[int][]*Engine),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.deviceCount < 1 {
		return nil, fmt.Errorf("%w: device count %d", ErrBadConfig, d.deviceCount)
	}
	slogger().Debug("sim device created",
		"devices", d.deviceCount,
		"slotSize", d.slotSize,
		"stridedCopy", d.stridedCopy)
	return d, nil
}

// DeviceCount returns the number of virtual physical devices.
func (d *Device) DeviceCount() int { return d.deviceCount }

// Properties returns the capabilities shared by the device group.
func (d *Device) Properties() driver.DeviceProperties {
	return driver.DeviceProperties{
		Name:              "sim",
		TimestampSlotSize: d.slotSize,
		StridedCopy:       d.stridedCopy,
	}
}

// CounterPoolSupported reports whether the virtual device at deviceIdx
// collects backend counters.
func (d *Device) CounterPoolSupported(deviceIdx int) bool {
	return deviceIdx >= 0 && deviceIdx < d.deviceCount && !d.noCounters[deviceIdx]
}

// NewCounterPool constructs a software counter engine on one virtual
// device.
func (d *Device) NewCounterPool(deviceIdx int, info driver.CounterPoolInfo) (driver.CounterEngine, error) {
	if deviceIdx < 0 || deviceIdx >= d.deviceCount {
		return nil, fmt.Errorf("%w: device index %d of %d", ErrBadConfig, deviceIdx, d.deviceCount)
	}
	if !d.CounterPoolSupported(deviceIdx) {
		return nil, fmt.Errorf("%w: device %d has no counter support", driver.ErrUnsupported, deviceIdx)
	}
	if err := d.engineFail[deviceIdx]; err != nil {
		return nil, err
	}

	e := newEngine(deviceIdx, info)
	d.mu.Lock()
	d.engines[deviceIdx] = append(d.engines[deviceIdx], e)
	d.mu.Unlock()
	return e, nil
}

// Engines returns the counter engines created on one virtual device,
// in creation order. Tests use it to reach the engines a pool owns and
// complete their slots.
func (d *Device) Engines(deviceIdx int) []*Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	es := make([]*Engine, len(d.engines[deviceIdx]))
	copy(es, d.engines[deviceIdx])
	return es
}

// AllocMemory allocates host-backed storage per info: one replica per
// virtual device, or a single shared region when info.Shareable is set.
func (d *Device) AllocMemory(info driver.MemoryInfo) (driver.Memory, error) {
	if err := d.allocFail; err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return nil, fmt.Errorf("%w: zero-size allocation", ErrBadConfig)
	}
	for _, h := range info.Heaps {
		if h == driver.HeapDeviceInvisible {
			return nil, fmt.Errorf("%w: device-invisible heap is not host-mappable", driver.ErrUnsupported)
		}
	}

	replicas := d.deviceCount
	if info.Shareable {
		replicas = 1
	}
	m := &memory{
		label:     info.Label,
		size:      info.Size,
		dev:       d,
		shareable: info.Shareable,
		replicas:  make([][]byte, replicas),
	}
	for i := range m.replicas {
		m.replicas[i] = make([]byte, info.Size)
	}
	slogger().Debug("sim memory allocated",
		"label", info.Label,
		"size", info.Size,
		"replicas", replicas,
		"shareable", info.Shareable)
	return m, nil
}

// TimestampReadView encodes a descriptor blob over timestamp memory.
// The layout mirrors a hardware buffer descriptor: base range, element
// stride, format, and the owning device index. Callers treat it as
// opaque.
func (d *Device) TimestampReadView(deviceIdx int, info driver.ReadViewInfo) ([]byte, error) {
	if deviceIdx < 0 || deviceIdx >= d.deviceCount {
		return nil, fmt.Errorf("%w: device index %d of %d", ErrBadConfig, deviceIdx, d.deviceCount)
	}
	if _, ok := info.Memory.(*memory); !ok {
		return nil, ErrForeignMemory
	}

	view := make([]byte, 16)
	binary.LittleEndian.PutUint64(view[0:], info.Range)
	binary.LittleEndian.PutUint32(view[8:], uint32(info.Stride))
	view[12] = byte(info.Format)
	view[13] = byte(deviceIdx)
	return view, nil
}

// WriteTimestamp plays the device's part of the timestamp protocol:
// it stores value into slot with a single atomic 64-bit write on every
// replica of mem, exactly as the lock-step group would while executing
// a timestamp command.
func (d *Device) WriteTimestamp(mem driver.Memory, slot uint32, value uint64) error {
	m, ok := mem.(*memory)
	if !ok {
		return ErrForeignMemory
	}
	off := uint64(slot) * uint64(d.slotSize)
	return m.storeAll(off, value)
}

// timestampNotReady is the slot sentinel the device-side copy kernel
// tests against. It matches the value reset writes into fresh slots.
const timestampNotReady = ^uint64(0)

// CopySlots marshals count timestamp slots from src into dst, the host
// rendition of the device-side copy kernel: a slot's value is written
// only once the slot left the sentinel state, the availability word is
// written either way when requested, and the output cursor advances
// unconditionally so skipped slots leave their destination bytes
// untouched.
func (d *Device) CopySlots(src, dst driver.Memory, start, count uint32, slotStride, outStride uint64, flags driver.ResultFlags) error {
	sm, ok := src.(*memory)
	if !ok {
		return ErrForeignMemory
	}
	dm, ok := dst.(*memory)
	if !ok {
		return ErrForeignMemory
	}
	if count == 0 {
		return nil
	}
	if slotStride == 0 {
		slotStride = uint64(d.slotSize)
	}

	elem := layout.ElemWidth(flags)
	written := layout.SlotWidth(1, flags)
	if outStride < written {
		return fmt.Errorf("%w: output stride %d below %d-byte slot", ErrBadConfig, outStride, written)
	}
	if need := (uint64(start) + uint64(count)) * slotStride; need > sm.size {
		return fmt.Errorf("%w: source range %d exceeds %d-byte allocation", ErrBadConfig, need, sm.size)
	}
	if need := uint64(count-1)*outStride + written; need > dm.size {
		return fmt.Errorf("%w: destination range %d exceeds %d-byte allocation", ErrBadConfig, need, dm.size)
	}

	srcData, err := sm.Map(0)
	if err != nil {
		return err
	}
	defer sm.Unmap(0)
	dstData, err := dm.Map(0)
	if err != nil {
		return err
	}
	defer dm.Unmap(0)

	for i := uint32(0); i < count; i++ {
		v := driver.LoadUint64(srcData, (uint64(start)+uint64(i))*slotStride)
		out := dstData[uint64(i)*outStride:]
		if v != timestampNotReady {
			layout.PutElem(out, flags, v)
		}
		if flags.Has(driver.ResultWithAvailability) {
			avail := uint64(0)
			if v != timestampNotReady {
				avail = 1
			}
			layout.PutElem(out[elem:], flags, avail)
		}
	}
	return nil
}
