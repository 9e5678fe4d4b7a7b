// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/querypool/driver"
)

// Errors returned by the wgpu backend.
var (
	// ErrNoAdapter is returned when no GPU adapters are found.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrProvider is returned when an external provider does not expose
	// HAL device and queue handles.
	ErrProvider = errors.New("wgpu: provider does not expose HAL device and queue")

	// ErrDeviceDestroyed is returned when operating on a destroyed device.
	ErrDeviceDestroyed = errors.New("wgpu: device destroyed")

	// ErrMemoryDestroyed is returned when operating on destroyed memory.
	ErrMemoryDestroyed = errors.New("wgpu: memory destroyed")
)

const (
	// timestampSlotSize is the slot footprint the HAL produces: one
	// 8-byte counter word per timestamp write.
	timestampSlotSize = 8

	// fenceTimeout is the maximum time to wait for GPU work to complete.
	fenceTimeout = 5 * time.Second
)

// Device is a query-pool device over one wgpu HAL device.
//
// The group always has exactly one physical device. Timestamp memory is
// a GPU storage buffer with staged host access: Map reads the buffer
// back through a staging copy, Unmap writes host modifications forward,
// so host visibility of device writes follows queue completion rather
// than cache traffic. Counter pools are not supported; see the package
// documentation.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName    string
	externalDevice bool // true when using a shared device (don't destroy on Destroy)
	destroyed      bool

	copyPipe *CopyPipeline // built on first CopySlots
}

var _ driver.Device = (*Device)(nil)

// New creates a standalone device on the Vulkan HAL backend. It selects
// a discrete GPU when one is present, otherwise the first adapter.
//
// Applications that already own a device should share it through
// NewFromProvider instead of creating a second one here.
func New() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := &Device{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}
	slogger().Info("wgpu: device opened (standalone)", "adapter", selected.Info.Name)
	return d, nil
}

// NewFromProvider wraps a shared GPU device from an external provider.
// The provider must expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue, either directly or through its
// gpucontext.DeviceProvider device. The caller retains ownership of the
// underlying device; Destroy releases only this wrapper.
func NewFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}

	hp, ok := provider.(halProvider)
	if !ok {
		// gogpu exposes the HAL handles on the context device rather
		// than on the provider itself.
		dp, isDP := provider.(gpucontext.DeviceProvider)
		if !isDP {
			return nil, ErrProvider
		}
		if hp, ok = dp.Device().(halProvider); !ok {
			return nil, ErrProvider
		}
	}

	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}

	d := &Device{
		device:         device,
		queue:          queue,
		adapterName:    "shared",
		externalDevice: true,
	}
	slogger().Debug("wgpu: using shared GPU device")
	return d, nil
}

// Destroy releases the device. Owned HAL resources are destroyed;
// shared ones from NewFromProvider are left to their owner. Idempotent.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return
	}
	d.destroyed = true

	if d.copyPipe != nil {
		d.copyPipe.Destroy()
		d.copyPipe = nil
	}
	if !d.externalDevice {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// DeviceCount returns 1: the HAL exposes a single logical device.
func (d *Device) DeviceCount() int { return 1 }

// Properties returns the device capabilities.
func (d *Device) Properties() driver.DeviceProperties {
	return driver.DeviceProperties{
		Name:              d.adapterName,
		TimestampSlotSize: timestampSlotSize,
		StridedCopy:       true,
	}
}

// CounterPoolSupported reports false: hardware counter collection needs
// command-stream access below what the HAL exposes.
func (d *Device) CounterPoolSupported(int) bool { return false }

// NewCounterPool always fails; this backend hosts timestamp pools only.
func (d *Device) NewCounterPool(_ int, info driver.CounterPoolInfo) (driver.CounterEngine, error) {
	return nil, fmt.Errorf("%w: %s counters are not available on the wgpu backend", driver.ErrUnsupported, info.Kind)
}

// AllocMemory allocates a GPU storage buffer with a host shadow.
func (d *Device) AllocMemory(info driver.MemoryInfo) (driver.Memory, error) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil, ErrDeviceDestroyed
	}
	d.mu.Unlock()

	if info.Size == 0 {
		return nil, fmt.Errorf("wgpu: zero-size allocation %q", info.Label)
	}
	// Every heap this backend serves is host-reachable through the
	// staging path; an invisible-only request cannot be satisfied.
	if len(info.Heaps) > 0 {
		visible := false
		for _, h := range info.Heaps {
			if h != driver.HeapDeviceInvisible {
				visible = true
				break
			}
		}
		if !visible {
			return nil, fmt.Errorf("%w: no host-reachable heap requested", driver.ErrUnsupported)
		}
	}

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: info.Label,
		Size:  info.Size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create buffer %q: %w", driver.ErrNoDeviceMemory, info.Label, err)
	}

	// Buffer contents start undefined; zero them so fresh memory reads
	// deterministically on every path.
	d.queue.WriteBuffer(buf, 0, make([]byte, info.Size))

	m := &Memory{
		label:  info.Label,
		size:   info.Size,
		dev:    d,
		buf:    buf,
		shadow: make([]byte, info.Size),
	}
	slogger().Debug("wgpu: memory allocated", "label", info.Label, "bytes", info.Size)
	return m, nil
}

// TimestampReadView packs the per-device view descriptor used by
// device-side copy dispatch. The single physical device is index 0.
func (d *Device) TimestampReadView(deviceIdx int, info driver.ReadViewInfo) ([]byte, error) {
	if deviceIdx != 0 {
		return nil, fmt.Errorf("wgpu: device index %d out of range", deviceIdx)
	}
	return packReadView(deviceIdx, info), nil
}

// CopySlots marshals timestamp slots from src into dst on the device.
// The compute pipeline behind it is compiled on first use and reused
// until the device is destroyed.
func (d *Device) CopySlots(src, dst *Memory, p CopyParams) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return fmt.Errorf("copy slots: %w", ErrDeviceDestroyed)
	}
	pipe := d.copyPipe
	d.mu.Unlock()

	if pipe == nil {
		built, err := NewCopyPipeline(d)
		if err != nil {
			return err
		}
		d.mu.Lock()
		if d.copyPipe == nil && !d.destroyed {
			d.copyPipe = built
		}
		pipe = d.copyPipe
		d.mu.Unlock()
		if pipe != built {
			// Another goroutine won the build race, or the device went
			// away while we were compiling.
			built.Destroy()
		}
		if pipe == nil {
			return fmt.Errorf("copy slots: %w", ErrDeviceDestroyed)
		}
	}
	return pipe.Copy(src, dst, p)
}

// packReadView serializes a read-view descriptor: addressable range,
// slot stride, view format, device index.
func packReadView(deviceIdx int, info driver.ReadViewInfo) []byte {
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint64(blob[0:], info.Range)
	binary.LittleEndian.PutUint32(blob[8:], uint32(info.Stride))
	blob[12] = byte(info.Format)
	blob[13] = byte(deviceIdx)
	return blob
}

// readBack copies size bytes of buf into dst through a staging buffer,
// waiting for the GPU to finish the copy.
func (d *Device) readBack(buf hal.Buffer, size uint64, dst []byte) error {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "querypool_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "querypool_readback",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("querypool_readback"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(cmdBuf); err != nil {
		return err
	}

	if err := d.queue.ReadBuffer(staging, 0, dst); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	return nil
}

// submitAndWait submits one command buffer and blocks until the GPU
// signals completion or fenceTimeout passes.
func (d *Device) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("GPU timeout after %v", fenceTimeout)
	}
	return nil
}
