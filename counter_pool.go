package querypool

import (
	"fmt"

	"github.com/gogpu/querypool/driver"
)

// counterPool owns one backend counter engine per physical device plus
// the single GPU allocation bound to all of them. Results are read from
// device 0; reset touches every device.
type counterPool struct {
	kind    driver.CounterKind
	engines []driver.CounterEngine // indexed by device; nil = no counter support
	mem     driver.Memory
}

// counterHeaps lists the acceptable heaps for engine storage: anything
// host-mappable, never the device-invisible heap.
var counterHeaps = []driver.Heap{
	driver.HeapDeviceLocal,
	driver.HeapHostCached,
	driver.HeapHostUncached,
}

func newCounterPool(dev driver.Device, desc PoolDescriptor) (*counterPool, error) {
	info := driver.CounterPoolInfo{
		Label:        desc.Label,
		Kind:         convertCounterKind(desc.Type),
		SlotCount:    desc.SlotCount,
		EnabledStats: convertStatistics(desc.PipelineStatistics),
	}

	// Results always come from device 0, so a group whose first device
	// cannot collect counters cannot host this pool at all. Other
	// devices may lack support; their slots stay nil and reset skips
	// them.
	if !dev.CounterPoolSupported(0) {
		return nil, fmt.Errorf("%w: device 0 cannot collect %s counters", driver.ErrUnsupported, info.Kind)
	}

	n := dev.DeviceCount()
	c := &counterPool{
		kind:    info.Kind,
		engines: make([]driver.CounterEngine, n),
	}

	var err error
	for d := 0; d < n; d++ {
		if !dev.CounterPoolSupported(d) {
			Logger().Debug("counter pool skipping device without counter support",
				"label", desc.Label, "device", d)
			continue
		}
		c.engines[d], err = dev.NewCounterPool(d, info)
		if err != nil {
			err = fmt.Errorf("creating %s engine on device %d: %w", info.Kind, d, err)
			break
		}
	}

	// Size once from device 0 (the group runs in lock-step, so every
	// engine reports identical requirements), then bind the single
	// allocation to every engine.
	if err == nil {
		req := c.engines[0].MemoryRequirements()
		c.mem, err = dev.AllocMemory(driver.MemoryInfo{
			Label:     desc.Label,
			Size:      req.Size,
			Alignment: req.Alignment,
			Heaps:     counterHeaps,
		})
		if err != nil {
			err = fmt.Errorf("%w: allocating counter storage: %w", ErrOutOfMemory, err)
		}
	}
	if err == nil {
		for d := 0; d < n && err == nil; d++ {
			if c.engines[d] == nil {
				continue
			}
			if bindErr := c.engines[d].BindMemory(c.mem, 0); bindErr != nil {
				err = fmt.Errorf("binding counter storage on device %d: %w", d, bindErr)
			}
		}
	}

	if err != nil {
		// Tear down every engine constructed before the failure so no
		// per-device handle leaks.
		for d := 0; d < n; d++ {
			if c.engines[d] != nil {
				c.engines[d].Destroy()
			}
		}
		if c.mem != nil {
			c.mem.Destroy()
		}
		Logger().Debug("counter pool creation rolled back", "label", desc.Label, "err", err)
		return nil, err
	}
	return c, nil
}

func (c *counterPool) results(start, count uint32, dst []byte, stride uint64, flags ResultFlags) (Status, error) {
	if count == 0 {
		return StatusAllReady, nil
	}

	if c.kind == driver.KindStreamout {
		return c.streamoutResults(start, count, dst, stride, flags)
	}

	ready, err := c.engines[0].Results(convertResultFlags(flags), start, count, dst, stride)
	if err != nil {
		return StatusNotReady, err
	}
	if !ready {
		return StatusNotReady, nil
	}
	return StatusAllReady, nil
}

func (c *counterPool) reset(start, count uint32) {
	for d, eng := range c.engines {
		if eng == nil {
			continue
		}
		if err := eng.Reset(start, count); err != nil {
			Logger().Warn("counter reset skipped device", "device", d, "err", err)
		}
	}
}

func (c *counterPool) destroy() {
	for _, eng := range c.engines {
		if eng != nil {
			eng.Destroy()
		}
	}
	if c.mem != nil {
		c.mem.Destroy()
	}
}
