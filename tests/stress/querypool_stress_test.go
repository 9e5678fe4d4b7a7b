// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build stress

package stress

import (
	"encoding/binary"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/querypool"
	"github.com/gogpu/querypool/backend/sim"
)

// =============================================================================
// Stress Tests for the Query Pool Subsystem
// These tests verify stability under extreme conditions
// =============================================================================

// TestStressPoolChurn creates and destroys pools of every type in a
// tight loop on a multi-device group.
func TestStressPoolChurn(t *testing.T) {
	dev, err := sim.New(sim.WithDeviceCount(2))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	descs := []querypool.PoolDescriptor{
		{Type: querypool.TypeOcclusion, SlotCount: 64},
		{Type: querypool.TypeTimestamp, SlotCount: 64},
		{Type: querypool.TypeStreamoutStatistics, SlotCount: 64},
		{
			Type:               querypool.TypePipelineStatistics,
			SlotCount:          64,
			PipelineStatistics: querypool.StatisticInputAssemblyVertices | querypool.StatisticComputeShaderInvocations,
		},
	}

	const iterations = 1000
	for i := 0; i < iterations; i++ {
		pool, err := querypool.New(dev, descs[i%len(descs)])
		if err != nil {
			t.Fatalf("iteration %d: New: %v", i, err)
		}
		pool.Destroy()
	}

	// Every engine the churn created must have been destroyed with its
	// pool.
	for d := 0; d < dev.DeviceCount(); d++ {
		for ei, engine := range dev.Engines(d) {
			if !engine.IsDestroyed() {
				t.Fatalf("device %d engine %d leaked", d, ei)
			}
		}
	}

	t.Logf("%d pools created and destroyed, %d engines cleaned up",
		iterations, len(dev.Engines(0))+len(dev.Engines(1)))
}

// TestStressLargeTimestampPool fills a 65536-slot pool and retrieves
// the whole range at once.
func TestStressLargeTimestampPool(t *testing.T) {
	dev, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	const slots = 1 << 16
	pool, err := querypool.New(dev, querypool.PoolDescriptor{
		Type:      querypool.TypeTimestamp,
		SlotCount: slots,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Destroy()

	for s := uint32(0); s < slots; s++ {
		if err := dev.WriteTimestamp(pool.Memory(), s, uint64(s)*3+1); err != nil {
			t.Fatalf("WriteTimestamp(%d): %v", s, err)
		}
	}

	dst := make([]byte, slots*8)
	status, err := pool.Results(0, slots, dst, 0, querypool.FlagWide64)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if status != querypool.StatusAllReady {
		t.Fatalf("status = %v, want AllReady", status)
	}

	for _, s := range []uint32{0, 1, slots / 2, slots - 1} {
		got := binary.LittleEndian.Uint64(dst[s*8:])
		if want := uint64(s)*3 + 1; got != want {
			t.Errorf("slot %d = %d, want %d", s, got, want)
		}
	}

	t.Logf("%d slots written and retrieved", slots)
}

// TestStressConcurrentTimestampReaders runs parallel writers and
// readers against one pool until every slot reports ready.
func TestStressConcurrentTimestampReaders(t *testing.T) {
	dev, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	const (
		slots   = 4096
		writers = 8
		readers = 8
	)
	pool, err := querypool.New(dev, querypool.PoolDescriptor{
		Type:      querypool.TypeTimestamp,
		SlotCount: slots,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Destroy()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(stripe uint32) {
			defer wg.Done()
			for s := stripe; s < slots; s += writers {
				if err := dev.WriteTimestamp(pool.Memory(), s, uint64(s)+1); err != nil {
					t.Errorf("WriteTimestamp(%d): %v", s, err)
					return
				}
			}
		}(uint32(w))
	}

	var readsDone sync.WaitGroup
	for r := 0; r < readers; r++ {
		readsDone.Add(1)
		go func() {
			defer readsDone.Done()
			dst := make([]byte, slots*16)
			for {
				status, err := pool.Results(0, slots, dst, 0,
					querypool.FlagWide64|querypool.FlagWithAvailability)
				if err != nil {
					t.Errorf("Results: %v", err)
					return
				}
				if status == querypool.StatusAllReady {
					return
				}
				runtime.Gosched()
			}
		}()
	}

	wg.Wait()
	readsDone.Wait()

	dst := make([]byte, slots*8)
	status, err := pool.Results(0, slots, dst, 0, querypool.FlagWide64)
	if err != nil {
		t.Fatalf("final Results: %v", err)
	}
	if status != querypool.StatusAllReady {
		t.Fatalf("final status = %v, want AllReady", status)
	}
	t.Logf("%d writers and %d readers converged over %d slots", writers, readers, slots)
}

// TestStressResetUnderLoad interleaves finishes, resets, and polls on
// one counter pool from separate goroutines.
func TestStressResetUnderLoad(t *testing.T) {
	dev, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	const slots = 256
	pool, err := querypool.New(dev, querypool.PoolDescriptor{
		Type:      querypool.TypeOcclusion,
		SlotCount: slots,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Destroy()
	engine := dev.Engines(0)[0]

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for s := uint32(0); s < slots; s++ {
				if err := engine.Finish(s, uint64(s)); err != nil {
					t.Errorf("Finish(%d): %v", s, err)
					return
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			pool.Reset(0, slots)
			runtime.Gosched()
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]byte, slots*16)
			for {
				select {
				case <-stop:
					return
				default:
				}
				status, err := pool.Results(0, slots, dst, 0,
					querypool.FlagWide64|querypool.FlagWithAvailability)
				if err != nil {
					t.Errorf("Results: %v", err)
					return
				}
				if status != querypool.StatusAllReady && status != querypool.StatusNotReady {
					t.Errorf("unexpected status %v", status)
					return
				}
			}
		}()
	}

	time.Sleep(500 * time.Millisecond)
	close(stop)
	wg.Wait()
}

// TestStressWaitCompletes blocks on a large range while a writer fills
// it slot by slot.
func TestStressWaitCompletes(t *testing.T) {
	dev, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	const slots = 1024
	pool, err := querypool.New(dev, querypool.PoolDescriptor{
		Type:      querypool.TypeTimestamp,
		SlotCount: slots,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pool.Destroy()

	go func() {
		for s := uint32(0); s < slots; s++ {
			if s%64 == 0 {
				time.Sleep(time.Millisecond)
			}
			_ = dev.WriteTimestamp(pool.Memory(), s, uint64(s)^0xABCD)
		}
	}()

	dst := make([]byte, slots*8)
	status, err := pool.Results(0, slots, dst, 0, querypool.FlagWide64|querypool.FlagWait)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if status != querypool.StatusAllReady {
		t.Fatalf("status = %v, want AllReady after wait", status)
	}
	for _, s := range []uint32{0, 511, slots - 1} {
		got := binary.LittleEndian.Uint64(dst[s*8:])
		if want := uint64(s) ^ 0xABCD; got != want {
			t.Errorf("slot %d = %d, want %d", s, got, want)
		}
	}
}
