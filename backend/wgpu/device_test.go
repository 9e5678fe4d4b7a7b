// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/querypool/driver"
)

func TestBackendRegistered(t *testing.T) {
	for _, b := range driver.Backends() {
		if b.Name() == BackendName {
			return
		}
	}
	t.Fatalf("backend %q not registered", BackendName)
}

func TestDeviceProperties(t *testing.T) {
	d := &Device{adapterName: "TestAdapter"}

	if got := d.DeviceCount(); got != 1 {
		t.Errorf("DeviceCount() = %d, want 1", got)
	}
	props := d.Properties()
	if props.Name != "TestAdapter" {
		t.Errorf("Name = %q, want %q", props.Name, "TestAdapter")
	}
	if props.TimestampSlotSize != 8 {
		t.Errorf("TimestampSlotSize = %d, want 8", props.TimestampSlotSize)
	}
	if !props.StridedCopy {
		t.Error("StridedCopy = false, want true")
	}
	if d.CounterPoolSupported(0) {
		t.Error("CounterPoolSupported(0) = true, want false")
	}
}

func TestCounterPoolUnsupported(t *testing.T) {
	d := &Device{}
	_, err := d.NewCounterPool(0, driver.CounterPoolInfo{Kind: driver.KindOcclusion, SlotCount: 4})
	if !errors.Is(err, driver.ErrUnsupported) {
		t.Fatalf("NewCounterPool error = %v, want driver.ErrUnsupported", err)
	}
}

type fakeProvider struct {
	dev   any
	queue any
}

func (p fakeProvider) HalDevice() any { return p.dev }
func (p fakeProvider) HalQueue() any  { return p.queue }

func TestNewFromProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider any
	}{
		{"not a provider", 42},
		{"wrong handle types", fakeProvider{dev: "nope", queue: "nope"}},
		{"nil handles", fakeProvider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromProvider(tt.provider); !errors.Is(err, ErrProvider) {
				t.Errorf("NewFromProvider error = %v, want ErrProvider", err)
			}
		})
	}
}

func TestPackReadView(t *testing.T) {
	blob := packReadView(2, driver.ReadViewInfo{
		Range:  256,
		Stride: 8,
		Format: driver.ViewFormatRG32Uint,
	})

	if len(blob) != 16 {
		t.Fatalf("view length = %d, want 16", len(blob))
	}
	if got := binary.LittleEndian.Uint64(blob[0:]); got != 256 {
		t.Errorf("range = %d, want 256", got)
	}
	if got := binary.LittleEndian.Uint32(blob[8:]); got != 8 {
		t.Errorf("stride = %d, want 8", got)
	}
	if blob[12] != byte(driver.ViewFormatRG32Uint) {
		t.Errorf("format = %d, want %d", blob[12], driver.ViewFormatRG32Uint)
	}
	if blob[13] != 2 {
		t.Errorf("device index = %d, want 2", blob[13])
	}
}

func TestTimestampReadViewRange(t *testing.T) {
	d := &Device{}

	if _, err := d.TimestampReadView(1, driver.ReadViewInfo{Range: 64}); err == nil {
		t.Error("TimestampReadView(1) succeeded, want out-of-range error")
	}
	blob, err := d.TimestampReadView(0, driver.ReadViewInfo{Range: 64})
	if err != nil {
		t.Fatalf("TimestampReadView(0): %v", err)
	}
	if len(blob) == 0 {
		t.Error("TimestampReadView(0) returned empty view")
	}
}
