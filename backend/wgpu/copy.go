// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/querypool/driver"
)

//go:embed shaders/timestamp_copy.wgsl
var timestampCopyWGSL string

// Shader-side flag bits. Must match timestamp_copy.wgsl.
const (
	copyFlagWide         = 1
	copyFlagAvailability = 2
)

// copyWorkgroupSize matches @workgroup_size in timestamp_copy.wgsl.
const copyWorkgroupSize = 64

// CopyParams describes one device-side result copy: slots
// [Start, Start+Count) of the source, marshalled at OutStride bytes per
// slot in the destination. SlotStride is the source slot footprint.
// Flags follow driver.ResultFlags; only ResultWide64 and
// ResultWithAvailability affect the kernel.
type CopyParams struct {
	Start      uint32
	Count      uint32
	SlotStride uint32
	OutStride  uint32
	Flags      driver.ResultFlags
}

// shaderFlags converts the driver flags to the kernel's flag word.
func (p CopyParams) shaderFlags() uint32 {
	var f uint32
	if p.Flags.Has(driver.ResultWide64) {
		f |= copyFlagWide
	}
	if p.Flags.Has(driver.ResultWithAvailability) {
		f |= copyFlagAvailability
	}
	return f
}

// toBytes packs the params into the uniform layout the shader expects:
// eight little-endian 32-bit words, the last three padding.
func (p CopyParams) toBytes() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], p.Start)
	binary.LittleEndian.PutUint32(buf[4:], p.Count)
	binary.LittleEndian.PutUint32(buf[8:], p.SlotStride)
	binary.LittleEndian.PutUint32(buf[12:], p.OutStride)
	binary.LittleEndian.PutUint32(buf[16:], p.shaderFlags())
	return buf
}

// copyWorkgroups returns the dispatch width for count slots, one
// invocation per slot.
func copyWorkgroups(count uint32) uint32 {
	return (count + copyWorkgroupSize - 1) / copyWorkgroupSize
}

// CopyPipeline marshals timestamp results on the device itself, the
// path for clients that consume results in GPU buffers without a host
// round trip. The kernel applies the same readiness rule as host
// retrieval: a slot still holding the not-ready sentinel keeps its
// destination bytes, and availability elements are written either way.
//
// The pipeline is created once and reused across copies.
type CopyPipeline struct {
	dev *Device

	mu        sync.Mutex
	destroyed bool

	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	pLayout  hal.PipelineLayout
	pipeline hal.ComputePipeline
}

// NewCopyPipeline compiles the copy kernel and builds its pipeline.
func NewCopyPipeline(dev *Device) (*CopyPipeline, error) {
	spirvBytes, err := naga.Compile(timestampCopyWGSL)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile copy shader: %w", err)
	}
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := dev.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "querypool_copy",
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create copy shader module: %w", err)
	}

	// @binding(0) uniform params
	// @binding(1) storage(read) src slots
	// @binding(2) storage(read_write) dst results
	bgLayout, err := dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "querypool_copy_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		dev.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create copy bind group layout: %w", err)
	}

	pLayout, err := dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "querypool_copy_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		dev.device.DestroyBindGroupLayout(bgLayout)
		dev.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create copy pipeline layout: %w", err)
	}

	pipeline, err := dev.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "querypool_copy",
		Layout: pLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		dev.device.DestroyPipelineLayout(pLayout)
		dev.device.DestroyBindGroupLayout(bgLayout)
		dev.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create copy pipeline: %w", err)
	}

	slogger().Debug("wgpu: copy pipeline created", "shader_bytes", len(spirvBytes))
	return &CopyPipeline{
		dev:      dev,
		module:   module,
		bgLayout: bgLayout,
		pLayout:  pLayout,
		pipeline: pipeline,
	}, nil
}

// Copy dispatches the kernel over src and blocks until the GPU
// finishes. Queue order makes every previously submitted timestamp
// write visible to the kernel, so no wait loop runs on the device.
func (c *CopyPipeline) Copy(src, dst *Memory, p CopyParams) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("wgpu: copy pipeline destroyed")
	}
	c.mu.Unlock()

	if p.Count == 0 {
		return nil
	}

	device := c.dev.device
	queue := c.dev.queue

	params, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "querypool_copy_params",
		Size:  uint64(len(p.toBytes())),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create copy params buffer: %w", err)
	}
	defer device.DestroyBuffer(params)
	queue.WriteBuffer(params, 0, p.toBytes())

	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "querypool_copy_bg",
		Layout: c.bgLayout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding:  0,
				Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Offset: 0, Size: 0},
			},
			{
				Binding:  1,
				Resource: gputypes.BufferBinding{Buffer: src.Buffer().NativeHandle(), Offset: 0, Size: 0},
			},
			{
				Binding:  2,
				Resource: gputypes.BufferBinding{Buffer: dst.Buffer().NativeHandle(), Offset: 0, Size: 0},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create copy bind group: %w", err)
	}
	defer device.DestroyBindGroup(bg)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "querypool_copy",
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("querypool_copy"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "querypool_copy",
	})
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(copyWorkgroups(p.Count), 1, 1)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	if err := c.dev.submitAndWait(cmdBuf); err != nil {
		return fmt.Errorf("wgpu: copy dispatch: %w", err)
	}

	slogger().Debug("wgpu: device copy complete",
		"start", p.Start, "count", p.Count, "out_stride", p.OutStride)
	return nil
}

// Destroy releases the pipeline. Idempotent.
func (c *CopyPipeline) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	c.destroyed = true

	device := c.dev.device
	if c.pipeline != nil {
		device.DestroyComputePipeline(c.pipeline)
		c.pipeline = nil
	}
	if c.pLayout != nil {
		device.DestroyPipelineLayout(c.pLayout)
		c.pLayout = nil
	}
	if c.bgLayout != nil {
		device.DestroyBindGroupLayout(c.bgLayout)
		c.bgLayout = nil
	}
	if c.module != nil {
		device.DestroyShaderModule(c.module)
		c.module = nil
	}
}
