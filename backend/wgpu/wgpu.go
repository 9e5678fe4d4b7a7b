// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides a query-pool backend on top of the wgpu hardware
// abstraction layer.
//
// The backend is timestamp-only: timestamp pools are backed by a GPU
// storage buffer with staged host access, and a compute pipeline is
// available for device-side result copies. Hardware counter engines
// (occlusion, pipeline statistics, streaming output) need command-stream
// access below what the HAL exposes, so CounterPoolSupported reports
// false and counter pools cannot be hosted here.
//
// The backend registers itself under the name "wgpu" on import:
//
//	import _ "github.com/gogpu/querypool/backend/wgpu"
//
//	dev, err := driver.Open("wgpu")
//
// Open creates a standalone Vulkan device. Applications that already own
// a GPU device through gogpu should use NewFromProvider instead to share
// it.
package wgpu

import (
	"log/slog"

	"github.com/gogpu/querypool/driver"
)

// BackendName is the name this backend registers under.
const BackendName = "wgpu"

type backend struct{}

func (backend) Name() string { return BackendName }

func (backend) Open() (driver.Device, error) { return New() }

// SetLogger propagates the logger from the root package.
func (backend) SetLogger(l *slog.Logger) { setLogger(l) }

func init() {
	driver.Register(backend{})
}
