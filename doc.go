// Package querypool retrieves GPU-recorded counters (occlusion samples,
// pipeline statistics, streaming-output statistics, and timestamps) back
// to the host, across one or more physical devices operating in lock-step.
//
// # Overview
//
// A Pool is a fixed-capacity collection of counter slots of one query
// type. The device writes slots asynchronously while commands execute;
// the host reads them back with Results, which marshals raw counters
// into a caller-controlled byte layout, and recycles them with Reset.
// There is no completion interrupt: readiness is detected by comparing
// each slot against a reserved sentinel value the device can never
// legally produce.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/querypool"
//	    "github.com/gogpu/querypool/backend/sim"
//	)
//
//	dev, _ := sim.New()
//	pool, _ := querypool.New(dev, querypool.PoolDescriptor{
//	    Type:      querypool.TypeTimestamp,
//	    SlotCount: 16,
//	})
//	defer pool.Destroy()
//
//	// ... device writes timestamps while commands execute ...
//
//	dst := make([]byte, 16*8)
//	status, _ := pool.Results(0, 16, dst, 0, querypool.FlagWide64)
//	if status == querypool.StatusNotReady {
//	    // poll again later; not an error
//	}
//
// # Query Types
//
// Occlusion, pipeline-statistics, and streaming-output pools delegate
// storage to a backend counter engine, one per physical device, all
// bound to a single GPU allocation. Timestamp pools own persistently
// mapped memory directly and poll it on the host.
//
// # Multi-GPU Replication
//
// Creation, reset, and destruction act on every physical device in the
// group; Results reads only device 0. Reset is best effort: a degraded
// device is skipped rather than failing the healthy ones.
//
// # Backends
//
// Devices come from backend packages registered with the driver
// registry. backend/sim is a self-contained software device used for
// development and tests; backend/wgpu adapts a gogpu/wgpu device and
// supports timestamp pools.
//
// # Logging
//
// querypool produces no log output by default. Call SetLogger to enable
// structured logging through log/slog.
package querypool

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
