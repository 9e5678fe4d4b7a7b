// Package sim provides a software implementation of the querypool
// driver interfaces: a virtual multi-GPU device whose counter engines
// and timestamp memory live in host memory.
//
// sim exists for development and testing. It models the device
// contract faithfully (per-device storage replicas, a shareable
// allocation mode, engine-native counter layouts, sentinel-based
// timestamp slots) while letting tests play the device's role through
// [Device.WriteTimestamp] and [Engine.Finish].
//
// Importing the package registers the "sim" backend:
//
//	import _ "github.com/gogpu/querypool/backend/sim"
//
//	dev, err := driver.Open("sim")
//
// Direct construction configures the virtual hardware:
//
//	dev, err := sim.New(sim.WithDeviceCount(4))
package sim

import (
	"log/slog"

	"github.com/gogpu/querypool/driver"
)

// BackendName is the name the package registers under.
const BackendName = "sim"

// backend implements driver.Backend.
type backend struct{}

func (backend) Name() string { return BackendName }

func (backend) Open() (driver.Device, error) { return New() }

// SetLogger receives the logger propagated from querypool.SetLogger.
func (backend) SetLogger(l *slog.Logger) { setLogger(l) }

func init() {
	driver.Register(backend{})
}
