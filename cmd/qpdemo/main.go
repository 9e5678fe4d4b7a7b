// Command qpdemo exercises a query pool against a registered backend.
//
// With the simulator backend it injects sample counter values so every
// retrieval path can be watched end to end; with a hardware backend it
// creates the pool and polls, reporting whatever the device has written.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/querypool"
	"github.com/gogpu/querypool/backend/sim"
	"github.com/gogpu/querypool/driver"

	_ "github.com/gogpu/querypool/backend/wgpu"
)

func main() {
	var (
		backendName = flag.String("backend", "sim", "backend to open (sim, wgpu)")
		typeName    = flag.String("type", "timestamp", "query type (timestamp, occlusion, statistics, streamout)")
		slots       = flag.Uint("slots", 4, "number of query slots")
		wide        = flag.Bool("wide", true, "retrieve 64-bit values")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		querypool.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	desc, elems, err := describe(*typeName, uint32(*slots))
	if err != nil {
		log.Fatal(err)
	}

	dev, err := driver.Open(*backendName)
	if err != nil {
		log.Fatalf("open backend %q: %v", *backendName, err)
	}

	pool, err := querypool.New(dev, desc)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Destroy()

	fmt.Printf("pool %q: type=%s slots=%d devices=%d backend=%s\n",
		pool.Label(), pool.Type(), pool.SlotCount(), dev.DeviceCount(), *backendName)

	// The simulator has no command stream, so stand in for it.
	if simDev, ok := dev.(*sim.Device); ok {
		inject(simDev, pool, desc, elems)
	}

	flags := querypool.FlagWithAvailability
	valueWidth := 4
	if *wide {
		flags |= querypool.FlagWide64
		valueWidth = 8
	}

	slotWidth := (elems + 1) * valueWidth
	dst := make([]byte, int(*slots)*slotWidth)
	status, err := pool.Results(0, uint32(*slots), dst, 0, flags)
	if err != nil {
		log.Fatalf("results: %v", err)
	}
	fmt.Printf("status: %s\n", status)

	for s := 0; s < int(*slots); s++ {
		base := s * slotWidth
		values := make([]string, elems)
		for e := 0; e < elems; e++ {
			values[e] = fmt.Sprint(readValue(dst[base+e*valueWidth:], *wide))
		}
		avail := readValue(dst[base+elems*valueWidth:], *wide)
		fmt.Printf("  slot %d: [%s] available=%d\n", s, strings.Join(values, " "), avail)
	}
}

// describe maps a type name to a pool descriptor and its per-slot value
// element count.
func describe(name string, slots uint32) (querypool.PoolDescriptor, int, error) {
	desc := querypool.PoolDescriptor{Label: "qpdemo", SlotCount: slots}
	switch name {
	case "timestamp":
		desc.Type = querypool.TypeTimestamp
		return desc, 1, nil
	case "occlusion":
		desc.Type = querypool.TypeOcclusion
		return desc, 1, nil
	case "statistics":
		desc.Type = querypool.TypePipelineStatistics
		desc.PipelineStatistics = querypool.StatisticInputAssemblyVertices |
			querypool.StatisticVertexShaderInvocations |
			querypool.StatisticFragmentShaderInvocations
		return desc, desc.PipelineStatistics.Count(), nil
	case "streamout":
		desc.Type = querypool.TypeStreamoutStatistics
		return desc, 2, nil
	default:
		return desc, 0, fmt.Errorf("unknown query type %q", name)
	}
}

// inject writes sample values into every slot through the simulator.
func inject(dev *sim.Device, pool *querypool.Pool, desc querypool.PoolDescriptor, elems int) {
	if desc.Type == querypool.TypeTimestamp {
		for s := uint32(0); s < desc.SlotCount; s++ {
			if err := dev.WriteTimestamp(pool.Memory(), s, 100000+uint64(s)*777); err != nil {
				log.Fatalf("write timestamp: %v", err)
			}
		}
		return
	}

	for d := 0; d < dev.DeviceCount(); d++ {
		for _, engine := range dev.Engines(d) {
			for s := uint32(0); s < desc.SlotCount; s++ {
				values := make([]uint64, elems)
				for e := range values {
					values[e] = uint64(s+1) * 100 * uint64(e+1)
				}
				if err := engine.Finish(s, values...); err != nil {
					log.Fatalf("finish slot %d on device %d: %v", s, d, err)
				}
			}
		}
	}
}

func readValue(b []byte, wide bool) uint64 {
	if wide {
		return binary.LittleEndian.Uint64(b)
	}
	return uint64(binary.LittleEndian.Uint32(b))
}
