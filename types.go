package querypool

import (
	"fmt"
	"math/bits"
	"strings"
)

// QueryType selects what a pool's slots count.
type QueryType uint8

const (
	// TypeOcclusion counts samples that pass depth/stencil testing.
	TypeOcclusion QueryType = iota

	// TypePipelineStatistics counts pipeline stage invocations and
	// primitives, one value per statistic enabled in the descriptor.
	TypePipelineStatistics

	// TypeStreamoutStatistics counts streaming-output primitives:
	// two values per slot, primitives written and primitives needed.
	TypeStreamoutStatistics

	// TypeTimestamp records raw 64-bit device timestamps.
	TypeTimestamp
)

// String returns the string representation of QueryType.
func (t QueryType) String() string {
	switch t {
	case TypeOcclusion:
		return "Occlusion"
	case TypePipelineStatistics:
		return "PipelineStatistics"
	case TypeStreamoutStatistics:
		return "StreamoutStatistics"
	case TypeTimestamp:
		return "Timestamp"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// ResultFlags controls the layout and blocking behavior of Results.
// Bits combine independently.
type ResultFlags uint32

const (
	// FlagWide64 requests 64-bit value elements. Without it values are
	// 32-bit and wrap on overflow.
	FlagWide64 ResultFlags = 1 << iota

	// FlagWithAvailability appends one trailing element per slot:
	// 1 if the slot was ready, 0 if not. Written regardless of
	// whether the value elements were.
	FlagWithAvailability

	// FlagWait blocks until every requested slot is ready. The wait is
	// a host-side poll with no timeout; see Pool.Results.
	FlagWait

	// FlagPartial permits writing value elements even when the range
	// is not ready. Meaningful for streaming-output pools.
	FlagPartial
)

// Has reports whether every bit of mask is set.
func (f ResultFlags) Has(mask ResultFlags) bool { return f&mask == mask }

// String returns the string representation of ResultFlags.
func (f ResultFlags) String() string {
	if f == 0 {
		return "0"
	}
	names := []struct {
		bit  ResultFlags
		name string
	}{
		{FlagWide64, "Wide64"},
		{FlagWithAvailability, "WithAvailability"},
		{FlagWait, "Wait"},
		{FlagPartial, "Partial"},
	}
	var parts []string
	rest := f
	for _, n := range names {
		if rest&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Status is the outcome of a Results call.
type Status uint8

const (
	// StatusAllReady means every requested slot held a ready value.
	StatusAllReady Status = iota

	// StatusNotReady means at least one requested slot was still
	// unwritten. Routine, not an error: callers poll.
	StatusNotReady
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusAllReady:
		return "AllReady"
	case StatusNotReady:
		return "NotReady"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PipelineStatistics is a bitmask selecting which statistics a
// TypePipelineStatistics pool collects. Each enabled bit contributes one
// value element per slot, ordered by ascending bit position.
type PipelineStatistics uint32

const (
	StatisticInputAssemblyVertices PipelineStatistics = 1 << iota
	StatisticInputAssemblyPrimitives
	StatisticVertexShaderInvocations
	StatisticGeometryShaderInvocations
	StatisticGeometryShaderPrimitives
	StatisticClippingInvocations
	StatisticClippingPrimitives
	StatisticFragmentShaderInvocations
	StatisticTessControlPatches
	StatisticTessEvalInvocations
	StatisticComputeShaderInvocations
)

// statisticNames is ordered by bit position.
var statisticNames = [...]string{
	"InputAssemblyVertices",
	"InputAssemblyPrimitives",
	"VertexShaderInvocations",
	"GeometryShaderInvocations",
	"GeometryShaderPrimitives",
	"ClippingInvocations",
	"ClippingPrimitives",
	"FragmentShaderInvocations",
	"TessControlPatches",
	"TessEvalInvocations",
	"ComputeShaderInvocations",
}

// Count returns the number of enabled statistics, which equals the
// number of value elements each slot produces.
func (p PipelineStatistics) Count() int {
	return bits.OnesCount32(uint32(p))
}

// String returns the string representation of PipelineStatistics.
func (p PipelineStatistics) String() string {
	if p == 0 {
		return "0"
	}
	var parts []string
	rest := uint32(p)
	for i, name := range statisticNames {
		bit := uint32(1) << i
		if rest&bit != 0 {
			parts = append(parts, name)
			rest &^= bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", rest))
	}
	return strings.Join(parts, "|")
}

// PoolDescriptor describes a query pool to create.
type PoolDescriptor struct {
	// Label is an optional debug name, reported in log output.
	Label string

	// Type selects the counter kind. Immutable after creation.
	Type QueryType

	// SlotCount is the number of query slots. Zero is legal and
	// creates a pool that stores nothing.
	SlotCount uint32

	// PipelineStatistics selects the statistics collected per slot.
	// Required (non-zero) for TypePipelineStatistics, ignored for
	// every other type.
	PipelineStatistics PipelineStatistics
}
