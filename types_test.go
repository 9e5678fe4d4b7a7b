package querypool

import (
	"testing"

	"github.com/gogpu/querypool/driver"
)

func TestQueryTypeString(t *testing.T) {
	tests := []struct {
		typ  QueryType
		want string
	}{
		{TypeOcclusion, "Occlusion"},
		{TypePipelineStatistics, "PipelineStatistics"},
		{TypeStreamoutStatistics, "StreamoutStatistics"},
		{TypeTimestamp, "Timestamp"},
		{QueryType(99), "Unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("QueryType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestResultFlagsString(t *testing.T) {
	tests := []struct {
		flags ResultFlags
		want  string
	}{
		{0, "0"},
		{FlagWide64, "Wide64"},
		{FlagWide64 | FlagWait, "Wide64|Wait"},
		{FlagWithAvailability | FlagPartial, "WithAvailability|Partial"},
		{ResultFlags(1 << 30), "0x40000000"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("ResultFlags(%#x).String() = %q, want %q", uint32(tt.flags), got, tt.want)
		}
	}
}

func TestResultFlagsHas(t *testing.T) {
	f := FlagWide64 | FlagWait
	if !f.Has(FlagWide64) {
		t.Error("Has(Wide64) = false")
	}
	if !f.Has(FlagWide64 | FlagWait) {
		t.Error("Has(Wide64|Wait) = false")
	}
	if f.Has(FlagPartial) {
		t.Error("Has(Partial) = true")
	}
	if f.Has(FlagWide64 | FlagPartial) {
		t.Error("Has(Wide64|Partial) = true for a half-set mask")
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusAllReady.String(); got != "AllReady" {
		t.Errorf("StatusAllReady = %q", got)
	}
	if got := StatusNotReady.String(); got != "NotReady" {
		t.Errorf("StatusNotReady = %q", got)
	}
	if got := Status(7).String(); got != "Unknown(7)" {
		t.Errorf("Status(7) = %q", got)
	}
}

func TestPipelineStatisticsCount(t *testing.T) {
	tests := []struct {
		mask PipelineStatistics
		want int
	}{
		{0, 0},
		{StatisticInputAssemblyVertices, 1},
		{StatisticInputAssemblyVertices | StatisticComputeShaderInvocations, 2},
		{StatisticInputAssemblyVertices |
			StatisticInputAssemblyPrimitives |
			StatisticVertexShaderInvocations |
			StatisticGeometryShaderInvocations |
			StatisticGeometryShaderPrimitives |
			StatisticClippingInvocations |
			StatisticClippingPrimitives |
			StatisticFragmentShaderInvocations |
			StatisticTessControlPatches |
			StatisticTessEvalInvocations |
			StatisticComputeShaderInvocations, 11},
	}
	for _, tt := range tests {
		if got := tt.mask.Count(); got != tt.want {
			t.Errorf("Count(%#x) = %d, want %d", uint32(tt.mask), got, tt.want)
		}
	}
}

func TestPipelineStatisticsString(t *testing.T) {
	mask := StatisticVertexShaderInvocations | StatisticComputeShaderInvocations
	want := "VertexShaderInvocations|ComputeShaderInvocations"
	if got := mask.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestConvertStatisticsPreservesOrder(t *testing.T) {
	// Each statistic must convert to a distinct engine bit, and the
	// relative order of bit positions must survive so that marshalled
	// element order matches the API mask order.
	var prev driver.StatFlags
	for _, c := range statConversions {
		if c.drv == 0 {
			t.Fatalf("statistic %v converts to nothing", c.api)
		}
		if c.drv&(c.drv-1) != 0 {
			t.Fatalf("statistic %v converts to multiple bits %#x", c.api, uint32(c.drv))
		}
		if c.drv <= prev {
			t.Fatalf("statistic %v breaks ascending engine bit order", c.api)
		}
		prev = c.drv
	}

	all := PipelineStatistics(0)
	for _, c := range statConversions {
		all |= c.api
	}
	if got := convertStatistics(all); got.Count() != all.Count() {
		t.Errorf("full mask converts to %d bits, want %d", got.Count(), all.Count())
	}
}

func TestConvertResultFlags(t *testing.T) {
	tests := []struct {
		api ResultFlags
		drv driver.ResultFlags
	}{
		{0, 0},
		{FlagWide64, driver.ResultWide64},
		{FlagWait, driver.ResultWait},
		{FlagWithAvailability, driver.ResultWithAvailability},
		{FlagPartial, driver.ResultPartial},
		{FlagWide64 | FlagWait | FlagWithAvailability | FlagPartial,
			driver.ResultWide64 | driver.ResultWait | driver.ResultWithAvailability | driver.ResultPartial},
	}
	for _, tt := range tests {
		if got := convertResultFlags(tt.api); got != tt.drv {
			t.Errorf("convertResultFlags(%v) = %#x, want %#x", tt.api, uint32(got), uint32(tt.drv))
		}
	}
}

func TestConvertCounterKind(t *testing.T) {
	tests := []struct {
		typ  QueryType
		want driver.CounterKind
	}{
		{TypeOcclusion, driver.KindOcclusion},
		{TypePipelineStatistics, driver.KindPipelineStats},
		{TypeStreamoutStatistics, driver.KindStreamout},
	}
	for _, tt := range tests {
		if got := convertCounterKind(tt.typ); got != tt.want {
			t.Errorf("convertCounterKind(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
