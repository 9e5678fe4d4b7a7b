package querypool

import "github.com/gogpu/querypool/driver"

// Conversions from the public API encoding to the driver encoding.
// Engines never see API types.

// convertResultFlags maps API result flags to the driver encoding.
func convertResultFlags(f ResultFlags) driver.ResultFlags {
	var d driver.ResultFlags
	if f.Has(FlagWide64) {
		d |= driver.ResultWide64
	}
	if f.Has(FlagWait) {
		d |= driver.ResultWait
	}
	if f.Has(FlagWithAvailability) {
		d |= driver.ResultWithAvailability
	}
	if f.Has(FlagPartial) {
		d |= driver.ResultPartial
	}
	return d
}

// convertCounterKind maps a QueryType to its backend counter kind.
// TypeTimestamp has no backend kind; the timestamp pool never
// constructs an engine.
func convertCounterKind(t QueryType) driver.CounterKind {
	switch t {
	case TypeStreamoutStatistics:
		return driver.KindStreamout
	case TypePipelineStatistics:
		return driver.KindPipelineStats
	default:
		return driver.KindOcclusion
	}
}

// statConversions pairs each API statistic with its engine counterpart.
// The engine names follow hardware stage terminology: tessellation
// control maps to the hull shader, tessellation evaluation to the
// domain shader, clipping to the clipper.
var statConversions = [...]struct {
	api PipelineStatistics
	drv driver.StatFlags
}{
	{StatisticInputAssemblyVertices, driver.StatIaVertices},
	{StatisticInputAssemblyPrimitives, driver.StatIaPrimitives},
	{StatisticVertexShaderInvocations, driver.StatVsInvocations},
	{StatisticGeometryShaderInvocations, driver.StatGsInvocations},
	{StatisticGeometryShaderPrimitives, driver.StatGsPrimitives},
	{StatisticClippingInvocations, driver.StatCInvocations},
	{StatisticClippingPrimitives, driver.StatCPrimitives},
	{StatisticFragmentShaderInvocations, driver.StatPsInvocations},
	{StatisticTessControlPatches, driver.StatHsInvocations},
	{StatisticTessEvalInvocations, driver.StatDsInvocations},
	{StatisticComputeShaderInvocations, driver.StatCsInvocations},
}

// convertStatistics maps API statistics bits to the engine encoding.
// The relative bit order is preserved, so the element order of
// marshalled results matches the ascending API bit order.
func convertStatistics(p PipelineStatistics) driver.StatFlags {
	var d driver.StatFlags
	for _, c := range statConversions {
		if p&c.api != 0 {
			d |= c.drv
		}
	}
	return d
}
