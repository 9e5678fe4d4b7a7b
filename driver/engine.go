package driver

// ResultFlags controls how a CounterEngine marshals results.
// The bits mirror the public querypool flags but are a distinct type:
// the engine layer is not required to share the API encoding.
type ResultFlags uint32

const (
	// ResultWide64 requests 64-bit value elements; otherwise values
	// are 32-bit and wrap.
	ResultWide64 ResultFlags = 1 << iota

	// ResultWait blocks until every requested slot is ready.
	ResultWait

	// ResultWithAvailability appends a trailing availability element
	// to each slot, 1 if the slot was ready and 0 otherwise.
	ResultWithAvailability

	// ResultPartial permits writing value elements for slots that are
	// not yet ready.
	ResultPartial
)

// Has reports whether every bit of mask is set.
func (f ResultFlags) Has(mask ResultFlags) bool { return f&mask == mask }

// CounterEngine is one physical device's backend counter pool. It owns
// the hardware counter format; the query-pool subsystem only sizes it,
// binds memory to it, and forwards result and reset requests.
//
// Engines are created unbound. BindMemory must succeed before Results
// or Reset is called.
type CounterEngine interface {
	// MemoryRequirements reports the storage the engine needs.
	// Identical across the device group for a given pool description.
	MemoryRequirements() MemoryRequirements

	// BindMemory attaches backing storage at the given byte offset.
	// The engine uses its own device's replica of mem.
	BindMemory(mem Memory, offset uint64) error

	// Results marshals slots [start, start+count) into dst according
	// to flags. Value elements are engine-native 64-bit counters,
	// narrowed to 32 bits unless ResultWide64 is set; an availability
	// element follows the values when ResultWithAvailability is set.
	// Consecutive slots are stride bytes apart; stride 0 means tightly
	// packed at the natural slot width.
	//
	// Returns ready == true when every requested slot was ready.
	// ready == false with a nil error is the routine not-ready case.
	Results(flags ResultFlags, start, count uint32, dst []byte, stride uint64) (ready bool, err error)

	// Reset returns slots [start, start+count) to the unwritten state.
	Reset(start, count uint32) error

	// Destroy releases the engine. The bound memory is not released;
	// it belongs to the pool. Idempotent.
	Destroy()
}
