package tier

// Kind names one of the three independent tiers a cache manager owns.
type Kind uint8

const (
	// Image holds decoded images; cost is the size of an estimated re-encoding.
	Image Kind = iota
	// Data holds already-serialized byte buffers; cost is the buffer length.
	Data
	// Object holds in-process references; capacity is enforced by count only.
	Object
)

// Kinds lists every tier kind in a stable order.
func Kinds() []Kind { return []Kind{Image, Data, Object} }

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Data:
		return "data"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// EvictReason explains why an entry left a tier without an explicit Remove.
type EvictReason int

const (
	// EvictCount: the tier was over its entry count limit.
	EvictCount EvictReason = iota
	// EvictCost: the tier was over its aggregate cost limit.
	EvictCost
	// EvictTTL: the entry expired and was dropped on access.
	EvictTTL
)

func (r EvictReason) String() string {
	switch r {
	case EvictCount:
		return "count"
	case EvictCost:
		return "cost"
	case EvictTTL:
		return "ttl"
	default:
		return "unknown"
	}
}
