package manager

// Mode selects the allocator backend.
type Mode int

const (
	// ModeDirect issues one driver call per allocation.
	ModeDirect Mode = iota
	// ModeCaching delegates to the binned caching pool.
	ModeCaching
)

func (m Mode) String() string {
	switch m {
	case ModeCaching:
		return "caching"
	default:
		return "direct"
	}
}

// ParseMode maps a config string to a Mode. Unknown values fall back to
// direct, matching Init's treatment of unrecognized modes.
func ParseMode(s string) Mode {
	if s == "caching" {
		return ModeCaching
	}
	return ModeDirect
}

// deviceInfo is one bookkeeping entry of the device table. A zero total
// marks a device the manager never initialized; such entries are skipped
// during bulk refresh.
type deviceInfo struct {
	total      uint64
	free       uint64
	flushCount uint64
}
