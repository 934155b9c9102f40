package vm

import "strings"

// Flags describe the protection and kind of a mapped region.
type Flags uint32

const (
	// Read allows loads from the region.
	Read Flags = 1 << iota
	// Write allows stores to the region.
	Write
	// Exec allows instruction fetch.
	Exec
	// Anon marks zero-fill memory with no file behind it.
	Anon
)

// Has reports whether all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

func (f Flags) String() string {
	var b strings.Builder
	for _, item := range []struct {
		flag Flags
		char byte
	}{{Read, 'r'}, {Write, 'w'}, {Exec, 'x'}, {Anon, 'a'}} {
		if f.Has(item.flag) {
			b.WriteByte(item.char)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
