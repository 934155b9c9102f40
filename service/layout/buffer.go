package layout

import (
	"errors"
	"fmt"

	"github.com/viant/pager/model/vm"
)

// ErrExhausted is returned when the buffer area has no page left.
var ErrExhausted = errors.New("layout: buffer area exhausted")

// BufferConfig bounds the area buffer pages are carved from.
type BufferConfig struct {
	AreaStart vm.Address `yaml:"areaStart"`
	AreaEnd   vm.Address `yaml:"areaEnd"`
	Capacity  int        `yaml:"capacity"`
}

// DefaultBufferConfig returns a 256 page area above the user range.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{AreaStart: 0xf8000000, AreaEnd: 0xf8100000, Capacity: 512}
}

// BufferAllocator hands out buffer-page addresses; addresses only grow and
// are never reused.
type BufferAllocator struct {
	next vm.Address
	end  vm.Address
}

// NewBufferAllocator creates an allocator over [start, end).
func NewBufferAllocator(start, end vm.Address) (*BufferAllocator, error) {
	if !start.IsAligned() || !end.IsAligned() || end <= start {
		return nil, fmt.Errorf("%w: buffer area 0x%x-0x%x", ErrLayout, uint64(start), uint64(end))
	}
	return &BufferAllocator{next: start, end: end}, nil
}

// Next returns a fresh page address.
func (a *BufferAllocator) Next() (vm.Address, error) {
	if a.next >= a.end {
		return 0, ErrExhausted
	}
	ret := a.next
	next, err := a.next.Add(vm.PageSize)
	if err != nil {
		return 0, err
	}
	a.next = next
	return ret, nil
}

// Overlaps reports whether [start, end) intersects the buffer area.
func (c *BufferConfig) Overlaps(start, end vm.Address) bool {
	return start < c.AreaEnd && c.AreaStart < end
}
