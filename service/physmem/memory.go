// Package physmem declares the physical page-frame surface the pager consumes.
package physmem

import (
	"context"
	"errors"

	"github.com/viant/pager/model/vm"
)

var (
	// ErrOutOfMemory is returned when no frame is free.
	ErrOutOfMemory = errors.New("physmem: out of memory")

	// ErrBadFrame is returned for a frame outside the managed range or not allocated.
	ErrBadFrame = errors.New("physmem: bad frame")

	// ErrBounds is returned for an access crossing a page boundary.
	ErrBounds = errors.New("physmem: access out of page bounds")
)

// Memory hands out page frames and gives byte access to their content.
type Memory interface {
	// Alloc returns a zeroed free frame.
	Alloc(ctx context.Context) (vm.PhysAddr, error)
	// Free releases a frame.
	Free(frame vm.PhysAddr) error
	// Read copies n bytes from offset inside the frame.
	Read(frame vm.PhysAddr, offset, n int) ([]byte, error)
	// Write copies data at offset inside the frame.
	Write(frame vm.PhysAddr, offset int, data []byte) error
}

// Copy reads n bytes starting at an arbitrary physical address, possibly
// across frames.
func Copy(mem Memory, from vm.PhysAddr, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for n > 0 {
		frame := vm.PhysAddr(vm.AlignDown(uint64(from), vm.PageSize))
		offset := int(uint64(from) - uint64(frame))
		chunk := int(vm.PageSize) - offset
		if chunk > n {
			chunk = n
		}
		data, err := mem.Read(frame, offset, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		n -= chunk
		next, err := from.Add(uint64(chunk))
		if err != nil {
			return nil, err
		}
		from = next
	}
	return out, nil
}
