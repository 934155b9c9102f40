package vm

import (
	"errors"
	"fmt"
	"math"
)

const (
	// PageShift is equal to log2(PageSize); shifting an address right by
	// PageShift yields its page frame number.
	PageShift = 12

	// PageSize defines the page size in bytes.
	PageSize = uint64(1 << PageShift)
)

// ErrInconsistent marks arithmetic or bookkeeping that can only fail when the
// pager's own structures are corrupt.
var ErrInconsistent = errors.New("vm: internal consistency fault")

// Address is a task-relative virtual byte address.
type Address uint64

// PhysAddr is a physical byte address.
type PhysAddr uint64

// PFN is a page frame number (address >> PageShift).
type PFN uint64

// PageOffset is a page index inside a backing object.
type PageOffset uint64

// PFN returns the page frame holding the address.
func (a Address) PFN() PFN {
	return PFN(uint64(a) >> PageShift)
}

// IsAligned reports whether the address is page aligned.
func (a Address) IsAligned() bool {
	return uint64(a)&(PageSize-1) == 0
}

// Add returns a+n or ErrInconsistent on overflow.
func (a Address) Add(n uint64) (Address, error) {
	if uint64(a) > math.MaxUint64-n {
		return 0, fmt.Errorf("%w: address 0x%x + 0x%x overflows", ErrInconsistent, uint64(a), n)
	}
	return a + Address(n), nil
}

// Sub returns a-n or ErrInconsistent on underflow.
func (a Address) Sub(n uint64) (Address, error) {
	if uint64(a) < n {
		return 0, fmt.Errorf("%w: address 0x%x - 0x%x underflows", ErrInconsistent, uint64(a), n)
	}
	return a - Address(n), nil
}

// Address returns the first byte address of the frame.
func (p PFN) Address() (Address, error) {
	if uint64(p) > math.MaxUint64>>PageShift {
		return 0, fmt.Errorf("%w: pfn 0x%x has no address", ErrInconsistent, uint64(p))
	}
	return Address(uint64(p) << PageShift), nil
}

// PFN returns the physical frame number.
func (p PhysAddr) PFN() PFN {
	return PFN(uint64(p) >> PageShift)
}

// IsAligned reports whether the physical address is page aligned.
func (p PhysAddr) IsAligned() bool {
	return uint64(p)&(PageSize-1) == 0
}

// Add returns p+n or ErrInconsistent on overflow.
func (p PhysAddr) Add(n uint64) (PhysAddr, error) {
	if uint64(p) > math.MaxUint64-n {
		return 0, fmt.Errorf("%w: physical 0x%x + 0x%x overflows", ErrInconsistent, uint64(p), n)
	}
	return p + PhysAddr(n), nil
}

// PageAlignUp rounds n up to a multiple of PageSize.
func PageAlignUp(n uint64) (uint64, error) {
	if n > math.MaxUint64-(PageSize-1) {
		return 0, fmt.Errorf("%w: 0x%x cannot be page aligned", ErrInconsistent, n)
	}
	return (n + PageSize - 1) &^ (PageSize - 1), nil
}

// Pages returns the number of pages needed to hold n bytes.
func Pages(n uint64) (uint64, error) {
	aligned, err := PageAlignUp(n)
	if err != nil {
		return 0, err
	}
	return aligned >> PageShift, nil
}

// PagesToBytes converts a page count into bytes.
func PagesToBytes(pages uint64) (uint64, error) {
	if pages > math.MaxUint64>>PageShift {
		return 0, fmt.Errorf("%w: %d pages overflow a byte count", ErrInconsistent, pages)
	}
	return pages << PageShift, nil
}

// AlignDown rounds v down to a multiple of align, which must be a power of two.
func AlignDown(v uint64, align uint64) uint64 {
	return v &^ (align - 1)
}
