// Package pagecache resolves task virtual addresses to the resident pages of
// their backing objects and instantiates missing pages on fault.
package pagecache

import (
	"fmt"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
)

// Status is the outcome of a resolution.
type Status int

const (
	// StatusUnmapped means no region of the task contains the address.
	StatusUnmapped Status = iota
	// StatusNotResident means the region exists but the page is not cached.
	StatusNotResident
	// StatusResident means the page is cached.
	StatusResident
)

func (s Status) String() string {
	switch s {
	case StatusUnmapped:
		return "unmapped"
	case StatusNotResident:
		return "not-resident"
	case StatusResident:
		return "resident"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Resolution describes where an address lives.
type Resolution struct {
	Status     Status
	Page       *vm.Page
	Region     *vm.Region
	FileOffset vm.PageOffset
}

// Resolve looks up the page behind addr. Unmapped and not resident are not
// errors; an error means the task's structures are inconsistent.
func Resolve(tcb *task.TCB, addr vm.Address) (*Resolution, error) {
	if tcb == nil || tcb.Regions == nil {
		return nil, fmt.Errorf("%w: no task to resolve 0x%x in", vm.ErrInconsistent, uint64(addr))
	}
	pfn := addr.PFN()
	region := tcb.Regions.Find(pfn)
	if region == nil {
		return &Resolution{Status: StatusUnmapped}, nil
	}
	if !region.Contains(pfn) {
		return nil, fmt.Errorf("%w: page 0x%x outside claiming region %v", vm.ErrInconsistent, uint64(pfn), region)
	}
	if region.Owner == nil {
		return nil, fmt.Errorf("%w: region %v has no backing object", vm.ErrInconsistent, region)
	}
	delta := uint64(pfn - region.Start)
	if uint64(region.Offset) > ^uint64(0)-delta {
		return nil, fmt.Errorf("%w: offset %d + %d overflows", vm.ErrInconsistent, region.Offset, delta)
	}
	ret := &Resolution{
		Status:     StatusNotResident,
		Region:     region,
		FileOffset: region.Offset + vm.PageOffset(delta),
	}
	if page := region.Owner.Lookup(ret.FileOffset); page != nil {
		ret.Status = StatusResident
		ret.Page = page
	}
	return ret, nil
}
