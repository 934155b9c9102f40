// Package mapping creates and removes virtual regions in a task's address
// space. Regions are never merged: an overlapping request fails.
package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
)

var (
	// ErrInvalidArgument is returned for a zero-length, misaligned or
	// overflowing request.
	ErrInvalidArgument = errors.New("mapping: invalid argument")

	// ErrBeyondFile is returned when a file-backed range runs past the end of
	// its backing object.
	ErrBeyondFile = errors.New("mapping: range beyond end of backing object")

	// ErrOverlap is returned when the range intersects an existing region.
	ErrOverlap = vm.ErrOverlap
)

// anonBase starts the id range of private zero-fill objects, clear of any
// physical address used as a boot file id.
const anonBase = vm.FileID(1) << 63

// Mapper establishes regions; pages are not materialised until faulted in.
type Mapper interface {
	Map(ctx context.Context, file *vm.File, offset vm.PageOffset, tcb *task.TCB, start vm.Address, flags vm.Flags, pages uint64) (*vm.Region, error)
}

// Service is the region mapping engine.
type Service struct {
	anonymous vm.Pager
	nextAnon  vm.FileID
	kernel    kernel.Service
	logger    log15.Logger
}

// Map creates one region of pages at start bound to file at offset. A nil
// file requests anonymous zero-fill memory.
func (s *Service) Map(ctx context.Context, file *vm.File, offset vm.PageOffset, tcb *task.TCB, start vm.Address, flags vm.Flags, pages uint64) (*vm.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tcb == nil {
		return nil, fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: zero pages at 0x%x", ErrInvalidArgument, uint64(start))
	}
	if !start.IsAligned() {
		return nil, fmt.Errorf("%w: start 0x%x is not page aligned", ErrInvalidArgument, uint64(start))
	}
	size, err := vm.PagesToBytes(pages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, err = start.Add(size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if file == nil {
		if offset != 0 {
			return nil, fmt.Errorf("%w: anonymous region with offset %d", ErrInvalidArgument, offset)
		}
		file = s.newAnonymous(tcb, start, size)
		flags |= vm.Anon
	} else {
		filePages, err := file.Pages()
		if err != nil {
			return nil, err
		}
		if uint64(offset) > filePages || pages > filePages-uint64(offset) {
			return nil, fmt.Errorf("%w: pages %d+%d of %q with %d pages", ErrBeyondFile, offset, pages, file.Name, filePages)
		}
	}
	region := &vm.Region{
		Start:  start.PFN(),
		End:    start.PFN() + vm.PFN(pages),
		Flags:  flags,
		Owner:  file,
		Offset: offset,
	}
	if err = tcb.Regions.Insert(region); err != nil {
		return nil, err
	}
	s.logger.Debug("mapped region", "tid", tcb.TaskID, "region", region.String())
	return region, nil
}

// Unmap removes every region inside [start, start+pages) and tears down the
// page-table entries the task holds for them. A region straddling either
// bound fails the request and leaves the set untouched. Resident pages of
// removed anonymous regions are returned to the caller for release once
// no translation points at them.
func (s *Service) Unmap(ctx context.Context, tcb *task.TCB, start vm.Address, pages uint64) ([]*vm.Page, error) {
	if tcb == nil || pages == 0 || !start.IsAligned() {
		return nil, fmt.Errorf("%w: unmap %d pages at 0x%x", ErrInvalidArgument, pages, uint64(start))
	}
	if s.kernel == nil {
		return nil, fmt.Errorf("%w: unmap needs a kernel", ErrInvalidArgument)
	}
	removed, partial := tcb.Regions.Remove(start.PFN(), start.PFN()+vm.PFN(pages))
	if partial {
		return nil, fmt.Errorf("%w: range 0x%x+%d pages splits a region", ErrInvalidArgument, uint64(start), pages)
	}
	var released []*vm.Page
	for _, region := range removed {
		virt, err := region.Start.Address()
		if err != nil {
			return nil, err
		}
		if err = s.kernel.Unmap(ctx, virt, int(region.Pages()), tcb.TaskID); err != nil {
			return nil, fmt.Errorf("failed to unmap %v from task %d: %w", region, tcb.TaskID, err)
		}
		if !region.Flags.Has(vm.Anon) {
			continue
		}
		for _, page := range region.Owner.Cached() {
			released = append(released, region.Owner.Evict(page.Offset))
		}
	}
	s.logger.Debug("unmapped range", "tid", tcb.TaskID, "start", fmt.Sprintf("0x%x", uint64(start)), "regions", len(removed))
	return released, nil
}

func (s *Service) newAnonymous(tcb *task.TCB, start vm.Address, size uint64) *vm.File {
	id := s.nextAnon
	s.nextAnon++
	name := fmt.Sprintf("anon:%d@0x%x", tcb.TaskID, uint64(start))
	return vm.NewFile(id, name, size, s.anonymous)
}

// New creates the mapping service.
func New(options ...Option) *Service {
	ret := &Service{nextAnon: anonBase, logger: logging.Discard()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.anonymous == nil {
		ret.anonymous = zeroFill
	}
	return ret
}

// zeroFill relies on frames being handed out zeroed.
var zeroFill = vm.PagerFunc(func(ctx context.Context, file *vm.File, offset vm.PageOffset, frame vm.PhysAddr) error {
	return ctx.Err()
})

var _ Mapper = (*Service)(nil)
