package pagecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/physmem"
)

var (
	// ErrSegmentation is returned for a fault outside every region.
	ErrSegmentation = errors.New("pagecache: segmentation fault")

	// ErrProtection is returned for a write into a read-only region.
	ErrProtection = errors.New("pagecache: protection fault")
)

// FaultHandler instantiates pages on demand and maps them into the faulting task.
type FaultHandler struct {
	memory physmem.Memory
	kernel kernel.Service
	logger log15.Logger
}

// Handle resolves addr in tcb, paging the backing object in when needed, and
// returns the page now mapped at addr.
func (h *FaultHandler) Handle(ctx context.Context, tcb *task.TCB, addr vm.Address, write bool) (*vm.Page, error) {
	resolution, err := Resolve(tcb, addr)
	if err != nil {
		return nil, err
	}
	if resolution.Status == StatusUnmapped {
		return nil, fmt.Errorf("%w: task %d at 0x%x", ErrSegmentation, tcb.TaskID, uint64(addr))
	}
	region := resolution.Region
	if write && !region.Flags.Has(vm.Write) {
		return nil, fmt.Errorf("%w: task %d write at 0x%x in %v", ErrProtection, tcb.TaskID, uint64(addr), region)
	}
	page := resolution.Page
	if resolution.Status == StatusNotResident {
		if page, err = h.pageIn(ctx, region.Owner, resolution.FileOffset); err != nil {
			return nil, err
		}
	}
	virt, err := addr.PFN().Address()
	if err != nil {
		return nil, err
	}
	if err = h.kernel.Map(ctx, page.Frame, virt, 1, kernel.FlagsFor(region.Flags), tcb.TaskID); err != nil {
		return nil, fmt.Errorf("failed to map page 0x%x into task %d: %w", uint64(virt), tcb.TaskID, err)
	}
	page.Refs++
	h.logger.Debug("page fault served", "tid", tcb.TaskID, "addr", fmt.Sprintf("0x%x", uint64(addr)), "frame", fmt.Sprintf("0x%x", uint64(page.Frame)), "status", resolution.Status)
	return page, nil
}

func (h *FaultHandler) pageIn(ctx context.Context, file *vm.File, offset vm.PageOffset) (*vm.Page, error) {
	if file.Pager == nil {
		return nil, fmt.Errorf("%w: file %q has no pager", vm.ErrInconsistent, file.Name)
	}
	frame, err := h.memory.Alloc(ctx)
	if err != nil {
		return nil, err
	}
	if err = file.Pager.PageIn(ctx, file, offset, frame); err != nil {
		_ = h.memory.Free(frame)
		return nil, fmt.Errorf("failed to page in %q offset %d: %w", file.Name, offset, err)
	}
	page := &vm.Page{Offset: offset, Frame: frame}
	if err = file.Insert(page); err != nil {
		_ = h.memory.Free(frame)
		return nil, err
	}
	return page, nil
}

// Release returns the frames of evicted pages to physical memory.
func (h *FaultHandler) Release(pages []*vm.Page) error {
	var errs []error
	for _, page := range pages {
		if page == nil {
			continue
		}
		if err := h.memory.Free(page.Frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewFaultHandler creates a fault handler.
func NewFaultHandler(memory physmem.Memory, kernel kernel.Service, logger log15.Logger) *FaultHandler {
	return &FaultHandler{memory: memory, kernel: kernel, logger: logging.Or(logger)}
}
