// Package memory simulates the kernel calls in process, tracking threads,
// page tables and IPC replies.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/resource"
)

// Thread is the simulated kernel state of one thread.
type Thread struct {
	IDs       task.IDs
	Registers kernel.Registers
	Running   bool
	PGD       resource.ID
	Replies   []int
	mappings  map[vm.PFN]mapping
}

type mapping struct {
	frame vm.PhysAddr
	flags kernel.MapFlags
}

// Kernel is an in-process kernel.Service.
type Kernel struct {
	self      task.TaskID
	resources resource.Allocator
	threads   map[task.TaskID]*Thread
	failures  map[string]error
	held      map[resource.Kind]map[task.TaskID]bool
	mu        sync.Mutex
}

// New creates a kernel whose caller is self. The caller's ids are reserved.
// Well-known ids are held back from fresh allocation until requested.
func New(self task.TaskID, resources resource.Allocator, wellKnown ...task.TaskID) (*Kernel, error) {
	ret := &Kernel{
		self:      self,
		resources: resources,
		threads:   make(map[task.TaskID]*Thread),
		failures:  make(map[string]error),
		held:      make(map[resource.Kind]map[task.TaskID]bool),
	}
	ids := task.IDs{TaskID: self, SpaceID: self}
	if err := ret.createThread(&ids); err != nil {
		return nil, fmt.Errorf("failed to create caller thread: %w", err)
	}
	for _, kind := range []resource.Kind{resource.KTCB, resource.Space} {
		ret.held[kind] = make(map[task.TaskID]bool)
		for _, id := range wellKnown {
			if id == self || ret.held[kind][id] {
				continue
			}
			if err := resources.Reserve(kind, resource.ID(id)); err != nil {
				return nil, fmt.Errorf("failed to hold well-known %v %d: %w", kind, id, err)
			}
			ret.held[kind][id] = true
		}
	}
	ret.threads[self].Running = true
	return ret, nil
}

// FailOn makes every later call of op return err. Ops are create, exregs,
// map, unmap, run and reply.
func (k *Kernel) FailOn(op string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failures[op] = err
}

// Self returns the caller id.
func (k *Kernel) Self() task.TaskID {
	return k.self
}

// CreateThread creates a thread, honouring requested ids.
func (k *Kernel) CreateThread(ctx context.Context, ids *task.IDs) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "create"); err != nil {
		return err
	}
	return k.createThread(ids)
}

func (k *Kernel) createThread(ids *task.IDs) error {
	tid, err := k.claim(resource.KTCB, ids.TaskID)
	if err != nil {
		return err
	}
	spid, err := k.claim(resource.Space, ids.SpaceID)
	if err != nil {
		_ = k.resources.Free(resource.KTCB, resource.ID(tid))
		return err
	}
	pgd, err := k.resources.Alloc(resource.PGD)
	if err != nil {
		_ = k.resources.Free(resource.KTCB, resource.ID(tid))
		_ = k.resources.Free(resource.Space, resource.ID(spid))
		return err
	}
	ids.TaskID, ids.SpaceID = tid, spid
	k.threads[tid] = &Thread{IDs: *ids, PGD: pgd, mappings: make(map[vm.PFN]mapping)}
	return nil
}

func (k *Kernel) claim(kind resource.Kind, requested task.TaskID) (task.TaskID, error) {
	if requested == task.InvalidID {
		id, err := k.resources.Alloc(kind)
		return task.TaskID(id), err
	}
	if k.held[kind][requested] {
		delete(k.held[kind], requested)
		return requested, nil
	}
	if err := k.resources.Reserve(kind, resource.ID(requested)); err != nil {
		return 0, fmt.Errorf("failed to reserve %v %d: %w", kind, requested, err)
	}
	return requested, nil
}

// ExchangeRegisters records the initial state.
func (k *Kernel) ExchangeRegisters(ctx context.Context, regs kernel.Registers, target task.TaskID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "exregs"); err != nil {
		return err
	}
	thread, err := k.thread(target)
	if err != nil {
		return err
	}
	thread.Registers = regs
	return nil
}

// Map installs page-table entries; existing entries are replaced.
func (k *Kernel) Map(ctx context.Context, phys vm.PhysAddr, virt vm.Address, pages int, flags kernel.MapFlags, target task.TaskID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "map"); err != nil {
		return err
	}
	thread, err := k.thread(target)
	if err != nil {
		return err
	}
	if !phys.IsAligned() || !virt.IsAligned() || pages <= 0 {
		return fmt.Errorf("kernel: invalid mapping 0x%x -> 0x%x (%d pages)", uint64(phys), uint64(virt), pages)
	}
	for i := 0; i < pages; i++ {
		offset := uint64(i) << vm.PageShift
		frame, err := phys.Add(offset)
		if err != nil {
			return err
		}
		page, err := virt.Add(offset)
		if err != nil {
			return err
		}
		thread.mappings[page.PFN()] = mapping{frame: frame, flags: flags}
	}
	return nil
}

// Unmap drops page-table entries.
func (k *Kernel) Unmap(ctx context.Context, virt vm.Address, pages int, target task.TaskID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "unmap"); err != nil {
		return err
	}
	thread, err := k.thread(target)
	if err != nil {
		return err
	}
	if !virt.IsAligned() || pages <= 0 {
		return fmt.Errorf("kernel: invalid unmap 0x%x (%d pages)", uint64(virt), pages)
	}
	for i := 0; i < pages; i++ {
		delete(thread.mappings, virt.PFN()+vm.PFN(i))
	}
	return nil
}

// RunThread marks the thread running.
func (k *Kernel) RunThread(ctx context.Context, ids task.IDs) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "run"); err != nil {
		return err
	}
	thread, err := k.thread(ids.TaskID)
	if err != nil {
		return err
	}
	thread.Running = true
	return nil
}

// Reply records the reply code delivered to the thread.
func (k *Kernel) Reply(ctx context.Context, to task.TaskID, code int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.check(ctx, "reply"); err != nil {
		return err
	}
	thread, err := k.thread(to)
	if err != nil {
		return err
	}
	thread.Replies = append(thread.Replies, code)
	return nil
}

// Thread returns a copy of the thread state.
func (k *Kernel) Thread(id task.TaskID) (Thread, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	thread, ok := k.threads[id]
	if !ok {
		return Thread{}, false
	}
	ret := *thread
	ret.Replies = append([]int(nil), thread.Replies...)
	ret.mappings = nil
	return ret, true
}

// Translate walks the simulated page table of target.
func (k *Kernel) Translate(target task.TaskID, virt vm.Address) (vm.PhysAddr, kernel.MapFlags, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	thread, ok := k.threads[target]
	if !ok {
		return 0, 0, false
	}
	entry, ok := thread.mappings[virt.PFN()]
	if !ok {
		return 0, 0, false
	}
	frame, err := entry.frame.Add(uint64(virt) & (vm.PageSize - 1))
	if err != nil {
		return 0, 0, false
	}
	return frame, entry.flags, true
}

// Threads returns the number of threads, the caller included.
func (k *Kernel) Threads() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.threads)
}

func (k *Kernel) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := k.failures[op]; ok {
		return err
	}
	return nil
}

func (k *Kernel) thread(id task.TaskID) (*Thread, error) {
	thread, ok := k.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", kernel.ErrNoThread, id)
	}
	return thread, nil
}

var _ kernel.Service = (*Kernel)(nil)
