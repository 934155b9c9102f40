// Package kernel declares the microkernel calls consumed by the pager. All
// calls are synchronous; a stuck call stalls the caller.
package kernel

import (
	"context"
	"errors"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
)

// ErrNoThread is returned when a call targets an unknown thread.
var ErrNoThread = errors.New("kernel: no such thread")

// MapFlags are the page-table permissions of an established mapping.
type MapFlags uint32

const (
	// MapUserRO maps a page user readable.
	MapUserRO MapFlags = 1 << iota
	// MapUserRW maps a page user readable and writable.
	MapUserRW
)

// FlagsFor converts region protection into mapping flags.
func FlagsFor(flags vm.Flags) MapFlags {
	if flags.Has(vm.Write) {
		return MapUserRW
	}
	return MapUserRO
}

// Registers is the initial execution state programmed into a thread.
type Registers struct {
	PC    vm.Address
	SP    vm.Address
	Pager task.TaskID
}

// Service is the kernel call surface.
type Service interface {
	// Self returns the caller's own task id.
	Self() task.TaskID
	// CreateThread creates a thread and address space. Invalid ids request
	// fresh ones; the assigned pair is written back.
	CreateThread(ctx context.Context, ids *task.IDs) error
	// ExchangeRegisters programs pc, sp and pager of the target.
	ExchangeRegisters(ctx context.Context, regs Registers, target task.TaskID) error
	// Map establishes pages of physical memory at virt in target's space.
	Map(ctx context.Context, phys vm.PhysAddr, virt vm.Address, pages int, flags MapFlags, target task.TaskID) error
	// Unmap removes pages at virt from target's space. Pages with no entry
	// are skipped.
	Unmap(ctx context.Context, virt vm.Address, pages int, target task.TaskID) error
	// RunThread starts the thread.
	RunThread(ctx context.Context, ids task.IDs) error
	// Reply completes the current IPC with the given return code.
	Reply(ctx context.Context, to task.TaskID, code int) error
}
