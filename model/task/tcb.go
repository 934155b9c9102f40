package task

import (
	"fmt"

	"github.com/viant/pager/model/vm"
)

// TaskID is a kernel thread or address-space identifier.
type TaskID int32

// InvalidID marks an identity not yet assigned by the kernel; passing it to
// thread creation requests a fresh identity.
const InvalidID TaskID = -1

// IDs is the identity pair of a task.
type IDs struct {
	TaskID  TaskID
	SpaceID TaskID
}

// Invalid returns the sentinel identity pair.
func Invalid() IDs {
	return IDs{TaskID: InvalidID, SpaceID: InvalidID}
}

// IsValid reports whether both ids are assigned.
func (i IDs) IsValid() bool {
	return i.TaskID >= 0 && i.SpaceID >= 0
}

func (i IDs) String() string {
	return fmt.Sprintf("%d/%d", i.TaskID, i.SpaceID)
}

// TCB is the pager's record of one task: identity, owned regions and the
// boundaries of its memory layout.
type TCB struct {
	IDs
	Name    string
	Regions *vm.RegionSet

	// BufferAddress is the virtual address of the task's message buffer page.
	BufferAddress vm.Address

	TextStart  vm.Address
	TextEnd    vm.Address
	DataStart  vm.Address
	DataEnd    vm.Address
	ArgsStart  vm.Address
	ArgsEnd    vm.Address
	EnvStart   vm.Address
	EnvEnd     vm.Address
	StackStart vm.Address
	StackEnd   vm.Address

	// EnvFile backs the environment region.
	EnvFile *vm.File

	slot int
}

func newTCB() *TCB {
	return &TCB{IDs: Invalid(), Regions: vm.NewRegionSet()}
}
