package spawner

import (
	"fmt"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/layout"
	"github.com/viant/pager/service/pagecache"
	"github.com/viant/pager/service/physmem"
)

// envBase starts the id range of environment files, below the anonymous range.
const envBase = vm.FileID(1) << 62

// EnvData returns the NUL separated environment a task finds at EnvStart.
func EnvData(tcb *task.TCB) []byte {
	return []byte(fmt.Sprintf("UTCB=0x%x\x00TASKNAME=%s\x00", uint64(tcb.BufferAddress), tcb.Name))
}

func newEnvFile(mem physmem.Memory, tcb *task.TCB) (*vm.File, error) {
	data := EnvData(tcb)
	if uint64(len(data)) > layout.EnvPages*vm.PageSize {
		return nil, fmt.Errorf("environment of %d bytes exceeds %d pages", len(data), layout.EnvPages)
	}
	id := envBase | vm.FileID(uint32(tcb.TaskID))
	return vm.NewFile(id, tcb.Name+".env", layout.EnvPages*vm.PageSize, pagecache.DataPager(mem, data)), nil
}
