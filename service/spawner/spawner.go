// Package spawner creates a task for every boot image: identity, registry
// entry, layout, the four initial mappings, registers and activation.
package spawner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/boot"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/dao"
	"github.com/viant/pager/service/dao/store"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/layout"
	"github.com/viant/pager/service/mapping"
	"github.com/viant/pager/service/pagecache"
	"github.com/viant/pager/service/physmem"
	"github.com/viant/pager/tracing"
)

// ErrMissingDependency is returned by New when a required collaborator is absent.
var ErrMissingDependency = errors.New("spawner: missing dependency")

// Service is the boot task spawner.
type Service struct {
	kernel          kernel.Service
	registry        *task.Registry
	mapper          mapping.Mapper
	layout          *layout.Engine
	buffers         *layout.BufferAllocator
	memory          physmem.Memory
	files           dao.Service[vm.FileID, vm.File]
	logger          log15.Logger
	selfName        string
	coordinatorName string
	coordinatorIDs  task.IDs
}

// Files returns the boot file store.
func (s *Service) Files() dao.Service[vm.FileID, vm.File] {
	return s.files
}

// Start boots every image except the pager's own. The first failure stops
// the sequence with a *FatalError.
func (s *Service) Start(ctx context.Context, images []boot.Image) (err error) {
	ctx, span := tracing.StartSpan(ctx, "spawner.start", "INTERNAL")
	defer func() { tracing.EndSpan(span, err) }()
	started := 0
	for i := range images {
		image := &images[i]
		if image.Name == s.selfName {
			continue
		}
		if err = s.spawn(ctx, image); err != nil {
			s.logger.Crit("boot aborted", "image", image.Name, "err", err)
			return err
		}
		started++
	}
	s.logger.Info("boot tasks started", "tasks", started)
	return nil
}

func (s *Service) spawn(ctx context.Context, image *boot.Image) (err error) {
	ctx, span := tracing.StartSpan(ctx, "spawner.image", "INTERNAL")
	span.WithAttributes(map[string]string{"image": image.Name})
	defer func() { tracing.EndSpan(span, err) }()

	if err := image.Validate(); err != nil {
		return fatal(image.Name, StageDescriptor, err)
	}
	ids := task.Invalid()
	if image.Name == s.coordinatorName {
		ids = s.coordinatorIDs
	}
	if err := s.kernel.CreateThread(ctx, &ids); err != nil {
		return fatal(image.Name, StageIdentity, err)
	}
	logger := s.logger.New("task", image.Name, "tid", ids.TaskID, "spid", ids.SpaceID)
	logger.Debug("thread created")

	tcb := s.registry.Create()
	if err := s.registry.Bind(tcb, ids); err != nil {
		return fatal(image.Name, StageRegistry, err)
	}
	tcb.Name = image.Name
	if tcb.BufferAddress, err = s.buffers.Next(); err != nil {
		return fatal(image.Name, StageBuffer, err)
	}

	file := vm.NewFile(vm.FileID(image.PhysStart), image.Name, image.Length(), pagecache.BootPager(s.memory, image.PhysStart))
	if err := s.files.Save(ctx, file); err != nil {
		return fatal(image.Name, StageFile, err)
	}

	plan, err := s.layout.Compute(file.Length)
	if err != nil {
		return fatal(image.Name, StageLayout, err)
	}
	plan.Apply(tcb)
	if tcb.EnvFile, err = newEnvFile(s.memory, tcb); err != nil {
		return fatal(image.Name, StageEnv, err)
	}

	textPages, err := plan.TextPages()
	if err != nil {
		return fatal(image.Name, StageMapImage, err)
	}
	for _, m := range []struct {
		stage Stage
		file  *vm.File
		start vm.Address
		flags vm.Flags
		pages uint64
	}{
		{StageMapImage, file, tcb.TextStart, vm.Read | vm.Write | vm.Exec, textPages},
		{StageMapEnv, tcb.EnvFile, tcb.EnvStart, vm.Read | vm.Write, plan.EnvPages()},
		{StageMapStack, nil, tcb.StackStart, vm.Read | vm.Write | vm.Anon, plan.StackPages()},
		{StageMapBuffer, nil, tcb.BufferAddress, vm.Read | vm.Write | vm.Anon, 1},
	} {
		region, err := s.mapper.Map(ctx, m.file, 0, tcb, m.start, m.flags, m.pages)
		if err != nil {
			return fatal(image.Name, m.stage, err)
		}
		logger.Debug("region mapped", "stage", m.stage, "region", region.String())
	}

	regs := kernel.Registers{PC: plan.InitialPC(), SP: plan.InitialSP(), Pager: s.kernel.Self()}
	if err := s.kernel.ExchangeRegisters(ctx, regs, tcb.TaskID); err != nil {
		return fatal(image.Name, StageRegisters, err)
	}
	if err := s.kernel.RunThread(ctx, ids); err != nil {
		return fatal(image.Name, StageRun, err)
	}
	logger.Info("task started", "pc", fmt.Sprintf("0x%x", uint64(regs.PC)), "sp", fmt.Sprintf("0x%x", uint64(regs.SP)))
	return nil
}

// New creates a spawner. Kernel, registry, mapper, layout, buffers and
// memory are required.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, opt := range options {
		opt(ret)
	}
	ret.logger = logging.Or(ret.logger)
	if ret.files == nil {
		ret.files = store.NewMemoryStore[vm.FileID, vm.File](func(f *vm.File) vm.FileID { return f.ID },
			store.WithField[vm.FileID, vm.File]("Name", func(f *vm.File) string { return f.Name }))
	}
	var missing []string
	for name, ok := range map[string]bool{
		"kernel":   ret.kernel != nil,
		"registry": ret.registry != nil,
		"mapper":   ret.mapper != nil,
		"layout":   ret.layout != nil,
		"buffers":  ret.buffers != nil,
		"memory":   ret.memory != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return ret, nil
}
