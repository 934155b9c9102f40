package pager

import (
	"context"
	"fmt"
	"io"

	"github.com/inconshreveable/log15"
	"github.com/viant/afs"
	"github.com/viant/pager/internal/clock"
	"github.com/viant/pager/internal/idgen"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/boot"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/exporter"
	"github.com/viant/pager/service/kernel"
	kmemory "github.com/viant/pager/service/kernel/memory"
	"github.com/viant/pager/service/layout"
	"github.com/viant/pager/service/loader"
	"github.com/viant/pager/service/mapping"
	qmemory "github.com/viant/pager/service/messaging/memory"
	"github.com/viant/pager/service/pagecache"
	"github.com/viant/pager/service/physmem"
	pmemory "github.com/viant/pager/service/physmem/memory"
	"github.com/viant/pager/service/resource"
	rmemory "github.com/viant/pager/service/resource/memory"
	"github.com/viant/pager/service/server"
	"github.com/viant/pager/service/spawner"
	"github.com/viant/pager/tracing"
)

// Service wires the pager against simulated kernel, physical memory and
// resource pools.
type Service struct {
	config     *Config
	fs         afs.Service
	logger     log15.Logger
	logWriter  io.Writer
	descriptor *boot.Descriptor

	memory    *pmemory.Memory
	resources *rmemory.Container
	kernel    *kmemory.Kernel
	registry  *task.Registry
	mapper    *mapping.Service
	faults    *pagecache.FaultHandler
	loader    *loader.Service
	spawner   *spawner.Service
	exporter  *exporter.Service
	queue     *qmemory.Queue[ipc.Message]
	server    *server.Service
	shutdown  tracing.Shutdown
	booted    bool
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Kernel returns the simulated kernel.
func (s *Service) Kernel() *kmemory.Kernel { return s.kernel }

// Registry returns the task registry.
func (s *Service) Registry() *task.Registry { return s.registry }

// Memory returns simulated physical memory.
func (s *Service) Memory() *pmemory.Memory { return s.memory }

// Queue returns the inbound request queue.
func (s *Service) Queue() *qmemory.Queue[ipc.Message] { return s.queue }

// Descriptor returns the booted image table.
func (s *Service) Descriptor() *boot.Descriptor { return s.descriptor }

// Boot loads the images, unless a descriptor was supplied, and starts every
// boot task. A *spawner.FatalError means the process must terminate.
func (s *Service) Boot(ctx context.Context) error {
	if s.booted {
		return fmt.Errorf("pager already booted")
	}
	s.booted = true
	if s.descriptor == nil {
		descriptor, err := s.load(ctx)
		if err != nil {
			return err
		}
		s.descriptor = descriptor
	}
	return s.spawner.Start(ctx, s.descriptor.Images)
}

func (s *Service) load(ctx context.Context) (*boot.Descriptor, error) {
	ret := &boot.Descriptor{}
	if URL := s.config.Boot.ImagesURL; URL != "" {
		descriptor, err := s.loader.LoadDir(ctx, URL)
		if err != nil {
			return nil, err
		}
		ret.Images = append(ret.Images, descriptor.Images...)
	}
	if len(s.config.Boot.Images) > 0 {
		descriptor, err := s.loader.Load(ctx, s.config.Boot.Images...)
		if err != nil {
			return nil, err
		}
		ret.Images = append(ret.Images, descriptor.Images...)
	}
	if len(ret.Images) == 0 {
		return nil, fmt.Errorf("%w: no boot images configured", boot.ErrInvalidImage)
	}
	return ret, nil
}

// Deliver queues a request from sender.
func (s *Service) Deliver(ctx context.Context, sender task.TaskID, tag ipc.Tag, registers ...uint64) error {
	msg := ipc.NewMessage(sender, tag, registers...)
	msg.ID = idgen.New()
	msg.ReceivedAt = clock.Now()
	return s.queue.Publish(ctx, msg)
}

// Run serves requests until ctx is cancelled or a request fails.
func (s *Service) Run(ctx context.Context) error {
	return s.server.Run(ctx)
}

// Serve handles exactly n queued requests.
func (s *Service) Serve(ctx context.Context, n int) error {
	return s.server.Serve(ctx, n)
}

// Resolve translates addr in the address space of task id.
func (s *Service) Resolve(id task.TaskID, addr vm.Address) (*pagecache.Resolution, error) {
	tcb, ok := s.registry.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %d", kernel.ErrNoThread, id)
	}
	return pagecache.Resolve(tcb, addr)
}

// Fault services a page fault of task id at addr.
func (s *Service) Fault(ctx context.Context, id task.TaskID, addr vm.Address, write bool) (*vm.Page, error) {
	tcb, ok := s.registry.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %d", kernel.ErrNoThread, id)
	}
	return s.faults.Handle(ctx, tcb, addr, write)
}

// Unmap removes the regions of task id inside [addr, addr+pages) and frees
// the frames of its private pages.
func (s *Service) Unmap(ctx context.Context, id task.TaskID, addr vm.Address, pages uint64) error {
	tcb, ok := s.registry.Find(id)
	if !ok {
		return fmt.Errorf("%w: task %d", kernel.ErrNoThread, id)
	}
	released, err := s.mapper.Unmap(ctx, tcb, addr, pages)
	if err != nil {
		return err
	}
	return s.faults.Release(released)
}

// TaskData decodes the task table last written into the buffer page of id.
func (s *Service) TaskData(id task.TaskID) ([]ipc.TaskData, error) {
	tcb, ok := s.registry.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %d", kernel.ErrNoThread, id)
	}
	resolution, err := pagecache.Resolve(tcb, tcb.BufferAddress)
	if err != nil {
		return nil, err
	}
	if resolution.Status != pagecache.StatusResident {
		return nil, fmt.Errorf("%w: task %d", exporter.ErrNotResident, id)
	}
	data, err := physmem.Copy(s.memory, resolution.Page.Frame, s.config.Buffer.Capacity)
	if err != nil {
		return nil, err
	}
	return ipc.DecodeTaskData(data)
}

// Close flushes tracing.
func (s *Service) Close(ctx context.Context) error {
	if s.shutdown == nil {
		return nil
	}
	return s.shutdown(ctx)
}

func (s *Service) init() error {
	var err error
	if err = s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		if s.logger, err = logging.New(s.config.Log, s.logWriter); err != nil {
			return err
		}
	}
	if s.shutdown, err = tracing.Init(s.config.Tracing); err != nil {
		return err
	}
	if s.memory, err = pmemory.New(s.config.Memory); err != nil {
		return err
	}
	sizes := make(map[resource.Kind]int)
	for _, kind := range resource.Kinds() {
		sizes[kind] = s.config.Resources.PoolSize
	}
	s.resources = rmemory.New(0, rmemory.Config{Sizes: sizes})
	settings := s.config.Boot
	if s.kernel, err = kmemory.New(settings.SelfID, s.resources, settings.CoordinatorID); err != nil {
		return err
	}
	s.registry = task.NewRegistry()
	s.mapper = mapping.New(
		mapping.WithLogger(s.logger.New("component", "mapping")),
		mapping.WithAnonymousPager(pagecache.ZeroPager(s.memory)),
		mapping.WithKernel(s.kernel),
	)
	s.faults = pagecache.NewFaultHandler(s.memory, s.kernel, s.logger.New("component", "fault"))
	if s.loader, err = loader.New(s.fs, s.memory, settings.ImageBase, s.logger.New("component", "loader")); err != nil {
		return err
	}
	engine, err := layout.New(s.config.Layout)
	if err != nil {
		return err
	}
	buffers, err := layout.NewBufferAllocator(s.config.Buffer.AreaStart, s.config.Buffer.AreaEnd)
	if err != nil {
		return err
	}
	if s.spawner, err = spawner.New(
		spawner.WithKernel(s.kernel),
		spawner.WithRegistry(s.registry),
		spawner.WithMapper(s.mapper),
		spawner.WithLayout(engine),
		spawner.WithBuffers(buffers),
		spawner.WithMemory(s.memory),
		spawner.WithLogger(s.logger.New("component", "spawner")),
		spawner.WithSelfName(settings.SelfName),
		spawner.WithCoordinator(settings.CoordinatorName, settings.CoordinatorIDs()),
	); err != nil {
		return err
	}
	s.exporter = exporter.New(s.kernel, s.registry, s.memory,
		exporter.WithPolicy(exporter.CoordinatorOnly(settings.CoordinatorID)),
		exporter.WithFaulter(s.faults),
		exporter.WithBuffer(0, s.config.Buffer.Capacity),
		exporter.WithLogger(s.logger.New("component", "exporter")),
	)
	s.queue = qmemory.NewQueue[ipc.Message](s.config.Queue)
	s.server, err = server.New(
		server.WithQueue(s.queue),
		server.WithKernel(s.kernel),
		server.WithExporter(s.exporter),
		server.WithLogger(s.logger.New("component", "server")),
	)
	return err
}

// New creates a pager service.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, opt := range options {
		opt(ret)
	}
	if ret.config == nil {
		ret.config = DefaultConfig()
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}
