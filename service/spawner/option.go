package spawner

import (
	"github.com/inconshreveable/log15"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/dao"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/layout"
	"github.com/viant/pager/service/mapping"
	"github.com/viant/pager/service/physmem"
)

// Option configures the spawner.
type Option func(s *Service)

// WithKernel sets the kernel calls
func WithKernel(k kernel.Service) Option {
	return func(s *Service) {
		s.kernel = k
	}
}

// WithRegistry sets the task registry
func WithRegistry(registry *task.Registry) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

// WithMapper sets the region mapping engine
func WithMapper(mapper mapping.Mapper) Option {
	return func(s *Service) {
		s.mapper = mapper
	}
}

// WithLayout sets the layout engine
func WithLayout(engine *layout.Engine) Option {
	return func(s *Service) {
		s.layout = engine
	}
}

// WithBuffers sets the buffer-page allocator
func WithBuffers(buffers *layout.BufferAllocator) Option {
	return func(s *Service) {
		s.buffers = buffers
	}
}

// WithMemory sets physical memory used by boot and env pagers
func WithMemory(mem physmem.Memory) Option {
	return func(s *Service) {
		s.memory = mem
	}
}

// WithFiles sets the boot file store
func WithFiles(files dao.Service[vm.FileID, vm.File]) Option {
	return func(s *Service) {
		s.files = files
	}
}

// WithLogger sets the logger
func WithLogger(logger log15.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSelfName sets the image name of the pager itself, which is skipped
func WithSelfName(name string) Option {
	return func(s *Service) {
		s.selfName = name
	}
}

// WithCoordinator sets the filesystem coordinator image and its fixed ids
func WithCoordinator(name string, ids task.IDs) Option {
	return func(s *Service) {
		s.coordinatorName = name
		s.coordinatorIDs = ids
	}
}
