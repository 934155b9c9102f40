package mapping

import (
	"github.com/inconshreveable/log15"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
)

// Option configures the mapping service.
type Option func(s *Service)

// WithLogger sets the logger
func WithLogger(logger log15.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAnonymousPager sets the pager of anonymous regions
func WithAnonymousPager(pager vm.Pager) Option {
	return func(s *Service) {
		s.anonymous = pager
	}
}

// WithKernel sets the kernel used to tear down translations on unmap
func WithKernel(k kernel.Service) Option {
	return func(s *Service) {
		s.kernel = k
	}
}
