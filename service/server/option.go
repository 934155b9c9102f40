package server

import (
	"github.com/inconshreveable/log15"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/messaging"
)

// Option configures the request loop.
type Option func(*Service)

// WithQueue sets the inbound message queue
func WithQueue(queue messaging.Queue[ipc.Message]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithKernel sets the kernel used for replies
func WithKernel(k kernel.Service) Option {
	return func(s *Service) {
		s.kernel = k
	}
}

// WithExporter sets the task data exporter
func WithExporter(exporter Exporter) Option {
	return func(s *Service) {
		s.exporter = exporter
	}
}

// WithLogger sets the logger
func WithLogger(logger log15.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
