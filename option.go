package pager

import (
	"io"

	"github.com/inconshreveable/log15"
	"github.com/viant/afs"
	"github.com/viant/pager/model/boot"
)

// Option configures the pager service.
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithFS sets the file system used to read boot images
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the root logger; it takes precedence over the log config
func WithLogger(logger log15.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLogWriter sends log output built from the log config to w
func WithLogWriter(w io.Writer) Option {
	return func(s *Service) {
		s.logWriter = w
	}
}

// WithDescriptor boots the given images instead of loading them
func WithDescriptor(descriptor *boot.Descriptor) Option {
	return func(s *Service) {
		s.descriptor = descriptor
	}
}
