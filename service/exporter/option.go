package exporter

import "github.com/inconshreveable/log15"

// Option configures the exporter.
type Option func(s *Service)

// WithPolicy sets the authorization policy
func WithPolicy(policy Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithFaulter pages in untouched buffer pages on demand
func WithFaulter(faulter Faulter) Option {
	return func(s *Service) {
		s.faulter = faulter
	}
}

// WithBuffer sets where the payload goes inside the buffer page and its capacity
func WithBuffer(offset, capacity int) Option {
	return func(s *Service) {
		s.offset = offset
		s.capacity = capacity
	}
}

// WithLogger sets the logger
func WithLogger(logger log15.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
