package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/viant/pager/internal/clock"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/service/exporter"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/messaging"
	"github.com/viant/pager/tracing"
)

// Exporter serves task data requests.
type Exporter interface {
	Authorize(requester task.TaskID) exporter.Decision
	Export(ctx context.Context, requester task.TaskID) error
}

// Service is the request loop.
type Service struct {
	queue     messaging.Queue[ipc.Message]
	kernel    kernel.Service
	exporter  Exporter
	logger    log15.Logger
	processed int
}

// Processed returns the number of handled messages.
func (s *Service) Processed() int {
	return s.processed
}

// Run handles messages until ctx is cancelled, which returns nil, or a
// handler fails, which returns the failure. A task table too large for the
// requester's buffer drops only that request.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.next(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return nil
				}
			}
			return err
		}
	}
}

// Serve handles exactly n messages.
func (s *Service) Serve(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.next(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) next(ctx context.Context) error {
	msg, err := s.queue.Consume(ctx)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	s.processed++
	err = s.handle(ctx, msg.T())
	if errors.Is(err, exporter.ErrCapacity) {
		s.logger.Error("task table does not fit the requester's buffer, dropping request", "sender", msg.T().Sender, "err", err)
		return msg.Nack(err)
	}
	if err != nil {
		s.logger.Crit("request failed", "tag", msg.T().Tag, "sender", msg.T().Sender, "err", err)
		if nErr := msg.Nack(err); nErr != nil {
			s.logger.Error("nack failed", "err", nErr)
		}
		return err
	}
	return msg.Ack()
}

func (s *Service) handle(ctx context.Context, msg *ipc.Message) (err error) {
	ctx, span := tracing.StartSpan(ctx, "server."+msg.Tag.String(), "CONSUMER")
	span.WithAttributes(map[string]string{"sender": fmt.Sprint(msg.Sender)})
	defer func() { tracing.EndSpan(span, err) }()

	logger := s.logger.New("tag", msg.Tag, "sender", msg.Sender)
	if !msg.ReceivedAt.IsZero() {
		logger = logger.New("queued", clock.Since(msg.ReceivedAt))
	}
	switch msg.Tag {
	case ipc.TagWait:
		logger.Debug("startup rendezvous")
		return s.kernel.Reply(ctx, msg.Sender, 0)
	case ipc.TagTaskData:
		if decision := s.exporter.Authorize(msg.Sender); decision != exporter.Allow {
			logger.Warn("task data requested by unauthorized task, ignoring", "decision", decision)
			return nil
		}
		return s.exporter.Export(ctx, msg.Sender)
	default:
		logger.Warn("unrecognised ipc tag, ignoring")
		return nil
	}
}

// New creates the request loop.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, opt := range options {
		opt(ret)
	}
	ret.logger = logging.Or(ret.logger)
	if ret.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if ret.kernel == nil {
		return nil, fmt.Errorf("kernel is required")
	}
	if ret.exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	return ret, nil
}
