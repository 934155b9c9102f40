// Package exporter writes the task table into the buffer page of the
// filesystem coordinator.
package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	"github.com/viant/pager/service/pagecache"
	"github.com/viant/pager/service/physmem"
	"github.com/viant/pager/tracing"
)

// ErrNotResident is returned when the requester's buffer page was never
// touched and no faulter is configured.
var ErrNotResident = errors.New("exporter: buffer page not resident")

// Faulter pages in a missing page.
type Faulter interface {
	Handle(ctx context.Context, tcb *task.TCB, addr vm.Address, write bool) (*vm.Page, error)
}

// Service is the task metadata exporter.
type Service struct {
	kernel   kernel.Service
	registry *task.Registry
	memory   physmem.Memory
	faulter  Faulter
	policy   Policy
	offset   int
	capacity int
	logger   log15.Logger
}

// Authorize evaluates the policy.
func (s *Service) Authorize(requester task.TaskID) Decision {
	if s.policy == nil {
		return Deny
	}
	return s.policy(requester)
}

// Export writes {total, [tid, buffer address]...} into the requester's
// buffer page and replies with code 0. Callers check Authorize first.
func (s *Service) Export(ctx context.Context, requester task.TaskID) (err error) {
	ctx, span := tracing.StartSpan(ctx, "exporter.export", "SERVER")
	defer func() { tracing.EndSpan(span, err) }()

	tcb, ok := s.registry.Find(requester)
	if !ok {
		return fmt.Errorf("%w: requester %d has no task record", vm.ErrInconsistent, requester)
	}
	tasks := s.registry.List()
	records := make([]ipc.TaskData, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, ipc.TaskData{TaskID: t.TaskID, BufferAddress: t.BufferAddress})
	}
	payload := ipc.EncodeTaskData(records)
	if len(payload) > s.capacity {
		return fmt.Errorf("%w: %d tasks need %d bytes, buffer holds %d", ErrCapacity, len(records), len(payload), s.capacity)
	}
	page, err := s.bufferPage(ctx, tcb)
	if err != nil {
		return err
	}
	buffer, err := NewRemoteBuffer(s.memory, page.Frame, s.offset, s.capacity)
	if err != nil {
		return err
	}
	if err = s.kernel.Map(ctx, page.Frame, tcb.BufferAddress, 1, kernel.MapUserRW, s.kernel.Self()); err != nil {
		return fmt.Errorf("failed to map buffer of task %d: %w", requester, err)
	}
	if err = buffer.Write(payload); err != nil {
		return err
	}
	if err = s.kernel.Reply(ctx, requester, 0); err != nil {
		return fmt.Errorf("failed to reply to %d: %w", requester, err)
	}
	s.logger.Info("task data sent", "requester", requester, "tasks", len(records), "bytes", len(payload))
	return nil
}

func (s *Service) bufferPage(ctx context.Context, tcb *task.TCB) (*vm.Page, error) {
	resolution, err := pagecache.Resolve(tcb, tcb.BufferAddress)
	if err != nil {
		return nil, err
	}
	switch resolution.Status {
	case pagecache.StatusResident:
		return resolution.Page, nil
	case pagecache.StatusNotResident:
		if s.faulter != nil {
			return s.faulter.Handle(ctx, tcb, tcb.BufferAddress, true)
		}
		return nil, fmt.Errorf("%w: task %d at 0x%x", ErrNotResident, tcb.TaskID, uint64(tcb.BufferAddress))
	}
	return nil, fmt.Errorf("%w: buffer 0x%x of task %d is unmapped", vm.ErrInconsistent, uint64(tcb.BufferAddress), tcb.TaskID)
}

// New creates an exporter. The default policy denies everyone.
func New(kernel kernel.Service, registry *task.Registry, memory physmem.Memory, options ...Option) *Service {
	ret := &Service{
		kernel:   kernel,
		registry: registry,
		memory:   memory,
		capacity: ipc.BufferSize,
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.logger = logging.Or(ret.logger)
	return ret
}
