package exporter

import (
	"errors"
	"fmt"

	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/physmem"
)

// ErrCapacity is returned when a payload does not fit the peer's buffer.
var ErrCapacity = errors.New("exporter: payload exceeds buffer capacity")

// RemoteBuffer is a bounded window into another task's buffer page.
type RemoteBuffer struct {
	memory   physmem.Memory
	frame    vm.PhysAddr
	offset   int
	capacity int
}

// NewRemoteBuffer creates a window of capacity bytes at offset in frame.
func NewRemoteBuffer(memory physmem.Memory, frame vm.PhysAddr, offset, capacity int) (*RemoteBuffer, error) {
	if offset < 0 || capacity < 0 || uint64(offset+capacity) > vm.PageSize {
		return nil, fmt.Errorf("%w: window %d+%d exceeds a page", ErrCapacity, offset, capacity)
	}
	return &RemoteBuffer{memory: memory, frame: frame, offset: offset, capacity: capacity}, nil
}

// Write copies payload into the window. Nothing is written when it does not fit.
func (b *RemoteBuffer) Write(payload []byte) error {
	if len(payload) > b.capacity {
		return fmt.Errorf("%w: %d > %d bytes", ErrCapacity, len(payload), b.capacity)
	}
	return b.memory.Write(b.frame, b.offset, payload)
}
