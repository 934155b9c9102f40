// Package memory simulates physical memory as a contiguous range of frames.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/physmem"
)

// Config describes the simulated range.
type Config struct {
	Base   vm.PhysAddr `yaml:"base"`
	Frames int         `yaml:"frames"`
}

// DefaultConfig returns a 4 MiB range at 0x100000.
func DefaultConfig() Config {
	return Config{Base: 0x100000, Frames: 1024}
}

// Memory is an in-memory physmem.Memory.
type Memory struct {
	config Config
	frames [][]byte
	used   []bool
	next   int
	mu     sync.Mutex
}

// New creates the simulated range.
func New(config Config) (*Memory, error) {
	if !config.Base.IsAligned() {
		return nil, fmt.Errorf("physical base 0x%x is not page aligned", uint64(config.Base))
	}
	if config.Frames <= 0 {
		config.Frames = DefaultConfig().Frames
	}
	return &Memory{
		config: config,
		frames: make([][]byte, config.Frames),
		used:   make([]bool, config.Frames),
	}, nil
}

// Alloc returns the next free frame, zeroed.
func (m *Memory) Alloc(ctx context.Context) (vm.PhysAddr, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(m.used); i++ {
		index := (m.next + i) % len(m.used)
		if m.used[index] {
			continue
		}
		m.used[index] = true
		m.frames[index] = make([]byte, vm.PageSize)
		m.next = index + 1
		return m.frameAddr(index), nil
	}
	return 0, physmem.ErrOutOfMemory
}

// Reserve marks a contiguous frame range used, as the loader does for images.
func (m *Memory) Reserve(start vm.PhysAddr, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first, err := m.index(start)
	if err != nil {
		return err
	}
	if first+pages > len(m.used) {
		return fmt.Errorf("%w: 0x%x + %d pages", physmem.ErrBadFrame, uint64(start), pages)
	}
	for i := first; i < first+pages; i++ {
		if m.used[i] {
			return fmt.Errorf("%w: 0x%x already in use", physmem.ErrBadFrame, uint64(m.frameAddr(i)))
		}
	}
	for i := first; i < first+pages; i++ {
		m.used[i] = true
		m.frames[i] = make([]byte, vm.PageSize)
	}
	if m.next < first+pages {
		m.next = first + pages
	}
	return nil
}

// Free releases a frame.
func (m *Memory) Free(frame vm.PhysAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, err := m.allocated(frame)
	if err != nil {
		return err
	}
	m.used[index] = false
	m.frames[index] = nil
	return nil
}

// Read copies n bytes from the frame.
func (m *Memory) Read(frame vm.PhysAddr, offset, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, err := m.allocated(frame)
	if err != nil {
		return nil, err
	}
	if offset < 0 || n < 0 || offset+n > int(vm.PageSize) {
		return nil, fmt.Errorf("%w: read %d bytes at %d", physmem.ErrBounds, n, offset)
	}
	out := make([]byte, n)
	copy(out, m.frames[index][offset:offset+n])
	return out, nil
}

// Write copies data into the frame.
func (m *Memory) Write(frame vm.PhysAddr, offset int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	index, err := m.allocated(frame)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > int(vm.PageSize) {
		return fmt.Errorf("%w: write %d bytes at %d", physmem.ErrBounds, len(data), offset)
	}
	copy(m.frames[index][offset:], data)
	return nil
}

// InUse returns the number of allocated frames.
func (m *Memory) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, used := range m.used {
		if used {
			count++
		}
	}
	return count
}

func (m *Memory) frameAddr(index int) vm.PhysAddr {
	return m.config.Base + vm.PhysAddr(uint64(index)<<vm.PageShift)
}

func (m *Memory) index(frame vm.PhysAddr) (int, error) {
	if !frame.IsAligned() || frame < m.config.Base {
		return 0, fmt.Errorf("%w: 0x%x", physmem.ErrBadFrame, uint64(frame))
	}
	index := int((uint64(frame) - uint64(m.config.Base)) >> vm.PageShift)
	if index >= len(m.used) {
		return 0, fmt.Errorf("%w: 0x%x", physmem.ErrBadFrame, uint64(frame))
	}
	return index, nil
}

func (m *Memory) allocated(frame vm.PhysAddr) (int, error) {
	index, err := m.index(frame)
	if err != nil {
		return 0, err
	}
	if !m.used[index] {
		return 0, fmt.Errorf("%w: 0x%x is free", physmem.ErrBadFrame, uint64(frame))
	}
	return index, nil
}

var _ physmem.Memory = (*Memory)(nil)
