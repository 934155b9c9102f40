// Package layout computes the fixed virtual regions of a boot task.
package layout

import (
	"errors"
	"fmt"

	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
)

const (
	// EnvPages is the size of the environment region. One page satisfies the
	// POSIX minimum for arguments and environment.
	EnvPages = 1
	// StackPages is the size of the initial stack.
	StackPages = 4
	// StackAlign is the stack pointer alignment.
	StackAlign = 8
)

// ErrLayout is returned when an image cannot be laid out.
var ErrLayout = errors.New("layout: invalid address space layout")

// Config bounds the user address range.
type Config struct {
	UserStart vm.Address `yaml:"userStart"`
	UserEnd   vm.Address `yaml:"userEnd"`
}

// DefaultConfig returns the user area of the reference platform.
func DefaultConfig() Config {
	return Config{UserStart: 0x10000000, UserEnd: 0x20000000}
}

// Validate checks the range.
func (c *Config) Validate() error {
	if !c.UserStart.IsAligned() || !c.UserEnd.IsAligned() {
		return fmt.Errorf("%w: user area 0x%x-0x%x is not page aligned", ErrLayout, uint64(c.UserStart), uint64(c.UserEnd))
	}
	if c.UserEnd <= c.UserStart {
		return fmt.Errorf("%w: empty user area", ErrLayout)
	}
	return nil
}

// Layout holds the region boundaries of one task.
type Layout struct {
	TextStart, TextEnd   vm.Address
	DataStart, DataEnd   vm.Address
	ArgsStart, ArgsEnd   vm.Address
	EnvStart, EnvEnd     vm.Address
	StackStart, StackEnd vm.Address
}

// TextPages returns the page count of the text/data region.
func (l *Layout) TextPages() (uint64, error) {
	return vm.Pages(uint64(l.TextEnd - l.TextStart))
}

// EnvPages returns the page count of the environment region.
func (l *Layout) EnvPages() uint64 {
	return uint64(l.EnvEnd-l.EnvStart) >> vm.PageShift
}

// StackPages returns the page count of the stack region.
func (l *Layout) StackPages() uint64 {
	return uint64(l.StackEnd-l.StackStart) >> vm.PageShift
}

// InitialPC is the entry point.
func (l *Layout) InitialPC() vm.Address {
	return l.TextStart
}

// InitialSP is the topmost aligned stack word.
func (l *Layout) InitialSP() vm.Address {
	return vm.Address(vm.AlignDown(uint64(l.StackEnd)-1, StackAlign))
}

// Apply copies the boundaries into the TCB.
func (l *Layout) Apply(tcb *task.TCB) {
	tcb.TextStart, tcb.TextEnd = l.TextStart, l.TextEnd
	tcb.DataStart, tcb.DataEnd = l.DataStart, l.DataEnd
	tcb.ArgsStart, tcb.ArgsEnd = l.ArgsStart, l.ArgsEnd
	tcb.EnvStart, tcb.EnvEnd = l.EnvStart, l.EnvEnd
	tcb.StackStart, tcb.StackEnd = l.StackStart, l.StackEnd
}

// Engine computes layouts.
type Engine struct {
	config Config
}

// New creates an engine.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config}, nil
}

// Compute lays out an image of length bytes. Text and data share one region.
func (e *Engine) Compute(length uint64) (*Layout, error) {
	if length == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrLayout)
	}
	ret := &Layout{}
	var err error
	ret.EnvEnd = e.config.UserEnd
	if ret.EnvStart, err = ret.EnvEnd.Sub(EnvPages * vm.PageSize); err != nil {
		return nil, err
	}
	ret.ArgsStart, ret.ArgsEnd = ret.EnvStart, ret.EnvStart

	ret.StackEnd = ret.EnvStart
	if ret.StackStart, err = ret.StackEnd.Sub(StackPages * vm.PageSize); err != nil {
		return nil, err
	}

	ret.TextStart = e.config.UserStart
	if ret.TextEnd, err = ret.TextStart.Add(length); err != nil {
		return nil, err
	}
	ret.DataStart, ret.DataEnd = ret.TextStart, ret.TextEnd

	aligned, err := vm.PageAlignUp(uint64(ret.TextEnd))
	if err != nil {
		return nil, err
	}
	if ret.StackStart < e.config.UserStart || vm.Address(aligned) > ret.StackStart {
		return nil, fmt.Errorf("%w: image of %d bytes does not fit below the stack at 0x%x", ErrLayout, length, uint64(ret.StackStart))
	}
	return ret, nil
}
