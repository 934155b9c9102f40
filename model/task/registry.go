package task

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned when an identity is already bound to another TCB.
	ErrDuplicateID = errors.New("task: duplicate task id")

	// ErrNotLinked is returned for a TCB that does not belong to the registry.
	ErrNotLinked = errors.New("task: tcb not linked")
)

// Registry is the ordered collection of known tasks. TCBs live in an arena in
// creation order; bound ids are indexed for lookup.
type Registry struct {
	arena []*TCB
	index map[TaskID]*TCB
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[TaskID]*TCB)}
}

// Create allocates a TCB with sentinel identity and links it.
func (r *Registry) Create() *TCB {
	tcb := newTCB()
	tcb.slot = len(r.arena)
	r.arena = append(r.arena, tcb)
	return tcb
}

// Bind assigns the identity pair to a linked TCB.
func (r *Registry) Bind(tcb *TCB, ids IDs) error {
	if !r.linked(tcb) {
		return ErrNotLinked
	}
	if existing, ok := r.index[ids.TaskID]; ok && existing != tcb {
		return fmt.Errorf("%w: %d", ErrDuplicateID, ids.TaskID)
	}
	for _, other := range r.arena {
		if other != tcb && other.SpaceID == ids.SpaceID && ids.SpaceID != InvalidID {
			return fmt.Errorf("%w: space %d", ErrDuplicateID, ids.SpaceID)
		}
	}
	if tcb.TaskID != InvalidID {
		delete(r.index, tcb.TaskID)
	}
	tcb.IDs = ids
	if ids.TaskID != InvalidID {
		r.index[ids.TaskID] = tcb
	}
	return nil
}

// Find returns the TCB with the task id. A missing task is a normal outcome.
func (r *Registry) Find(id TaskID) (*TCB, bool) {
	tcb, ok := r.index[id]
	return tcb, ok
}

// Remove unlinks the TCB with the task id.
func (r *Registry) Remove(id TaskID) bool {
	tcb, ok := r.index[id]
	if !ok {
		return false
	}
	delete(r.index, id)
	r.arena = append(r.arena[:tcb.slot], r.arena[tcb.slot+1:]...)
	for i := tcb.slot; i < len(r.arena); i++ {
		r.arena[i].slot = i
	}
	tcb.slot = -1
	return true
}

// Total returns the number of linked TCBs.
func (r *Registry) Total() int {
	return len(r.arena)
}

// List returns the linked TCBs in creation order.
func (r *Registry) List() []*TCB {
	out := make([]*TCB, len(r.arena))
	copy(out, r.arena)
	return out
}

func (r *Registry) linked(tcb *TCB) bool {
	return tcb != nil && tcb.slot >= 0 && tcb.slot < len(r.arena) && r.arena[tcb.slot] == tcb
}
