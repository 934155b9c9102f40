// Package resource declares the container-scoped allocator consumed for
// kernel objects. Pools live behind the interface; callers only allocate and free.
package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned when a pool has no free id.
	ErrExhausted = errors.New("resource: pool exhausted")

	// ErrNotAllocated is returned when freeing an id that is not in use.
	ErrNotAllocated = errors.New("resource: id not allocated")

	// ErrUnknownKind is returned for a kind without a pool.
	ErrUnknownKind = errors.New("resource: unknown kind")
)

// Kind selects the pool.
type Kind int

const (
	PGD Kind = iota
	PMD
	Space
	KTCB
	Capability
	Container
	UserMutex
	// Resource is the generic resource id pool.
	Resource
)

var kindNames = [...]string{"pgd", "pmd", "space", "ktcb", "capability", "container", "mutex", "resource"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every kind.
func Kinds() []Kind {
	return []Kind{PGD, PMD, Space, KTCB, Capability, Container, UserMutex, Resource}
}

// ID is an allocated object id.
type ID int

// Allocator allocates and frees ids per kind.
type Allocator interface {
	Alloc(kind Kind) (ID, error)
	Reserve(kind Kind, id ID) error
	Free(kind Kind, id ID) error
}
