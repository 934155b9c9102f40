package memory

import (
	"fmt"
	"math/bits"

	"github.com/viant/pager/service/resource"
)

// IDPool is a bitmap of ids [0, size).
type IDPool struct {
	words []uint64
	size  int
	used  int
}

// NewIDPool creates a pool of size ids.
func NewIDPool(size int) *IDPool {
	return &IDPool{words: make([]uint64, (size+63)/64), size: size}
}

// New returns the lowest free id.
func (p *IDPool) New() (resource.ID, error) {
	for i, word := range p.words {
		if word == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^word)
		id := i*64 + bit
		if id >= p.size {
			break
		}
		p.words[i] |= 1 << uint(bit)
		p.used++
		return resource.ID(id), nil
	}
	return 0, resource.ErrExhausted
}

// Reserve marks a specific id used.
func (p *IDPool) Reserve(id resource.ID) error {
	if int(id) < 0 || int(id) >= p.size {
		return fmt.Errorf("%w: id %d outside pool of %d", resource.ErrExhausted, id, p.size)
	}
	if p.isSet(id) {
		return fmt.Errorf("id %d already reserved", id)
	}
	p.words[id/64] |= 1 << uint(id%64)
	p.used++
	return nil
}

// Release frees an id.
func (p *IDPool) Release(id resource.ID) error {
	if int(id) < 0 || int(id) >= p.size || !p.isSet(id) {
		return fmt.Errorf("%w: %d", resource.ErrNotAllocated, id)
	}
	p.words[id/64] &^= 1 << uint(id%64)
	p.used--
	return nil
}

// Used returns the number of ids in use.
func (p *IDPool) Used() int {
	return p.used
}

func (p *IDPool) isSet(id resource.ID) bool {
	return p.words[id/64]&(1<<uint(id%64)) != 0
}
