// Package memory implements resource pools for a single kernel container.
package memory

import (
	"fmt"
	"sync"

	"github.com/viant/pager/service/resource"
)

// Config sizes each pool.
type Config struct {
	Sizes map[resource.Kind]int
}

// DefaultConfig returns 256 ids per kind.
func DefaultConfig() Config {
	sizes := make(map[resource.Kind]int)
	for _, kind := range resource.Kinds() {
		sizes[kind] = 256
	}
	return Config{Sizes: sizes}
}

// Container holds the id pools of one container.
type Container struct {
	ID    int
	pools map[resource.Kind]*IDPool
	mu    sync.Mutex
}

// New creates a container with the configured pools.
func New(id int, config Config) *Container {
	ret := &Container{ID: id, pools: make(map[resource.Kind]*IDPool)}
	for kind, size := range config.Sizes {
		ret.pools[kind] = NewIDPool(size)
	}
	return ret
}

// Alloc returns a fresh id of the kind.
func (c *Container) Alloc(kind resource.Kind) (resource.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pool, err := c.pool(kind)
	if err != nil {
		return 0, err
	}
	id, err := pool.New()
	if err != nil {
		return 0, fmt.Errorf("%v: %w", kind, err)
	}
	return id, nil
}

// Reserve claims a well-known id.
func (c *Container) Reserve(kind resource.Kind, id resource.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pool, err := c.pool(kind)
	if err != nil {
		return err
	}
	return pool.Reserve(id)
}

// Free returns an id to its pool.
func (c *Container) Free(kind resource.Kind, id resource.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pool, err := c.pool(kind)
	if err != nil {
		return err
	}
	return pool.Release(id)
}

// Used returns the ids in use for the kind.
func (c *Container) Used(kind resource.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pool, ok := c.pools[kind]; ok {
		return pool.Used()
	}
	return 0
}

func (c *Container) pool(kind resource.Kind) (*IDPool, error) {
	pool, ok := c.pools[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", resource.ErrUnknownKind, kind)
	}
	return pool, nil
}

var _ resource.Allocator = (*Container)(nil)
