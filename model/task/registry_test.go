package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Create(t *testing.T) {
	registry := NewRegistry()
	for i := 0; i < 5; i++ {
		tcb := registry.Create()
		assert.Equal(t, Invalid(), tcb.IDs)
		assert.NotNil(t, tcb.Regions)
		assert.Equal(t, i+1, registry.Total())
		assert.Equal(t, registry.Total(), len(registry.List()))
	}
}

func TestRegistry_Bind(t *testing.T) {
	registry := NewRegistry()
	first := registry.Create()
	second := registry.Create()

	require.NoError(t, registry.Bind(first, IDs{TaskID: 1, SpaceID: 1}))
	err := registry.Bind(second, IDs{TaskID: 1, SpaceID: 2})
	assert.True(t, errors.Is(err, ErrDuplicateID))
	err = registry.Bind(second, IDs{TaskID: 2, SpaceID: 1})
	assert.True(t, errors.Is(err, ErrDuplicateID))
	require.NoError(t, registry.Bind(second, IDs{TaskID: 2, SpaceID: 2}))

	found, ok := registry.Find(2)
	assert.True(t, ok)
	assert.Same(t, second, found)

	_, ok = registry.Find(42)
	assert.False(t, ok)

	stray := newTCB()
	assert.True(t, errors.Is(registry.Bind(stray, IDs{TaskID: 9, SpaceID: 9}), ErrNotLinked))
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry()
	var ids []TaskID
	for i := 0; i < 3; i++ {
		tcb := registry.Create()
		id := TaskID(10 + i)
		require.NoError(t, registry.Bind(tcb, IDs{TaskID: id, SpaceID: id}))
		ids = append(ids, id)
	}
	assert.True(t, registry.Remove(ids[1]))
	assert.False(t, registry.Remove(ids[1]))
	assert.Equal(t, 2, registry.Total())

	list := registry.List()
	assert.Equal(t, ids[0], list[0].TaskID)
	assert.Equal(t, ids[2], list[1].TaskID)

	third, ok := registry.Find(ids[2])
	require.True(t, ok)
	assert.True(t, registry.Remove(third.TaskID))
	assert.Equal(t, 1, registry.Total())
}
