package pagecache

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	kmemory "github.com/viant/pager/service/kernel/memory"
	"github.com/viant/pager/service/mapping"
	pmemory "github.com/viant/pager/service/physmem/memory"
	rmemory "github.com/viant/pager/service/resource/memory"
)

type fixture struct {
	memory   *pmemory.Memory
	kernel   *kmemory.Kernel
	mapper   *mapping.Service
	registry *task.Registry
	image    *vm.File
}

func newFixture(t *testing.T) *fixture {
	mem, err := pmemory.New(pmemory.Config{Base: 0x100000, Frames: 64})
	require.NoError(t, err)
	require.NoError(t, mem.Reserve(0x100000, 2))
	require.NoError(t, mem.Write(0x100000, 0, bytes.Repeat([]byte{0xaa}, int(vm.PageSize))))
	require.NoError(t, mem.Write(0x101000, 0, []byte("tail")))
	k, err := kmemory.New(0, rmemory.New(0, rmemory.DefaultConfig()))
	require.NoError(t, err)
	return &fixture{
		memory:   mem,
		kernel:   k,
		mapper:   mapping.New(mapping.WithAnonymousPager(ZeroPager(mem)), mapping.WithKernel(k)),
		registry: task.NewRegistry(),
		image:    vm.NewFile(0x100000, "image", vm.PageSize+4, BootPager(mem, 0x100000)),
	}
}

func (f *fixture) newTask(t *testing.T, id task.TaskID) *task.TCB {
	tcb := f.registry.Create()
	ids := task.IDs{TaskID: id, SpaceID: id}
	require.NoError(t, f.kernel.CreateThread(context.Background(), &ids))
	require.NoError(t, f.registry.Bind(tcb, ids))
	return tcb
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tcb := f.newTask(t, 5)
	region, err := f.mapper.Map(ctx, f.image, 0, tcb, 0x10000000, vm.Read|vm.Write, 2)
	require.NoError(t, err)
	page := &vm.Page{Offset: 1, Frame: 0x101000}
	require.NoError(t, f.image.Insert(page))

	testCases := []struct {
		name         string
		addr         vm.Address
		expectStatus Status
		expectOffset vm.PageOffset
	}{
		{name: "below every region", addr: 0x0fffffff, expectStatus: StatusUnmapped},
		{name: "past the region", addr: 0x10002000, expectStatus: StatusUnmapped},
		{name: "first page not cached", addr: 0x10000123, expectStatus: StatusNotResident},
		{name: "second page cached", addr: 0x10001fff, expectStatus: StatusResident, expectOffset: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Resolve(tcb, tc.addr)
			require.NoError(t, err)
			assert.Equal(t, tc.expectStatus, actual.Status)
			switch tc.expectStatus {
			case StatusUnmapped:
				assert.Nil(t, actual.Region)
				assert.Nil(t, actual.Page)
			case StatusNotResident:
				assert.Same(t, region, actual.Region)
				assert.Nil(t, actual.Page)
			case StatusResident:
				assert.Same(t, page, actual.Page)
				assert.Equal(t, tc.expectOffset, actual.FileOffset)
			}
		})
	}
	assert.Equal(t, 1, f.image.Resident(), "resolve never mutates the cache")
}

func TestResolve_SharedPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.newTask(t, 5)
	second := f.newTask(t, 6)
	_, err := f.mapper.Map(ctx, f.image, 0, first, 0x10000000, vm.Read, 2)
	require.NoError(t, err)
	_, err = f.mapper.Map(ctx, f.image, 1, second, 0x40000000, vm.Read, 1)
	require.NoError(t, err)
	page := &vm.Page{Offset: 1, Frame: 0x101000}
	require.NoError(t, f.image.Insert(page))

	a, err := Resolve(first, 0x10001000)
	require.NoError(t, err)
	b, err := Resolve(second, 0x40000000)
	require.NoError(t, err)
	assert.Same(t, page, a.Page)
	assert.Same(t, a.Page, b.Page)
}

func TestResolve_NilTask(t *testing.T) {
	_, err := Resolve(nil, 0x10000000)
	assert.True(t, errors.Is(err, vm.ErrInconsistent))

	f := newFixture(t)
	_, err = NewFaultHandler(f.memory, f.kernel, nil).Handle(context.Background(), nil, 0x10000000, false)
	assert.True(t, errors.Is(err, vm.ErrInconsistent))
}

func TestFaultHandler_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tcb := f.newTask(t, 5)
	other := f.newTask(t, 6)
	_, err := f.mapper.Map(ctx, f.image, 0, tcb, 0x10000000, vm.Read|vm.Write, 2)
	require.NoError(t, err)
	_, err = f.mapper.Map(ctx, f.image, 0, other, 0x10000000, vm.Read, 2)
	require.NoError(t, err)
	_, err = f.mapper.Map(ctx, nil, 0, tcb, 0x1fffb000, vm.Read|vm.Write, 4)
	require.NoError(t, err)
	handler := NewFaultHandler(f.memory, f.kernel, nil)

	page, err := handler.Handle(ctx, tcb, 0x10001004, true)
	require.NoError(t, err)
	tail, err := f.memory.Read(page.Frame, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("tail"), 0, 0, 0, 0), tail)
	frame, flags, ok := f.kernel.Translate(tcb.TaskID, 0x10001000)
	require.True(t, ok)
	assert.Equal(t, page.Frame, frame)
	assert.Equal(t, kernel.MapUserRW, flags)

	shared, err := handler.Handle(ctx, other, 0x10001000, false)
	require.NoError(t, err)
	assert.Same(t, page, shared)
	assert.Equal(t, 2, page.Refs)
	_, flags, _ = f.kernel.Translate(other.TaskID, 0x10001000)
	assert.Equal(t, kernel.MapUserRO, flags)
	again, err := handler.Handle(ctx, other, 0x10001008, false)
	require.NoError(t, err)
	assert.Same(t, page, again)
	assert.Equal(t, 3, page.Refs, "every installing fault counts")

	_, err = handler.Handle(ctx, other, 0x10000000, true)
	assert.True(t, errors.Is(err, ErrProtection))
	_, err = handler.Handle(ctx, tcb, 0x30000000, false)
	assert.True(t, errors.Is(err, ErrSegmentation))

	stack, err := handler.Handle(ctx, tcb, 0x1fffeff8, true)
	require.NoError(t, err)
	data, err := f.memory.Read(stack.Frame, 0, int(vm.PageSize))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, vm.PageSize), data)
}

func TestFaultHandler_Release(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tcb := f.newTask(t, 5)
	other := f.newTask(t, 6)
	_, err := f.mapper.Map(ctx, nil, 0, tcb, 0x20000000, vm.Read|vm.Write, 1)
	require.NoError(t, err)
	handler := NewFaultHandler(f.memory, f.kernel, nil)
	page, err := handler.Handle(ctx, tcb, 0x20000000, true)
	require.NoError(t, err)
	inUse := f.memory.InUse()

	released, err := f.mapper.Unmap(ctx, tcb, 0x20000000, 1)
	require.NoError(t, err)
	require.NoError(t, handler.Release(released))
	assert.Equal(t, inUse-1, f.memory.InUse())
	_, _, ok := f.kernel.Translate(tcb.TaskID, 0x20000000)
	assert.False(t, ok, "released frame must not stay mapped")

	_, err = f.mapper.Map(ctx, nil, 0, other, 0x20000000, vm.Read|vm.Write, 1)
	require.NoError(t, err)
	reused, err := handler.Handle(ctx, other, 0x20000000, true)
	require.NoError(t, err)
	frame, _, ok := f.kernel.Translate(other.TaskID, 0x20000000)
	require.True(t, ok)
	assert.Equal(t, reused.Frame, frame)
	if reused.Frame == page.Frame {
		_, _, ok = f.kernel.Translate(tcb.TaskID, 0x20000000)
		assert.False(t, ok, "reused frame is reachable from its new owner only")
	}
}

func TestDataPager(t *testing.T) {
	f := newFixture(t)
	frame, err := f.memory.Alloc(context.Background())
	require.NoError(t, err)
	file := vm.NewFile(1, "env", vm.PageSize, DataPager(f.memory, []byte("TASKNAME=fs\x00")))
	require.NoError(t, file.Pager.PageIn(context.Background(), file, 0, frame))
	data, err := f.memory.Read(frame, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, "TASKNAME=fs\x00", string(data))
}
