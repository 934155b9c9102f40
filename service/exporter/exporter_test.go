package exporter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	kmemory "github.com/viant/pager/service/kernel/memory"
	"github.com/viant/pager/service/mapping"
	"github.com/viant/pager/service/pagecache"
	pmemory "github.com/viant/pager/service/physmem/memory"
	rmemory "github.com/viant/pager/service/resource/memory"
)

const coordinator = task.TaskID(1)

type fixture struct {
	memory   *pmemory.Memory
	kernel   *kmemory.Kernel
	registry *task.Registry
	faults   *pagecache.FaultHandler
}

// newFixture registers n tasks with ids 1..n, each with a buffer page mapped.
func newFixture(t *testing.T, n int) *fixture {
	mem, err := pmemory.New(pmemory.Config{Base: 0x100000, Frames: 32})
	require.NoError(t, err)
	k, err := kmemory.New(0, rmemory.New(0, rmemory.DefaultConfig()))
	require.NoError(t, err)
	ret := &fixture{memory: mem, kernel: k, registry: task.NewRegistry(), faults: pagecache.NewFaultHandler(mem, k, nil)}
	mapper := mapping.New()
	for i := 1; i <= n; i++ {
		ids := task.IDs{TaskID: task.TaskID(i), SpaceID: task.TaskID(i)}
		require.NoError(t, k.CreateThread(context.Background(), &ids))
		tcb := ret.registry.Create()
		require.NoError(t, ret.registry.Bind(tcb, ids))
		tcb.Name = fmt.Sprintf("task%d", i)
		tcb.BufferAddress = vm.Address(0xf8000000 + uint64(i-1)*vm.PageSize)
		_, err = mapper.Map(context.Background(), nil, 0, tcb, tcb.BufferAddress, vm.Read|vm.Write, 1)
		require.NoError(t, err)
	}
	return ret
}

func (f *fixture) touch(t *testing.T, id task.TaskID) *vm.Page {
	tcb, ok := f.registry.Find(id)
	require.True(t, ok)
	page, err := f.faults.Handle(context.Background(), tcb, tcb.BufferAddress, true)
	require.NoError(t, err)
	return page
}

func TestService_Export(t *testing.T) {
	for _, n := range []int{1, 3, ipc.MaxTaskData(ipc.BufferSize)} {
		t.Run(fmt.Sprintf("%d tasks", n), func(t *testing.T) {
			f := newFixture(t, n)
			page := f.touch(t, coordinator)
			srv := New(f.kernel, f.registry, f.memory, WithPolicy(CoordinatorOnly(coordinator)))

			require.Equal(t, Allow, srv.Authorize(coordinator))
			require.NoError(t, srv.Export(context.Background(), coordinator))

			raw, err := f.memory.Read(page.Frame, 0, ipc.TaskDataSize(n))
			require.NoError(t, err)
			records, err := ipc.DecodeTaskData(raw)
			require.NoError(t, err)
			require.Len(t, records, n)
			for i, tcb := range f.registry.List() {
				assert.Equal(t, tcb.TaskID, records[i].TaskID)
				assert.Equal(t, tcb.BufferAddress, records[i].BufferAddress)
			}

			thread, _ := f.kernel.Thread(coordinator)
			assert.Equal(t, []int{0}, thread.Replies)
			frame, flags, ok := f.kernel.Translate(f.kernel.Self(), 0xf8000000)
			require.True(t, ok)
			assert.Equal(t, page.Frame, frame)
			assert.Equal(t, kernel.MapUserRW, flags)
		})
	}
}

func TestService_Authorize(t *testing.T) {
	f := newFixture(t, 2)
	testCases := []struct {
		name      string
		policy    Policy
		requester task.TaskID
		expect    Decision
	}{
		{name: "coordinator", policy: CoordinatorOnly(coordinator), requester: coordinator, expect: Allow},
		{name: "other task", policy: CoordinatorOnly(coordinator), requester: 2, expect: Deny},
		{name: "no policy", requester: coordinator, expect: Deny},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var options []Option
			if tc.policy != nil {
				options = append(options, WithPolicy(tc.policy))
			}
			srv := New(f.kernel, f.registry, f.memory, options...)
			assert.Equal(t, tc.expect, srv.Authorize(tc.requester))
		})
	}
}

func TestService_Export_Capacity(t *testing.T) {
	f := newFixture(t, 2)
	page := f.touch(t, coordinator)
	srv := New(f.kernel, f.registry, f.memory, WithPolicy(CoordinatorOnly(coordinator)), WithBuffer(0, ipc.TaskDataSize(1)))

	err := srv.Export(context.Background(), coordinator)
	assert.True(t, errors.Is(err, ErrCapacity))
	raw, err := f.memory.Read(page.Frame, 0, int(vm.PageSize))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, vm.PageSize), raw, "nothing is written")
	thread, _ := f.kernel.Thread(coordinator)
	assert.Empty(t, thread.Replies)
	_, _, ok := f.kernel.Translate(f.kernel.Self(), 0xf8000000)
	assert.False(t, ok, "rejected request leaves no mapping in the pager")
}

func TestService_Export_BufferPage(t *testing.T) {
	t.Run("not resident", func(t *testing.T) {
		f := newFixture(t, 1)
		srv := New(f.kernel, f.registry, f.memory)
		assert.True(t, errors.Is(srv.Export(context.Background(), coordinator), ErrNotResident))
	})
	t.Run("faulted in", func(t *testing.T) {
		f := newFixture(t, 1)
		srv := New(f.kernel, f.registry, f.memory, WithFaulter(f.faults))
		require.NoError(t, srv.Export(context.Background(), coordinator))
		tcb, _ := f.registry.Find(coordinator)
		resolution, err := pagecache.Resolve(tcb, tcb.BufferAddress)
		require.NoError(t, err)
		assert.Equal(t, pagecache.StatusResident, resolution.Status)
	})
	t.Run("unknown requester", func(t *testing.T) {
		f := newFixture(t, 1)
		srv := New(f.kernel, f.registry, f.memory)
		assert.True(t, errors.Is(srv.Export(context.Background(), 9), vm.ErrInconsistent))
	})
}

func TestRemoteBuffer(t *testing.T) {
	_, err := NewRemoteBuffer(nil, 0, 4000, 512)
	assert.True(t, errors.Is(err, ErrCapacity))

	f := newFixture(t, 1)
	page := f.touch(t, coordinator)
	buffer, err := NewRemoteBuffer(f.memory, page.Frame, 64, 4)
	require.NoError(t, err)
	assert.True(t, errors.Is(buffer.Write([]byte("12345")), ErrCapacity))
	require.NoError(t, buffer.Write([]byte("1234")))
	raw, err := f.memory.Read(page.Frame, 64, 4)
	require.NoError(t, err)
	assert.Equal(t, "1234", string(raw))
}
