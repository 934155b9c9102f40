package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/kernel"
	kmemory "github.com/viant/pager/service/kernel/memory"
	rmemory "github.com/viant/pager/service/resource/memory"
)

func TestService_Map(t *testing.T) {
	image := vm.NewFile(0x200000, "image", 3*vm.PageSize+1, nil)

	testCases := []struct {
		name      string
		file      *vm.File
		offset    vm.PageOffset
		start     vm.Address
		pages     uint64
		expectErr error
	}{
		{name: "whole file", file: image, start: 0x10000000, pages: 4},
		{name: "tail of file", file: image, offset: 2, start: 0x10000000, pages: 2},
		{name: "anonymous", start: 0x1fffb000, pages: 4},
		{name: "zero pages", file: image, start: 0x10000000, pages: 0, expectErr: ErrInvalidArgument},
		{name: "misaligned", file: image, start: 0x10000010, pages: 1, expectErr: ErrInvalidArgument},
		{name: "overflow", start: 0xfffffffffffff000, pages: 2, expectErr: ErrInvalidArgument},
		{name: "beyond file", file: image, offset: 1, start: 0x10000000, pages: 4, expectErr: ErrBeyondFile},
		{name: "offset past end", file: image, offset: 9, start: 0x10000000, pages: 1, expectErr: ErrBeyondFile},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := New()
			tcb := task.NewRegistry().Create()
			region, err := srv.Map(context.Background(), tc.file, tc.offset, tcb, tc.start, vm.Read|vm.Write, tc.pages)
			if tc.expectErr != nil {
				assert.True(t, errors.Is(err, tc.expectErr), "%v", err)
				assert.Equal(t, 0, tcb.Regions.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start.PFN(), region.Start)
			assert.Equal(t, tc.pages, region.Pages())
			assert.Equal(t, tc.offset, region.Offset)
			require.NotNil(t, region.Owner)
			if tc.file == nil {
				assert.True(t, region.Flags.Has(vm.Anon))
			} else {
				assert.Same(t, tc.file, region.Owner)
				assert.False(t, region.Flags.Has(vm.Anon))
			}
			assert.Same(t, region, tcb.Regions.Find(tc.start.PFN()))
		})
	}
}

func TestService_Map_Overlap(t *testing.T) {
	srv := New()
	tcb := task.NewRegistry().Create()
	ctx := context.Background()
	_, err := srv.Map(ctx, nil, 0, tcb, 0x10000000, vm.Read, 2)
	require.NoError(t, err)
	_, err = srv.Map(ctx, nil, 0, tcb, 0x10001000, vm.Read, 2)
	assert.True(t, errors.Is(err, ErrOverlap))
	_, err = srv.Map(ctx, nil, 0, tcb, 0x10002000, vm.Read, 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, tcb.Regions.Len())

	other := task.NewRegistry().Create()
	_, err = srv.Map(ctx, nil, 0, other, 0x10000000, vm.Read, 2)
	assert.NoError(t, err, "regions of different tasks are independent")
}

func TestService_Map_AnonymousObjectsAreDistinct(t *testing.T) {
	srv := New()
	tcb := task.NewRegistry().Create()
	first, err := srv.Map(context.Background(), nil, 0, tcb, 0x10000000, vm.Read, 1)
	require.NoError(t, err)
	second, err := srv.Map(context.Background(), nil, 0, tcb, 0x10001000, vm.Read, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first.Owner.ID, second.Owner.ID)
	assert.Equal(t, vm.PageSize, first.Owner.Length)
}

func TestService_Unmap(t *testing.T) {
	ctx := context.Background()
	k, err := kmemory.New(0, rmemory.New(0, rmemory.DefaultConfig()))
	require.NoError(t, err)
	srv := New(WithKernel(k))
	registry := task.NewRegistry()
	tcb := registry.Create()
	ids := task.Invalid()
	require.NoError(t, k.CreateThread(ctx, &ids))
	require.NoError(t, registry.Bind(tcb, ids))

	region, err := srv.Map(ctx, nil, 0, tcb, 0x10000000, vm.Read|vm.Write, 2)
	require.NoError(t, err)
	require.NoError(t, region.Owner.Insert(&vm.Page{Offset: 1, Frame: 0x300000}))
	require.NoError(t, k.Map(ctx, 0x300000, 0x10001000, 1, kernel.MapUserRW, tcb.TaskID))

	_, err = srv.Unmap(ctx, tcb, 0x10001000, 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 1, tcb.Regions.Len())
	_, _, ok := k.Translate(tcb.TaskID, 0x10001000)
	assert.True(t, ok, "failed unmap keeps the translation")

	released, err := srv.Unmap(ctx, tcb, 0x10000000, 2)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, vm.PhysAddr(0x300000), released[0].Frame)
	assert.Equal(t, 0, tcb.Regions.Len())
	assert.Equal(t, 0, region.Owner.Resident())
	_, _, ok = k.Translate(tcb.TaskID, 0x10001000)
	assert.False(t, ok, "unmapped page must not stay translated")
}

func TestService_Unmap_Errors(t *testing.T) {
	ctx := context.Background()
	k, err := kmemory.New(0, rmemory.New(0, rmemory.DefaultConfig()))
	require.NoError(t, err)
	registry := task.NewRegistry()
	tcb := registry.Create()
	ids := task.Invalid()
	require.NoError(t, k.CreateThread(ctx, &ids))
	require.NoError(t, registry.Bind(tcb, ids))

	withoutKernel := New()
	_, err = withoutKernel.Map(ctx, nil, 0, tcb, 0x10000000, vm.Read|vm.Write, 1)
	require.NoError(t, err)
	_, err = withoutKernel.Unmap(ctx, tcb, 0x10000000, 1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 1, tcb.Regions.Len())

	region := tcb.Regions.List()[0]
	require.NoError(t, region.Owner.Insert(&vm.Page{Offset: 0, Frame: 0x300000}))
	k.FailOn("unmap", errors.New("unmap refused"))
	released, err := New(WithKernel(k)).Unmap(ctx, tcb, 0x10000000, 1)
	assert.Error(t, err)
	assert.Nil(t, released, "frames stay allocated while translations may remain")
	assert.Equal(t, 1, region.Owner.Resident())
}
