package pagecache

import (
	"context"
	"fmt"

	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/physmem"
)

// BootPager copies page content from an image resident at physStart.
// Bytes past the image length are left zero.
func BootPager(mem physmem.Memory, physStart vm.PhysAddr) vm.Pager {
	return vm.PagerFunc(func(ctx context.Context, file *vm.File, offset vm.PageOffset, frame vm.PhysAddr) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, from, err := span(file, offset)
		if err != nil || n == 0 {
			return err
		}
		src, err := physStart.Add(from)
		if err != nil {
			return err
		}
		data, err := physmem.Copy(mem, src, n)
		if err != nil {
			return fmt.Errorf("failed to read %q page %d: %w", file.Name, offset, err)
		}
		return mem.Write(frame, 0, data)
	})
}

// DataPager serves page content from an in-memory byte slice.
func DataPager(mem physmem.Memory, data []byte) vm.Pager {
	return vm.PagerFunc(func(ctx context.Context, file *vm.File, offset vm.PageOffset, frame vm.PhysAddr) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := uint64(offset) << vm.PageShift
		if from >= uint64(len(data)) {
			return nil
		}
		to := from + vm.PageSize
		if to > uint64(len(data)) {
			to = uint64(len(data))
		}
		return mem.Write(frame, 0, data[from:to])
	})
}

// ZeroPager clears the frame.
func ZeroPager(mem physmem.Memory) vm.Pager {
	zero := make([]byte, vm.PageSize)
	return vm.PagerFunc(func(ctx context.Context, file *vm.File, offset vm.PageOffset, frame vm.PhysAddr) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return mem.Write(frame, 0, zero)
	})
}

// span returns the byte count and start of the page at offset within file.
func span(file *vm.File, offset vm.PageOffset) (int, uint64, error) {
	from, err := vm.PagesToBytes(uint64(offset))
	if err != nil {
		return 0, 0, err
	}
	if from >= file.Length {
		return 0, from, nil
	}
	n := file.Length - from
	if n > vm.PageSize {
		n = vm.PageSize
	}
	return int(n), from, nil
}
