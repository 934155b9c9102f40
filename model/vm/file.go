package vm

import (
	"context"
	"fmt"
	"sort"
)

// FileID identifies a backing object, the inode equivalent. Boot images use
// their physical start address.
type FileID uint64

// Pager fills a freshly allocated frame with the content of a backing object
// at the given page offset.
type Pager interface {
	PageIn(ctx context.Context, file *File, offset PageOffset, frame PhysAddr) error
}

// PagerFunc adapts a function to the Pager interface.
type PagerFunc func(ctx context.Context, file *File, offset PageOffset, frame PhysAddr) error

// PageIn calls fn.
func (fn PagerFunc) PageIn(ctx context.Context, file *File, offset PageOffset, frame PhysAddr) error {
	return fn(ctx, file, offset, frame)
}

// Page is a resident page of a backing object.
type Page struct {
	Offset PageOffset
	Frame  PhysAddr
	// Refs counts the faults that installed a translation to the page. A task
	// faulting the same page again counts again.
	Refs int
}

// File is a backing object: an identity, a length, a pager strategy and the
// cache of its resident pages.
type File struct {
	ID     FileID
	Name   string
	Length uint64
	Pager  Pager
	cache  []*Page
}

// NewFile creates a backing object.
func NewFile(id FileID, name string, length uint64, pager Pager) *File {
	return &File{ID: id, Name: name, Length: length, Pager: pager}
}

// Pages returns the number of pages spanned by the object length.
func (f *File) Pages() (uint64, error) {
	return Pages(f.Length)
}

// Lookup scans the page cache for the page at offset.
func (f *File) Lookup(offset PageOffset) *Page {
	for _, page := range f.cache {
		if page.Offset == offset {
			return page
		}
	}
	return nil
}

// Insert adds a page to the cache; a second page at the same offset is rejected.
func (f *File) Insert(page *Page) error {
	if page == nil {
		return fmt.Errorf("%w: nil page inserted into file %d", ErrInconsistent, f.ID)
	}
	if existing := f.Lookup(page.Offset); existing != nil {
		return fmt.Errorf("%w: file %d already caches offset %d", ErrInconsistent, f.ID, page.Offset)
	}
	f.cache = append(f.cache, page)
	return nil
}

// Evict drops the page at offset from the cache and returns it.
func (f *File) Evict(offset PageOffset) *Page {
	for i, page := range f.cache {
		if page.Offset == offset {
			f.cache = append(f.cache[:i], f.cache[i+1:]...)
			return page
		}
	}
	return nil
}

// Resident returns the number of cached pages.
func (f *File) Resident() int {
	return len(f.cache)
}

// Cached returns the cached pages ordered by offset.
func (f *File) Cached() []*Page {
	out := make([]*Page, len(f.cache))
	copy(out, f.cache)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}
