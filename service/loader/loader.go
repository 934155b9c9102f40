// Package loader places boot image files into physical memory and builds the
// boot descriptor the spawner consumes.
package loader

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/viant/afs"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/boot"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/physmem"
)

// Memory is physical memory that can set aside frame ranges.
type Memory interface {
	physmem.Memory
	Reserve(start vm.PhysAddr, pages int) error
}

// Source names an image file.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Service loads images.
type Service struct {
	fs     afs.Service
	memory Memory
	next   vm.PhysAddr
	logger log15.Logger
}

// Load copies every source to the next free page-aligned physical range.
func (s *Service) Load(ctx context.Context, sources ...Source) (*boot.Descriptor, error) {
	ret := &boot.Descriptor{}
	for _, source := range sources {
		image, err := s.load(ctx, source)
		if err != nil {
			return nil, err
		}
		ret.Images = append(ret.Images, *image)
	}
	return ret, nil
}

// LoadDir loads every file under URL, named after the file without extension,
// in name order.
func (s *Service) LoadDir(ctx context.Context, URL string) (*boot.Descriptor, error) {
	objects, err := s.fs.List(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to list images at %s: %w", URL, err)
	}
	var sources []Source
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		name := path.Base(object.URL())
		sources = append(sources, Source{Name: strings.TrimSuffix(name, path.Ext(name)), URL: object.URL()})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return s.Load(ctx, sources...)
}

func (s *Service) load(ctx context.Context, source Source) (*boot.Image, error) {
	data, err := s.fs.DownloadWithURL(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image %s: %w", source.URL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", boot.ErrInvalidImage, source.URL)
	}
	pages, err := vm.Pages(uint64(len(data)))
	if err != nil {
		return nil, err
	}
	start := s.next
	if err = s.memory.Reserve(start, int(pages)); err != nil {
		return nil, fmt.Errorf("failed to reserve %d pages at 0x%x for %s: %w", pages, uint64(start), source.Name, err)
	}
	for offset := 0; offset < len(data); offset += int(vm.PageSize) {
		end := offset + int(vm.PageSize)
		if end > len(data) {
			end = len(data)
		}
		frame, err := start.Add(uint64(offset))
		if err != nil {
			return nil, err
		}
		if err = s.memory.Write(frame, 0, data[offset:end]); err != nil {
			return nil, err
		}
	}
	end, err := start.Add(uint64(len(data)))
	if err != nil {
		return nil, err
	}
	size, _ := vm.PagesToBytes(pages)
	if s.next, err = start.Add(size); err != nil {
		return nil, err
	}
	image := &boot.Image{Name: source.Name, PhysStart: start, PhysEnd: end}
	s.logger.Info("image loaded", "image", image.Name, "start", fmt.Sprintf("0x%x", uint64(start)), "bytes", len(data))
	return image, image.Validate()
}

// New creates a loader placing images from base upwards.
func New(fs afs.Service, memory Memory, base vm.PhysAddr, logger log15.Logger) (*Service, error) {
	if !base.IsAligned() {
		return nil, fmt.Errorf("image base 0x%x is not page aligned", uint64(base))
	}
	return &Service{fs: fs, memory: memory, next: base, logger: logging.Or(logger)}, nil
}
