// Package boot describes the executable images embedded in the boot image.
package boot

import (
	"errors"
	"fmt"

	"github.com/viant/pager/model/vm"
)

// ErrInvalidImage is returned for a malformed image descriptor.
var ErrInvalidImage = errors.New("boot: invalid image descriptor")

// Image describes one embedded program by its physical byte range.
type Image struct {
	Name      string      `yaml:"name" json:"name"`
	PhysStart vm.PhysAddr `yaml:"physStart" json:"physStart"`
	PhysEnd   vm.PhysAddr `yaml:"physEnd" json:"physEnd"`
}

// Length returns the image size in bytes.
func (i *Image) Length() uint64 {
	if i.PhysEnd < i.PhysStart {
		return 0
	}
	return uint64(i.PhysEnd - i.PhysStart)
}

// Validate checks the descriptor.
func (i *Image) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidImage)
	}
	if i.PhysEnd <= i.PhysStart {
		return fmt.Errorf("%w: %s has empty range 0x%x-0x%x", ErrInvalidImage, i.Name, uint64(i.PhysStart), uint64(i.PhysEnd))
	}
	return nil
}

// Descriptor is the boot image table supplied by the loader.
type Descriptor struct {
	Images []Image `yaml:"images" json:"images"`
}

// Lookup returns the image with the given name.
func (d *Descriptor) Lookup(name string) *Image {
	for i := range d.Images {
		if d.Images[i].Name == name {
			return &d.Images[i]
		}
	}
	return nil
}
