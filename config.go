package pager

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/pager/internal/logging"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/model/vm"
	"github.com/viant/pager/service/layout"
	"github.com/viant/pager/service/loader"
	qmemory "github.com/viant/pager/service/messaging/memory"
	pmemory "github.com/viant/pager/service/physmem/memory"
	"github.com/viant/pager/tracing"
	"gopkg.in/yaml.v3"
)

// Config is the serialisable pager configuration. Sections left out of a
// YAML document keep their defaults.
type Config struct {
	Layout    layout.Config       `yaml:"layout"`
	Buffer    layout.BufferConfig `yaml:"buffer"`
	Boot      BootConfig          `yaml:"boot"`
	Memory    pmemory.Config      `yaml:"memory"`
	Resources ResourceConfig      `yaml:"resources"`
	Queue     qmemory.Config      `yaml:"queue"`
	Log       logging.Config      `yaml:"log"`
	Tracing   tracing.Config      `yaml:"tracing"`
}

// BootConfig names the well-known tasks and the images to boot.
type BootConfig struct {
	SelfName        string      `yaml:"selfName"`
	SelfID          task.TaskID `yaml:"selfID"`
	CoordinatorName string      `yaml:"coordinatorName"`
	CoordinatorID   task.TaskID `yaml:"coordinatorID"`
	// ImageBase is where the loader places the first image.
	ImageBase vm.PhysAddr `yaml:"imageBase"`
	// ImagesURL is a directory of image files; Images lists them explicitly.
	ImagesURL string          `yaml:"imagesURL"`
	Images    []loader.Source `yaml:"images"`
}

// ResourceConfig sizes the kernel id pools.
type ResourceConfig struct {
	PoolSize int `yaml:"poolSize"`
}

// CoordinatorIDs returns the fixed identity of the filesystem coordinator.
func (b *BootConfig) CoordinatorIDs() task.IDs {
	return task.IDs{TaskID: b.CoordinatorID, SpaceID: b.CoordinatorID}
}

// DefaultConfig returns the reference platform settings.
func DefaultConfig() *Config {
	return &Config{
		Layout: layout.DefaultConfig(),
		Buffer: layout.DefaultBufferConfig(),
		Boot: BootConfig{
			SelfName:        "mm0",
			SelfID:          0,
			CoordinatorName: "fs0",
			CoordinatorID:   1,
			ImageBase:       pmemory.DefaultConfig().Base,
		},
		Memory:    pmemory.DefaultConfig(),
		Resources: ResourceConfig{PoolSize: 256},
		Queue:     qmemory.DefaultConfig(),
		Log:       logging.DefaultConfig(),
		Tracing:   tracing.DefaultConfig(),
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.Buffer.AreaStart.IsAligned() || !c.Buffer.AreaEnd.IsAligned() || c.Buffer.AreaEnd <= c.Buffer.AreaStart {
		errs = append(errs, fmt.Errorf("buffer area 0x%x-0x%x is invalid", uint64(c.Buffer.AreaStart), uint64(c.Buffer.AreaEnd)))
	}
	if c.Buffer.Overlaps(c.Layout.UserStart, c.Layout.UserEnd) {
		errs = append(errs, fmt.Errorf("buffer area overlaps the user area"))
	}
	if c.Buffer.Capacity <= 0 || uint64(c.Buffer.Capacity) > vm.PageSize {
		errs = append(errs, fmt.Errorf("buffer.capacity must be in (0, %d]", vm.PageSize))
	}
	if c.Boot.SelfName == "" || c.Boot.CoordinatorName == "" {
		errs = append(errs, fmt.Errorf("boot.selfName and boot.coordinatorName are required"))
	}
	if c.Boot.SelfName == c.Boot.CoordinatorName {
		errs = append(errs, fmt.Errorf("boot.selfName and boot.coordinatorName must differ"))
	}
	if c.Boot.SelfID < 0 || c.Boot.CoordinatorID < 0 || c.Boot.SelfID == c.Boot.CoordinatorID {
		errs = append(errs, fmt.Errorf("boot ids %d and %d must be distinct and non-negative", c.Boot.SelfID, c.Boot.CoordinatorID))
	}
	if !c.Boot.ImageBase.IsAligned() {
		errs = append(errs, fmt.Errorf("boot.imageBase 0x%x is not page aligned", uint64(c.Boot.ImageBase)))
	}
	if c.Memory.Frames <= 0 {
		errs = append(errs, fmt.Errorf("memory.frames must be > 0"))
	}
	if c.Resources.PoolSize <= int(c.Boot.CoordinatorID) || c.Resources.PoolSize <= int(c.Boot.SelfID) {
		errs = append(errs, fmt.Errorf("resources.poolSize %d cannot hold the well-known ids", c.Resources.PoolSize))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML document over the defaults.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download config %s: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}
