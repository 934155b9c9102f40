package spawner

import "fmt"

// Stage names the boot step that failed.
type Stage string

const (
	StageDescriptor Stage = "descriptor"
	StageIdentity   Stage = "identity"
	StageRegistry   Stage = "registry"
	StageBuffer     Stage = "buffer"
	StageFile       Stage = "file"
	StageLayout     Stage = "layout"
	StageEnv        Stage = "env"
	StageMapImage   Stage = "map-image"
	StageMapEnv     Stage = "map-env"
	StageMapStack   Stage = "map-stack"
	StageMapBuffer  Stage = "map-buffer"
	StageRegisters  Stage = "registers"
	StageRun        Stage = "run"
)

// FatalError aborts the boot sequence. Tasks started before the failure are
// left as they are; the caller is expected to terminate.
type FatalError struct {
	Image string
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("boot %q failed at %s: %v", e.Image, e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(image string, stage Stage, err error) *FatalError {
	return &FatalError{Image: image, Stage: stage, Err: err}
}
