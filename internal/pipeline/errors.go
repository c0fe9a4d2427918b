package pipeline

import "fmt"

// MissingArtifactError reports that a stage was started before the stage it
// depends on has produced its artifact. The message tells the operator which
// stage to run first.
type MissingArtifactError struct {
	Stage    string // the stage that was requested
	Path     string // the artifact that was not found
	RunFirst string // the stage that produces it
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("stage %s requires %s which does not exist: run %q first", e.Stage, e.Path, e.RunFirst)
}
