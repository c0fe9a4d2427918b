package extproc

import (
	"context"
	"fmt"

	"github.com/banshee-data/egopose/internal/storage"
)

// VRSExtractor exports image streams from an aria .vrs recording with the
// vrs CLI. Extracted frames land under outDir/{streamID}/ named with their
// capture timestamp, which the frame index later parses back out.
type VRSExtractor struct {
	Runner Runner
	FS     storage.FileSystem
	// Bin is the vrs binary path, "vrs" when empty.
	Bin string
}

func (e *VRSExtractor) bin() string {
	if e.Bin != "" {
		return e.Bin
	}
	return "vrs"
}

// ExtractAll exports every image stream over the whole recording.
func (e *VRSExtractor) ExtractAll(ctx context.Context, vrsPath, outDir string) error {
	if err := e.FS.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating vrs output dir %s: %w", outDir, err)
	}
	return e.Runner.Run(ctx, e.bin(), "extract-all", vrsPath, "--to", outDir)
}

// ExtractWindow exports image streams between two recording timestamps in
// seconds. The window should be padded by at least one frame interval on
// each side so boundary frames are not lost to rounding.
func (e *VRSExtractor) ExtractWindow(ctx context.Context, vrsPath, outDir string, afterSec, beforeSec float64) error {
	if beforeSec <= afterSec {
		return fmt.Errorf("invalid extraction window [%f, %f]", afterSec, beforeSec)
	}
	if err := e.FS.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating vrs output dir %s: %w", outDir, err)
	}
	return e.Runner.Run(ctx, e.bin(), "extract-all", vrsPath,
		"--after", fmt.Sprintf("%.3f", afterSec),
		"--before", fmt.Sprintf("%.3f", beforeSec),
		"--to", outDir,
	)
}
