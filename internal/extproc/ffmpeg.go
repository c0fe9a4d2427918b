package extproc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/egopose/internal/storage"
)

// FrameExtractor pulls selected frames out of a video file as numbered jpgs.
type FrameExtractor interface {
	// ExtractFrames writes one {frame:06d}.jpg per requested frame number
	// into outDir. Frame numbers are zero-based positions in the stream.
	ExtractFrames(ctx context.Context, videoPath, outDir string, frameNumbers []int) error
}

// FFmpegExtractor extracts frames with an ffmpeg select filter in a single
// pass over the video.
type FFmpegExtractor struct {
	Runner Runner
	FS     storage.FileSystem
	// Bin overrides the ffmpeg binary name.
	Bin string
}

func (e *FFmpegExtractor) bin() string {
	if e.Bin != "" {
		return e.Bin
	}
	return "ffmpeg"
}

// ExtractFrames decodes the video once, keeping only the requested frames.
// ffmpeg numbers its outputs sequentially, so the files are renamed to their
// stream frame numbers afterwards.
func (e *FFmpegExtractor) ExtractFrames(ctx context.Context, videoPath, outDir string, frameNumbers []int) error {
	if len(frameNumbers) == 0 {
		return nil
	}
	if err := e.FS.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating frame dir %s: %w", outDir, err)
	}

	// Dedupe while preserving ascending stream order, which is the order
	// ffmpeg emits the selected frames in.
	ordered := dedupeSorted(frameNumbers)
	terms := make([]string, len(ordered))
	for i, n := range ordered {
		terms[i] = fmt.Sprintf("eq(n\\,%d)", n)
	}

	tmpPattern := filepath.Join(outDir, "extract_%06d.jpg")
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-vf", "select='" + strings.Join(terms, "+") + "'",
		"-vsync", "0",
		"-q:v", "2",
		tmpPattern,
	}
	if err := e.Runner.Run(ctx, e.bin(), args...); err != nil {
		return err
	}

	for i, n := range ordered {
		src := filepath.Join(outDir, fmt.Sprintf("extract_%06d.jpg", i+1))
		dst := filepath.Join(outDir, fmt.Sprintf("%06d.jpg", n))
		if !e.FS.Exists(src) {
			return fmt.Errorf("ffmpeg produced no output for frame %d of %s", n, videoPath)
		}
		if err := e.FS.Rename(src, dst); err != nil {
			return fmt.Errorf("renaming extracted frame %d: %w", n, err)
		}
	}
	return nil
}

func dedupeSorted(nums []int) []int {
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Muxer assembles an image sequence into a video.
type Muxer interface {
	Mux(ctx context.Context, framePattern string, fps int, outPath string) error
}

// FFmpegMuxer muxes numbered jpgs into an h264 mp4.
type FFmpegMuxer struct {
	Runner Runner
	Bin    string
}

func (m *FFmpegMuxer) bin() string {
	if m.Bin != "" {
		return m.Bin
	}
	return "ffmpeg"
}

// Mux encodes the sequence at framePattern (an ffmpeg image2 pattern like
// dir/%05d.jpg) into outPath.
func (m *FFmpegMuxer) Mux(ctx context.Context, framePattern string, fps int, outPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-r", fmt.Sprintf("%d", fps),
		"-f", "image2",
		"-i", framePattern,
		"-pix_fmt", "yuv420p",
		outPath,
	}
	return m.Runner.Run(ctx, m.bin(), args...)
}
