package dataset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/egopose/internal/storage"
)

// frameRef points at one extracted egocentric frame file.
type frameRef struct {
	// timestamp in seconds, parsed from the file name.
	t float64
	// relPath is relative to the dataset frame directory.
	relPath string
}

// EgoFrameIndex maps each egocentric stream to its extracted frames, keyed by
// millisecond-precision second string ("12.345"). The extraction tool embeds
// the capture timestamp in each file name as the trailing "-<sec>.<ms>"
// segment, which makes exact string matching against timesync rows possible.
type EgoFrameIndex struct {
	streams map[string]map[string]frameRef
}

// TimestampKey formats a timestamp in seconds as the exact-match index key.
func TimestampKey(tSec float64) string {
	return strconv.FormatFloat(tSec, 'f', 3, 64)
}

// BuildEgoFrameIndex scans frameDir/{egoID}/{streamID}/ for extracted jpg
// frames of each requested stream.
func BuildEgoFrameIndex(fs storage.FileSystem, frameDir, egoID string, streamIDs []string) (*EgoFrameIndex, error) {
	idx := &EgoFrameIndex{streams: make(map[string]map[string]frameRef, len(streamIDs))}
	for _, streamID := range streamIDs {
		dir := filepath.Join(frameDir, egoID, streamID)
		names, err := storage.Glob(fs, dir, ".jpg")
		if err != nil {
			return nil, &SynchronizationGapError{
				Source: dir,
				Detail: fmt.Sprintf("no extracted frames for stream %s: %v", streamID, err),
			}
		}
		frames := make(map[string]frameRef, len(names))
		for _, name := range names {
			key, t, ok := parseFrameTimestamp(name)
			if !ok {
				continue
			}
			frames[key] = frameRef{t: t, relPath: filepath.Join(egoID, streamID, name)}
		}
		if len(frames) == 0 {
			return nil, &SynchronizationGapError{
				Source: dir,
				Detail: fmt.Sprintf("no parseable frames for stream %s", streamID),
			}
		}
		idx.streams[streamID] = frames
	}
	return idx, nil
}

// Lookup finds the extracted frame whose embedded timestamp matches the key
// exactly. Extraction must be exhaustive over the requested range, so a miss
// is a MissingFrameError rather than a fallback.
func (idx *EgoFrameIndex) Lookup(streamID, key string) (relPath string, tSec float64, err error) {
	frames, ok := idx.streams[streamID]
	if !ok {
		return "", 0, &SynchronizationGapError{Source: "frame index", Detail: fmt.Sprintf("unknown stream %q", streamID)}
	}
	ref, ok := frames[key]
	if !ok {
		return "", 0, &MissingFrameError{Stream: streamID, TimestampKey: key}
	}
	return ref.relPath, ref.t, nil
}

// parseFrameTimestamp extracts the "<sec>.<ms>" timestamp from an extracted
// frame name like "214-1-00042-12.345.jpg".
func parseFrameTimestamp(name string) (key string, tSec float64, ok bool) {
	base := strings.TrimSuffix(name, ".jpg")
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return "", 0, false
	}
	key = base[i+1:]
	t, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return "", 0, false
	}
	return key, t, true
}
