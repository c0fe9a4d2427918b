// Package dataset builds and persists the synchronized frame table: one
// record per synchronized index, each mapping every camera or stream name in
// the capture to its frame file, frame number, timestamp, and camera pose.
package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/storage"
)

// ViewEntry is one camera or stream's slice of a synchronized frame.
type ViewEntry struct {
	// FramePath is relative to the dataset frame directory.
	FramePath   string `json:"frame_path"`
	FrameNumber int    `json:"frame_number"`
	// Timestamp is the capture timestamp in seconds. Egocentric streams carry
	// one; exocentric cameras do not.
	Timestamp *float64    `json:"t"`
	Camera    camera.Data `json:"camera_data"`
	// Raw preserves the source trajectory row the pose was taken from.
	Raw map[string]string `json:"raw_camera,omitempty"`
}

// FrameRecord maps stream/camera name to its entry for one synchronized
// index. Every name present in the capture appears in every record.
type FrameRecord map[string]ViewEntry

// Table is the persisted synchronized frame table. Index order is the
// synchronization timeline order; downstream stages treat it as read-only.
type Table struct {
	CacheDir   string        `json:"cache_dir"`
	DatasetDir string        `json:"dataset_dir"`
	Frames     []FrameRecord `json:"frames"`
}

// Len returns the number of synchronized frames.
func (t *Table) Len() int { return len(t.Frames) }

// Save writes the table as JSON through a temp file plus rename, so a crash
// mid-write never leaves a partial data.json for downstream stages to trip
// over.
func (t *Table) Save(fs storage.FileSystem, path string) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding frame table: %w", err)
	}
	tmp := path + ".tmp"
	if err := fs.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing frame table: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing frame table: %w", err)
	}
	return nil
}

// LoadTable reads a persisted frame table and verifies the density
// invariant: every record carries the same set of stream/camera keys.
func LoadTable(fs storage.FileSystem, path string) (*Table, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing frame table %s: %w", path, err)
	}
	if len(t.Frames) == 0 {
		return nil, fmt.Errorf("frame table %s is empty", path)
	}
	for name := range t.Frames[0] {
		for i, rec := range t.Frames {
			if _, ok := rec[name]; !ok {
				return nil, fmt.Errorf("frame table %s: record %d missing stream %q", path, i, name)
			}
		}
	}
	// Same count plus first-record coverage means identical key sets.
	for i, rec := range t.Frames {
		if len(rec) != len(t.Frames[0]) {
			return nil, fmt.Errorf("frame table %s: record %d has %d streams, record 0 has %d",
				path, i, len(rec), len(t.Frames[0]))
		}
	}
	return &t, nil
}
