// Package capture loads the immutable description of one multi-camera take:
// which devices recorded it, which of them is the egocentric rig, and where
// the raw video files live.
package capture

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/banshee-data/egopose/internal/storage"
)

// Device types recognised in capture metadata.
const (
	DeviceAria  = "aria"
	DeviceGopro = "gopro"
)

// VideoInfo describes one recorded device in a capture.
type VideoInfo struct {
	DeviceID      string `json:"device_id"`
	DeviceType    string `json:"device_type"`
	IsEgo         bool   `json:"is_ego"`
	HasWalkaround bool   `json:"has_walkaround"`
	SourcePath    string `json:"source_path"`
}

// Metadata identifies a capture. It is created once per run and never
// mutated afterwards.
type Metadata struct {
	TakeID          string      `json:"take_id"`
	VideoSource     string      `json:"video_source"`
	EgoID           string      `json:"ego_id"`
	TimesyncCSVPath string      `json:"timesync_csv_path"`
	Videos          []VideoInfo `json:"videos"`
}

// ExoCamNames returns the device IDs of the fixed exocentric cameras: every
// non-egocentric device without a walkaround pass, in metadata order.
func (m *Metadata) ExoCamNames() []string {
	var names []string
	for _, v := range m.Videos {
		if !v.IsEgo && !v.HasWalkaround {
			names = append(names, v.DeviceID)
		}
	}
	return names
}

// Video returns the VideoInfo for a device ID, or an error if the capture has
// no such device.
func (m *Metadata) Video(deviceID string) (VideoInfo, error) {
	for _, v := range m.Videos {
		if v.DeviceID == deviceID {
			return v, nil
		}
	}
	return VideoInfo{}, fmt.Errorf("capture %s has no device %q", m.TakeID, deviceID)
}

// Load reads capture metadata from an explicit JSON descriptor.
func Load(fs storage.FileSystem, jsonPath string) (*Metadata, error) {
	data, err := fs.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("reading capture metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing capture metadata %s: %w", jsonPath, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("capture metadata %s: %w", jsonPath, err)
	}
	return &m, nil
}

// InferFromDir builds capture metadata by listing a capture directory laid
// out as .../{video_source}/{take_id}/videos/*. Device type is derived from
// the file name: anything containing "aria" is the egocentric rig, and
// "mobile" or "aria" devices carry a walkaround pass.
func InferFromDir(fs storage.FileSystem, captureDir string) (*Metadata, error) {
	captureDir = strings.TrimRight(captureDir, "/")
	takeID := path.Base(captureDir)
	videoSource := path.Base(path.Dir(captureDir))

	videosDir := filepath.Join(captureDir, "videos")
	names, err := fs.ReadDir(videosDir)
	if err != nil {
		return nil, fmt.Errorf("listing capture videos: %w", err)
	}

	m := &Metadata{
		TakeID:          takeID,
		VideoSource:     videoSource,
		EgoID:           "aria01",
		TimesyncCSVPath: filepath.Join(captureDir, "timesync.csv"),
	}
	for _, name := range names {
		deviceID := strings.TrimSuffix(name, filepath.Ext(name))
		isAria := strings.Contains(deviceID, "aria")
		m.Videos = append(m.Videos, VideoInfo{
			DeviceID:      deviceID,
			DeviceType:    deviceType(isAria),
			IsEgo:         isAria,
			HasWalkaround: isAria || strings.Contains(deviceID, "mobile"),
			SourcePath:    filepath.Join(videosDir, name),
		})
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("capture dir %s: %w", captureDir, err)
	}
	return m, nil
}

func deviceType(isAria bool) string {
	if isAria {
		return DeviceAria
	}
	return DeviceGopro
}

func (m *Metadata) validate() error {
	if m.TakeID == "" {
		return fmt.Errorf("take_id is empty")
	}
	if m.VideoSource == "" {
		return fmt.Errorf("video_source is empty")
	}
	if len(m.Videos) == 0 {
		return fmt.Errorf("no videos listed")
	}
	if m.EgoID != "" {
		if _, err := m.Video(m.EgoID); err != nil {
			return fmt.Errorf("ego device %q not among videos", m.EgoID)
		}
	}
	return nil
}
