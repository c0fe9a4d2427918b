package dataset

import (
	"fmt"

	"github.com/banshee-data/egopose/internal/camera"
)

// DefaultStreamNames maps egocentric stream IDs to the names their entries
// carry in the synchronized frame table.
var DefaultStreamNames = map[string]string{
	"211-1":  "aria_et",
	"214-1":  "aria_rgb",
	"1201-1": "aria_slam_left",
	"1201-2": "aria_slam_right",
}

// Synchronizer fuses independently-clocked camera streams into one
// synchronized frame table. Egocentric streams align by exact frame-file
// timestamp plus nearest-timestamp trajectory match; exocentric cameras align
// by frame number plus exact-key calibration lookup.
type Synchronizer struct {
	EgoID     string
	StreamIDs []string
	// StreamNames overrides DefaultStreamNames when non-nil.
	StreamNames map[string]string
	ExoCams     []string
	// NameRemap translates capture-time exo device names to calibration-time
	// names before the trajectory lookup. Nil means names match.
	NameRemap map[string]string

	Timesync   *TimesyncTable
	EgoTraj    *EgoTrajectory
	ExoTraj    *ExoTrajectory
	FrameIndex *EgoFrameIndex
}

// Run assembles FrameRecords for synchronized indices from..to inclusive.
// Any missing stream, column, trajectory row, or frame file aborts the whole
// synchronization; partial tables are never returned.
func (s *Synchronizer) Run(from, to int) ([]FrameRecord, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid frame range [%d, %d]", from, to)
	}
	if to >= s.Timesync.Len() {
		return nil, &SynchronizationGapError{
			Source: "timesync",
			Detail: fmt.Sprintf("range [%d, %d] exceeds capture length %d", from, to, s.Timesync.Len()),
		}
	}

	records := make([]FrameRecord, 0, to-from+1)
	for idx := from; idx <= to; idx++ {
		rec := make(FrameRecord, len(s.StreamIDs)+len(s.ExoCams))

		for _, streamID := range s.StreamIDs {
			name, err := s.streamName(streamID)
			if err != nil {
				return nil, err
			}
			entry, err := s.egoEntry(streamID, name, idx)
			if err != nil {
				return nil, err
			}
			rec[name] = *entry
		}

		for _, cam := range s.ExoCams {
			entry, err := s.exoEntry(cam, idx)
			if err != nil {
				return nil, err
			}
			rec[cam] = *entry
		}

		records = append(records, rec)
	}
	return records, nil
}

func (s *Synchronizer) streamName(streamID string) (string, error) {
	names := s.StreamNames
	if names == nil {
		names = DefaultStreamNames
	}
	name, ok := names[streamID]
	if !ok {
		return "", fmt.Errorf("no stream name mapping for aria stream %q", streamID)
	}
	return name, nil
}

// egoEntry aligns one egocentric stream at one synchronized index: timesync
// row → exact frame-file match → nearest trajectory pose.
func (s *Synchronizer) egoEntry(streamID, name string, idx int) (*ViewEntry, error) {
	tNs, err := s.Timesync.EgoCaptureTimestampNs(s.EgoID, streamID, idx)
	if err != nil {
		return nil, err
	}

	key := TimestampKey(tNs / 1e9)
	relPath, frameT, err := s.FrameIndex.Lookup(streamID, key)
	if err != nil {
		return nil, err
	}

	poseRow := s.EgoTraj.Nearest(frameT)
	camData, err := camera.EgoDataFromRow(poseRow, streamID)
	if err != nil {
		return nil, err
	}
	camData.Name = name

	t := frameT
	return &ViewEntry{
		FramePath:   relPath,
		FrameNumber: idx,
		Timestamp:   &t,
		Camera:      camData,
		Raw:         poseRow,
	}, nil
}

// exoEntry aligns one exocentric camera at one synchronized index: timesync
// frame number → deterministic frame path → exact calibration lookup. There
// is deliberately no nearest-timestamp fallback here; exocentric calibration
// is one pose per device for the session.
func (s *Synchronizer) exoEntry(cam string, idx int) (*ViewEntry, error) {
	frameNum, err := s.Timesync.ExoFrameNumber(cam, idx)
	if err != nil {
		return nil, err
	}

	calibName := cam
	if s.NameRemap != nil {
		if remapped, ok := s.NameRemap[cam]; ok {
			calibName = remapped
		}
	}
	row, err := s.ExoTraj.Lookup(calibName)
	if err != nil {
		return nil, err
	}

	camData, err := camera.ExoDataFromRow(row, cam)
	if err != nil {
		return nil, err
	}

	return &ViewEntry{
		FramePath:   fmt.Sprintf("%s/%06d.jpg", cam, frameNum),
		FrameNumber: frameNum,
		Timestamp:   nil,
		Camera:      camData,
		Raw:         row,
	}, nil
}
