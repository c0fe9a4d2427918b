package dataset

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/egopose/internal/storage"
)

// TimesyncTable is the capture-time synchronization table: one row per
// synchronized index, with per-stream frame numbers and (for egocentric
// streams) capture timestamps in nanoseconds.
type TimesyncTable struct {
	t *csvTable
}

// ReadTimesync loads the capture's timesync CSV.
func ReadTimesync(fs storage.FileSystem, path string) (*TimesyncTable, error) {
	t, err := readCSVTable(fs, path)
	if err != nil {
		return nil, err
	}
	return &TimesyncTable{t: t}, nil
}

// Len returns the number of synchronized rows in the capture.
func (ts *TimesyncTable) Len() int { return ts.t.numRows() }

// EgoFrameNumber returns the egocentric stream's frame number at a
// synchronized row.
func (ts *TimesyncTable) EgoFrameNumber(egoID, streamID string, row int) (int, error) {
	return ts.intValue(row, fmt.Sprintf("%s_%s_frame_number", egoID, streamID))
}

// EgoCaptureTimestampNs returns the egocentric stream's capture timestamp in
// nanoseconds at a synchronized row.
func (ts *TimesyncTable) EgoCaptureTimestampNs(egoID, streamID string, row int) (float64, error) {
	raw, err := ts.t.value(row, fmt.Sprintf("%s_%s_capture_timestamp_ns", egoID, streamID))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &SynchronizationGapError{
			Source: ts.t.path,
			Detail: fmt.Sprintf("row %d: bad timestamp %q for stream %s: %v", row, raw, streamID, err),
		}
	}
	return v, nil
}

// ExoFrameNumber returns an exocentric camera's frame number at a
// synchronized row.
func (ts *TimesyncTable) ExoFrameNumber(camName string, row int) (int, error) {
	return ts.intValue(row, fmt.Sprintf("%s_frame_number", camName))
}

func (ts *TimesyncTable) intValue(row int, column string) (int, error) {
	raw, err := ts.t.value(row, column)
	if err != nil {
		return 0, err
	}
	// Frame numbers may be serialized as floats (e.g. "42.0").
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &SynchronizationGapError{
			Source: ts.t.path,
			Detail: fmt.Sprintf("row %d: bad frame number %q in %s: %v", row, raw, column, err),
		}
	}
	return int(v), nil
}
