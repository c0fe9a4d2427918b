package dataset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/banshee-data/egopose/internal/storage"
)

// EgoTrajectory is the egocentric device's 6-DOF pose table, one row per
// tracking sample, matched by nearest timestamp.
type EgoTrajectory struct {
	path string
	// tSec holds tracking timestamps converted from microseconds to seconds,
	// in table order.
	tSec []float64
	rows []map[string]string
}

// ReadEgoTrajectory loads an egocentric trajectory CSV. The table must carry
// a tracking_timestamp_us column.
func ReadEgoTrajectory(fs storage.FileSystem, path string) (*EgoTrajectory, error) {
	t, err := readCSVTable(fs, path)
	if err != nil {
		return nil, err
	}
	if !t.hasColumn("tracking_timestamp_us") {
		return nil, &SynchronizationGapError{Source: path, Detail: "missing column \"tracking_timestamp_us\""}
	}

	traj := &EgoTrajectory{
		path: path,
		tSec: make([]float64, t.numRows()),
		rows: make([]map[string]string, t.numRows()),
	}
	for i := 0; i < t.numRows(); i++ {
		raw, err := t.value(i, "tracking_timestamp_us")
		if err != nil {
			return nil, err
		}
		us, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &SynchronizationGapError{
				Source: path,
				Detail: fmt.Sprintf("row %d: bad tracking_timestamp_us %q: %v", i, raw, err),
			}
		}
		traj.tSec[i] = us / 1e6
		traj.rows[i] = t.rowMap(i)
	}
	return traj, nil
}

// Nearest returns the trajectory row whose timestamp is closest to tSec by
// absolute difference. Ties break to the first occurrence in table order, so
// identical inputs always align identically.
func (tr *EgoTrajectory) Nearest(tSec float64) map[string]string {
	best := 0
	bestDiff := math.Abs(tr.tSec[0] - tSec)
	for i := 1; i < len(tr.tSec); i++ {
		if d := math.Abs(tr.tSec[i] - tSec); d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return tr.rows[best]
}

// NearestTimestamp returns the timestamp (seconds) of the row Nearest would
// pick, for diagnostics and tests.
func (tr *EgoTrajectory) NearestTimestamp(tSec float64) float64 {
	best := 0
	bestDiff := math.Abs(tr.tSec[0] - tSec)
	for i := 1; i < len(tr.tSec); i++ {
		if d := math.Abs(tr.tSec[i] - tSec); d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return tr.tSec[best]
}

// ExoTrajectory is the exocentric calibration table, keyed exactly by device
// identifier. One pose per device covers the whole session; there is no
// timestamp reconciliation on this side.
type ExoTrajectory struct {
	path string
	rows map[string]map[string]string
}

// ReadExoTrajectory loads an exocentric calibration CSV keyed by gopro_uid.
func ReadExoTrajectory(fs storage.FileSystem, path string) (*ExoTrajectory, error) {
	t, err := readCSVTable(fs, path)
	if err != nil {
		return nil, err
	}
	if !t.hasColumn("gopro_uid") {
		return nil, &SynchronizationGapError{Source: path, Detail: "missing column \"gopro_uid\""}
	}

	traj := &ExoTrajectory{path: path, rows: make(map[string]map[string]string, t.numRows())}
	for i := 0; i < t.numRows(); i++ {
		uid, err := t.value(i, "gopro_uid")
		if err != nil {
			return nil, err
		}
		// First row wins for duplicate uids, matching table order.
		if _, ok := traj.rows[uid]; !ok {
			traj.rows[uid] = t.rowMap(i)
		}
	}
	return traj, nil
}

// Lookup returns the calibration row for a device identifier.
func (tr *ExoTrajectory) Lookup(uid string) (map[string]string, error) {
	row, ok := tr.rows[uid]
	if !ok {
		return nil, &SynchronizationGapError{
			Source: tr.path,
			Detail: fmt.Sprintf("no calibration row for device %q", uid),
		}
	}
	return row, nil
}
