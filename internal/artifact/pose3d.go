package artifact

import (
	"fmt"
	"sort"

	"github.com/banshee-data/egopose/internal/model"
)

// Pose3DSet is the pose3d stage artifact: one triangulated pose per frame
// index.
type Pose3DSet struct {
	Info  RunInfo
	Poses map[int]model.Pose3D
}

const pose3dSchema = `
	CREATE TABLE joints (
		frame_index INTEGER NOT NULL,
		joint INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (frame_index, joint)
	);
`

// WritePose3D commits the pose3d stage artifact in frame order.
func WritePose3D(path string, meta Meta, poses map[int]model.Pose3D) error {
	db, tmp, err := createStore(path, StagePose3D, meta)
	if err != nil {
		return err
	}
	if _, err := db.Exec(pose3dSchema); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to initialize pose3d schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to begin pose3d write: %v", err)
	}
	stmt, err := tx.Prepare("INSERT INTO joints (frame_index, joint, x, y, z, score) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to prepare joint insert: %v", err)
	}

	frames := make([]int, 0, len(poses))
	for frame := range poses {
		frames = append(frames, frame)
	}
	sort.Ints(frames)

	for _, frame := range frames {
		pose := poses[frame]
		for joint, p := range pose {
			if _, err := stmt.Exec(frame, joint, p[0], p[1], p[2], p[3]); err != nil {
				discardStore(db, tmp)
				return fmt.Errorf("failed to insert joint %d for frame %d: %v", joint, frame, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to commit pose3d rows: %v", err)
	}
	return commitStore(db, tmp, path)
}

// ReadPose3D loads a pose3d artifact. A missing file wraps fs.ErrNotExist.
func ReadPose3D(path string) (*Pose3DSet, error) {
	db, info, err := openStore(path, StagePose3D)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT frame_index, joint, x, y, z, score FROM joints ORDER BY frame_index, joint")
	if err != nil {
		return nil, fmt.Errorf("failed to read joints from %s: %v", path, err)
	}
	defer rows.Close()

	set := &Pose3DSet{Info: info, Poses: make(map[int]model.Pose3D)}
	for rows.Next() {
		var frame, joint int
		var x, y, z, score float64
		if err := rows.Scan(&frame, &joint, &x, &y, &z, &score); err != nil {
			return nil, fmt.Errorf("failed to scan joint: %v", err)
		}
		if joint < 0 || joint >= model.NumJoints {
			return nil, fmt.Errorf("artifact %s: joint index %d out of range", path, joint)
		}
		pose := set.Poses[frame]
		pose[joint] = [4]float64{x, y, z, score}
		set.Poses[frame] = pose
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read joints from %s: %v", path, err)
	}
	return set, nil
}
