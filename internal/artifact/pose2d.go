package artifact

import (
	"fmt"

	"github.com/banshee-data/egopose/internal/model"
)

// Pose2DSet is the pose2d stage artifact: one cell per processed
// (frame, camera), nil where the bbox stage recorded no detection.
type Pose2DSet struct {
	Info  RunInfo
	Poses map[ViewKey]*model.Keypoints
}

// Pose returns the keypoints for one cell. The second result reports whether
// the cell was processed at all.
func (s *Pose2DSet) Pose(frame int, camera string) (*model.Keypoints, bool) {
	kp, ok := s.Poses[ViewKey{Frame: frame, Camera: camera}]
	return kp, ok
}

const pose2dSchema = `
	CREATE TABLE views (
		frame_index INTEGER NOT NULL,
		camera TEXT NOT NULL,
		detected INTEGER NOT NULL,
		PRIMARY KEY (frame_index, camera)
	);
	CREATE TABLE keypoints (
		frame_index INTEGER NOT NULL,
		camera TEXT NOT NULL,
		joint INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (frame_index, camera, joint)
	);
`

// WritePose2D commits the pose2d stage artifact. Every processed cell gets a
// views row; detected cells additionally get one keypoints row per joint.
func WritePose2D(path string, meta Meta, poses map[ViewKey]*model.Keypoints) error {
	db, tmp, err := createStore(path, StagePose2D, meta)
	if err != nil {
		return err
	}
	if _, err := db.Exec(pose2dSchema); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to initialize pose2d schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to begin pose2d write: %v", err)
	}
	viewStmt, err := tx.Prepare("INSERT INTO views (frame_index, camera, detected) VALUES (?, ?, ?)")
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to prepare view insert: %v", err)
	}
	kpStmt, err := tx.Prepare("INSERT INTO keypoints (frame_index, camera, joint, x, y, score) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to prepare keypoint insert: %v", err)
	}

	for _, key := range sortedViewKeys(poses) {
		kp := poses[key]
		detected := 0
		if kp != nil {
			detected = 1
		}
		if _, err := viewStmt.Exec(key.Frame, key.Camera, detected); err != nil {
			discardStore(db, tmp)
			return fmt.Errorf("failed to insert view for frame %d camera %s: %v", key.Frame, key.Camera, err)
		}
		if kp == nil {
			continue
		}
		for joint, p := range kp {
			if _, err := kpStmt.Exec(key.Frame, key.Camera, joint, p[0], p[1], p[2]); err != nil {
				discardStore(db, tmp)
				return fmt.Errorf("failed to insert keypoint %d for frame %d camera %s: %v", joint, key.Frame, key.Camera, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to commit pose2d rows: %v", err)
	}
	return commitStore(db, tmp, path)
}

// ReadPose2D loads a pose2d artifact. A missing file wraps fs.ErrNotExist.
func ReadPose2D(path string) (*Pose2DSet, error) {
	db, info, err := openStore(path, StagePose2D)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	set := &Pose2DSet{Info: info, Poses: make(map[ViewKey]*model.Keypoints)}

	viewRows, err := db.Query("SELECT frame_index, camera, detected FROM views ORDER BY frame_index, camera")
	if err != nil {
		return nil, fmt.Errorf("failed to read pose2d views from %s: %v", path, err)
	}
	defer viewRows.Close()
	for viewRows.Next() {
		var key ViewKey
		var detected int
		if err := viewRows.Scan(&key.Frame, &key.Camera, &detected); err != nil {
			return nil, fmt.Errorf("failed to scan pose2d view: %v", err)
		}
		if detected != 0 {
			set.Poses[key] = &model.Keypoints{}
		} else {
			set.Poses[key] = nil
		}
	}
	if err := viewRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pose2d views from %s: %v", path, err)
	}

	kpRows, err := db.Query("SELECT frame_index, camera, joint, x, y, score FROM keypoints ORDER BY frame_index, camera, joint")
	if err != nil {
		return nil, fmt.Errorf("failed to read keypoints from %s: %v", path, err)
	}
	defer kpRows.Close()
	for kpRows.Next() {
		var key ViewKey
		var joint int
		var x, y, score float64
		if err := kpRows.Scan(&key.Frame, &key.Camera, &joint, &x, &y, &score); err != nil {
			return nil, fmt.Errorf("failed to scan keypoint: %v", err)
		}
		kp, ok := set.Poses[key]
		if !ok || kp == nil {
			return nil, fmt.Errorf("artifact %s: keypoint row for frame %d camera %s without a detected view", path, key.Frame, key.Camera)
		}
		if joint < 0 || joint >= model.NumJoints {
			return nil, fmt.Errorf("artifact %s: joint index %d out of range", path, joint)
		}
		kp[joint] = [3]float64{x, y, score}
	}
	if err := kpRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keypoints from %s: %v", path, err)
	}
	return set, nil
}
