package artifact

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/banshee-data/egopose/internal/geom"
)

// BBoxSet is the bbox stage artifact: one cell per processed (frame, camera),
// nil when the detector found nothing there.
type BBoxSet struct {
	Info  RunInfo
	Boxes map[ViewKey]*geom.BBox
}

// Box returns the detection for one cell. The second result reports whether
// the cell was processed at all; a processed cell may still hold nil.
func (s *BBoxSet) Box(frame int, camera string) (*geom.BBox, bool) {
	box, ok := s.Boxes[ViewKey{Frame: frame, Camera: camera}]
	return box, ok
}

const bboxSchema = `
	CREATE TABLE bboxes (
		frame_index INTEGER NOT NULL,
		camera TEXT NOT NULL,
		x1 INTEGER,
		y1 INTEGER,
		x2 INTEGER,
		y2 INTEGER,
		PRIMARY KEY (frame_index, camera)
	);
`

// WriteBBoxes commits the bbox stage artifact. Rows are inserted in
// (frame, camera) order so identical inputs produce identical files.
func WriteBBoxes(path string, meta Meta, boxes map[ViewKey]*geom.BBox) error {
	db, tmp, err := createStore(path, StageBBox, meta)
	if err != nil {
		return err
	}
	if _, err := db.Exec(bboxSchema); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to initialize bbox schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to begin bbox write: %v", err)
	}
	stmt, err := tx.Prepare("INSERT INTO bboxes (frame_index, camera, x1, y1, x2, y2) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to prepare bbox insert: %v", err)
	}

	for _, key := range sortedViewKeys(boxes) {
		var x1, y1, x2, y2 interface{}
		if box := boxes[key]; box != nil {
			x1, y1, x2, y2 = box.X1, box.Y1, box.X2, box.Y2
		}
		if _, err := stmt.Exec(key.Frame, key.Camera, x1, y1, x2, y2); err != nil {
			discardStore(db, tmp)
			return fmt.Errorf("failed to insert bbox for frame %d camera %s: %v", key.Frame, key.Camera, err)
		}
	}
	if err := tx.Commit(); err != nil {
		discardStore(db, tmp)
		return fmt.Errorf("failed to commit bbox rows: %v", err)
	}
	return commitStore(db, tmp, path)
}

// ReadBBoxes loads a bbox artifact. A missing file wraps fs.ErrNotExist.
func ReadBBoxes(path string) (*BBoxSet, error) {
	db, info, err := openStore(path, StageBBox)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT frame_index, camera, x1, y1, x2, y2 FROM bboxes ORDER BY frame_index, camera")
	if err != nil {
		return nil, fmt.Errorf("failed to read bboxes from %s: %v", path, err)
	}
	defer rows.Close()

	set := &BBoxSet{Info: info, Boxes: make(map[ViewKey]*geom.BBox)}
	for rows.Next() {
		var key ViewKey
		var x1, y1, x2, y2 sql.NullInt64
		if err := rows.Scan(&key.Frame, &key.Camera, &x1, &y1, &x2, &y2); err != nil {
			return nil, fmt.Errorf("failed to scan bbox row: %v", err)
		}
		var box *geom.BBox
		if x1.Valid {
			box = &geom.BBox{X1: int(x1.Int64), Y1: int(y1.Int64), X2: int(x2.Int64), Y2: int(y2.Int64)}
		}
		set.Boxes[key] = box
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bboxes from %s: %v", path, err)
	}
	return set, nil
}

func sortedViewKeys[V any](m map[ViewKey]V) []ViewKey {
	keys := make([]ViewKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Frame != keys[j].Frame {
			return keys[i].Frame < keys[j].Frame
		}
		return keys[i].Camera < keys[j].Camera
	})
	return keys
}
