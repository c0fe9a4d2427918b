// Package artifact persists per-stage results as self-describing SQLite
// files. Each store carries a run_info row (run id, stage, schema version)
// alongside its result table, and is committed atomically: the database is
// built at a temporary path and renamed into place only after every row is
// written, so a crashed stage never leaves a partial artifact behind.
package artifact

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is written into every artifact and checked on read.
const SchemaVersion = 1

// Stage names recorded in run_info.
const (
	StageBBox   = "bbox"
	StagePose2D = "pose2d"
	StagePose3D = "pose3d"
)

// Meta identifies the stage run that produced an artifact. CreatedAt is
// supplied by the caller so that identical inputs can produce identical
// artifact bytes.
type Meta struct {
	RunID     string
	CreatedAt time.Time
}

// RunInfo is the provenance row read back from an artifact.
type RunInfo struct {
	RunID         string
	Stage         string
	SchemaVersion int
	CreatedAt     time.Time
}

// ViewKey addresses one (frame, camera) cell of a stage table.
type ViewKey struct {
	Frame  int
	Camera string
}

const runInfoSchema = `
	CREATE TABLE run_info (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
`

// createStore opens a fresh database at path+".tmp" and writes the common
// run_info row. The caller execs its stage schema, fills its tables, and
// finishes with commitStore or discardStore.
func createStore(path, stage string, meta Meta) (*sql.DB, string, error) {
	tmp := path + ".tmp"
	// A leftover tmp file from a crashed run must not leak rows into this one.
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to clear stale artifact %s: %v", tmp, err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create artifact %s: %v", tmp, err)
	}
	if _, err := db.Exec(runInfoSchema); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to initialize artifact schema: %v", err)
	}
	_, err = db.Exec(
		"INSERT INTO run_info (id, run_id, stage, schema_version, created_at) VALUES (1, ?, ?, ?, ?)",
		meta.RunID, stage, SchemaVersion, meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to record run info: %v", err)
	}
	return db, tmp, nil
}

// commitStore closes the database and renames it into place.
func commitStore(db *sql.DB, tmp, path string) error {
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close artifact %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit artifact %s: %v", path, err)
	}
	return nil
}

// discardStore abandons a partially-written database.
func discardStore(db *sql.DB, tmp string) {
	db.Close()
	os.Remove(tmp)
}

// openStore opens an existing artifact and verifies its run_info row. A
// missing file surfaces as fs.ErrNotExist so callers can tell "stage never
// ran" apart from a corrupt store.
func openStore(path, stage string) (*sql.DB, RunInfo, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, RunInfo{}, fmt.Errorf("artifact %s: %w", path, fs.ErrNotExist)
		}
		return nil, RunInfo{}, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, RunInfo{}, fmt.Errorf("failed to open artifact %s: %v", path, err)
	}

	var info RunInfo
	var createdAt string
	row := db.QueryRow("SELECT run_id, stage, schema_version, created_at FROM run_info WHERE id = 1")
	if err := row.Scan(&info.RunID, &info.Stage, &info.SchemaVersion, &createdAt); err != nil {
		db.Close()
		return nil, RunInfo{}, fmt.Errorf("artifact %s has no run info: %v", path, err)
	}
	if info.Stage != stage {
		db.Close()
		return nil, RunInfo{}, fmt.Errorf("artifact %s was written by stage %q, expected %q", path, info.Stage, stage)
	}
	if info.SchemaVersion != SchemaVersion {
		db.Close()
		return nil, RunInfo{}, fmt.Errorf("artifact %s has schema version %d, expected %d", path, info.SchemaVersion, SchemaVersion)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		info.CreatedAt = t
	}
	return db, info, nil
}
