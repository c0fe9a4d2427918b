package dataset

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/egopose/internal/camera"
	"github.com/banshee-data/egopose/internal/storage"
)

func sampleTable() *Table {
	t0 := 0.033
	return &Table{
		CacheDir:   "/cache/cmu_bike_uni01",
		DatasetDir: "/cache/cmu_bike_uni01/dataset",
		Frames: []FrameRecord{
			{
				"aria_rgb": ViewEntry{
					FramePath:   "aria01/214-1/214-1-00001-0.033.jpg",
					FrameNumber: 1,
					Timestamp:   &t0,
					Camera:      camera.Data{Name: "aria_rgb", Kind: "aria", Width: 1408, Height: 1408, Fx: 610, Fy: 610, Cx: 704, Cy: 704, Qw: 1},
					Raw:         map[string]string{"tracking_timestamp_us": "30000"},
				},
				"cam01": ViewEntry{
					FramePath:   "cam01/000011.jpg",
					FrameNumber: 11,
					Camera:      camera.Data{Name: "cam01", Kind: "gopro", Width: 1920, Height: 1080, Fx: 1000, Fy: 1000, Cx: 960, Cy: 540, Qw: 1, Tz: 2},
				},
			},
		},
	}
}

func TestTableRoundTrip(t *testing.T) {
	t.Parallel()

	fs := storage.NewMemoryFileSystem()
	want := sampleTable()
	require.NoError(t, want.Save(fs, "/cache/data.json"))

	got, err := LoadTable(fs, "/cache/data.json")
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table changed across save/load (-want +got):\n%s", diff)
	}
}

func TestTableSaveCommitsAtomically(t *testing.T) {
	t.Parallel()

	fs := storage.NewMemoryFileSystem()
	tbl := sampleTable()

	// A stale temp file from an interrupted run must not survive a save.
	require.NoError(t, fs.WriteFile("/cache/data.json.tmp", []byte("{garbage"), 0644))

	require.NoError(t, tbl.Save(fs, "/cache/data.json"))
	assert.False(t, fs.Exists("/cache/data.json.tmp"), "temp file left behind after save")

	got, err := LoadTable(fs, "/cache/data.json")
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), got.Len())
}

func TestLoadTableValidation(t *testing.T) {
	t.Parallel()

	t.Run("empty table", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		empty := &Table{CacheDir: "/cache", DatasetDir: "/cache/dataset"}
		require.NoError(t, empty.Save(fs, "/cache/data.json"))
		_, err := LoadTable(fs, "/cache/data.json")
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("uneven records", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		tbl := sampleTable()
		rec := FrameRecord{"cam01": tbl.Frames[0]["cam01"]}
		tbl.Frames = append(tbl.Frames, rec)
		require.NoError(t, tbl.Save(fs, "/cache/data.json"))
		_, err := LoadTable(fs, "/cache/data.json")
		assert.ErrorContains(t, err, "missing stream")
	})

	t.Run("extra stream in later record", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		tbl := sampleTable()
		rec := FrameRecord{}
		for name, entry := range tbl.Frames[0] {
			rec[name] = entry
		}
		rec["cam99"] = tbl.Frames[0]["cam01"]
		tbl.Frames = append(tbl.Frames, rec)
		require.NoError(t, tbl.Save(fs, "/cache/data.json"))
		_, err := LoadTable(fs, "/cache/data.json")
		assert.ErrorContains(t, err, "record 1 has 3 streams")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		_, err := LoadTable(fs, "/cache/data.json")
		assert.Error(t, err)
	})
}
