package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/egopose/internal/storage"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	fs := storage.NewMemoryFileSystem()
	require.NoError(t, fs.WriteFile("/meta.json", []byte(`{
		"take_id": "take001",
		"video_source": "uniandes",
		"ego_id": "aria01",
		"timesync_csv_path": "/captures/uniandes/take001/timesync.csv",
		"videos": [
			{"device_id": "aria01", "device_type": "aria", "is_ego": true, "has_walkaround": true, "source_path": "/v/aria01.vrs"},
			{"device_id": "cam01", "device_type": "gopro", "is_ego": false, "has_walkaround": false, "source_path": "/v/cam01.mp4"},
			{"device_id": "cam02", "device_type": "gopro", "is_ego": false, "has_walkaround": false, "source_path": "/v/cam02.mp4"},
			{"device_id": "mobile01", "device_type": "gopro", "is_ego": false, "has_walkaround": true, "source_path": "/v/mobile01.mp4"}
		]
	}`), 0644))

	m, err := Load(fs, "/meta.json")
	require.NoError(t, err)
	assert.Equal(t, "take001", m.TakeID)
	assert.Equal(t, []string{"cam01", "cam02"}, m.ExoCamNames())

	v, err := m.Video("aria01")
	require.NoError(t, err)
	assert.True(t, v.IsEgo)

	_, err = m.Video("cam99")
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(storage.NewMemoryFileSystem(), "/nope.json")
		assert.Error(t, err)
	})

	t.Run("no videos", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/m.json", []byte(`{"take_id":"t","video_source":"s","videos":[]}`), 0644))
		_, err := Load(fs, "/m.json")
		assert.ErrorContains(t, err, "no videos")
	})

	t.Run("ego id not among videos", func(t *testing.T) {
		t.Parallel()
		fs := storage.NewMemoryFileSystem()
		require.NoError(t, fs.WriteFile("/m.json", []byte(`{
			"take_id":"t","video_source":"s","ego_id":"aria01",
			"videos":[{"device_id":"cam01","device_type":"gopro","source_path":"/v/cam01.mp4"}]
		}`), 0644))
		_, err := Load(fs, "/m.json")
		assert.ErrorContains(t, err, "ego device")
	})
}

func TestInferFromDir(t *testing.T) {
	t.Parallel()

	fs := storage.NewMemoryFileSystem()
	for _, name := range []string{"aria01.vrs", "cam01.mp4", "cam02.mp4", "mobile01.mp4"} {
		require.NoError(t, fs.WriteFile("/captures/uniandes/take001/videos/"+name, nil, 0644))
	}

	m, err := InferFromDir(fs, "/captures/uniandes/take001/")
	require.NoError(t, err)

	assert.Equal(t, "take001", m.TakeID)
	assert.Equal(t, "uniandes", m.VideoSource)
	assert.Equal(t, "aria01", m.EgoID)
	assert.Equal(t, "/captures/uniandes/take001/timesync.csv", m.TimesyncCSVPath)
	assert.Equal(t, []string{"cam01", "cam02"}, m.ExoCamNames())

	aria, err := m.Video("aria01")
	require.NoError(t, err)
	assert.Equal(t, DeviceAria, aria.DeviceType)
	assert.True(t, aria.IsEgo)
	assert.True(t, aria.HasWalkaround)

	mobile, err := m.Video("mobile01")
	require.NoError(t, err)
	assert.Equal(t, DeviceGopro, mobile.DeviceType)
	assert.False(t, mobile.IsEgo)
	assert.True(t, mobile.HasWalkaround)
}
