package vis

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/egopose/internal/artifact"
	"github.com/banshee-data/egopose/internal/storage"
)

// SaveCoverageReport renders an HTML bar chart of detection coverage per
// camera: how many frames got a box versus how many came back absent. It is
// the quick answer to "which camera is the proposal geometry failing for".
func SaveCoverageReport(fs storage.FileSystem, path string, set *artifact.BBoxSet) error {
	detected := make(map[string]int)
	absent := make(map[string]int)
	for key, box := range set.Boxes {
		if box != nil {
			detected[key.Camera]++
		} else {
			absent[key.Camera]++
		}
	}

	cameras := make([]string, 0, len(detected)+len(absent))
	seen := make(map[string]bool)
	for key := range set.Boxes {
		if !seen[key.Camera] {
			seen[key.Camera] = true
			cameras = append(cameras, key.Camera)
		}
	}
	sort.Strings(cameras)
	if len(cameras) == 0 {
		return fmt.Errorf("no detection results to report")
	}

	detectedData := make([]opts.BarData, len(cameras))
	absentData := make([]opts.BarData, len(cameras))
	for i, cam := range cameras {
		detectedData[i] = opts.BarData{Value: detected[cam]}
		absentData[i] = opts.BarData{Value: absent[cam]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Detection coverage", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Detection coverage per camera",
			Subtitle: fmt.Sprintf("run %s", set.Info.RunID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(cameras).
		AddSeries("detected", detectedData).
		AddSeries("absent", absentData)

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer f.Close()

	if err := bar.Render(f); err != nil {
		return fmt.Errorf("rendering coverage report: %w", err)
	}
	return nil
}
