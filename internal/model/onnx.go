package model

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"github.com/banshee-data/egopose/internal/geom"
)

// ImageNet channel statistics used by both exported models.
var (
	rgbMean = [3]float32{123.675, 116.28, 103.53}
	rgbStd  = [3]float32{58.395, 57.12, 57.375}
)

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %v", err)
	}
	return nil
}

func newSessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %v", err)
	}
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("failed to set graph optimization: %v", err)
	}
	if err := opts.SetIntraOpNumThreads(0); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("failed to set thread count: %v", err)
	}
	return opts, nil
}

// ONNXDetector runs an exported person detector over the seed region. The
// model follows the common detection export convention: one image input, a
// dets output of (x1, y1, x2, y2, score) rows and a labels output with class
// indices, person = 0.
type ONNXDetector struct {
	session        *ort.DynamicAdvancedSession
	inputW, inputH int
	scoreThreshold float32
}

// NewONNXDetector loads a detector model. libPath may be empty when the
// onnxruntime shared library is already on the loader path.
func NewONNXDetector(modelPath, libPath string) (*ONNXDetector, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}
	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"dets", "labels"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load detector %s: %v", modelPath, err)
	}
	return &ONNXDetector{
		session:        session,
		inputW:         800,
		inputH:         800,
		scoreThreshold: 0.5,
	}, nil
}

func (d *ONNXDetector) Close() error {
	return d.session.Destroy()
}

// DetectPerson crops the seed region, runs the detector on it, and returns
// the highest-scoring person box mapped back to full-image coordinates. Nil
// with nil error when nothing clears the score threshold.
func (d *ONNXDetector) DetectPerson(img image.Image, seed geom.BBox) (*geom.BBox, error) {
	crop := cropImage(img, seed)
	data, err := imageToTensor(crop, d.inputW, d.inputH)
	if err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(d.inputH), int64(d.inputW)), data)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector input: %v", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("detector inference failed: %v", err)
	}
	for _, out := range outputs {
		defer out.Destroy()
	}

	dets, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("detector dets output has unexpected type %T", outputs[0])
	}
	labels, ok := outputs[1].(*ort.Tensor[int64])
	if !ok {
		return nil, fmt.Errorf("detector labels output has unexpected type %T", outputs[1])
	}

	detData := dets.GetData()
	labelData := labels.GetData()
	n := len(detData) / 5
	if len(labelData) < n {
		n = len(labelData)
	}

	best := -1
	var bestScore float32
	for i := 0; i < n; i++ {
		if labelData[i] != 0 {
			continue
		}
		if score := detData[i*5+4]; score >= d.scoreThreshold && score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return nil, nil
	}

	// Map from detector input space back through the resize and crop.
	sx := float64(crop.Bounds().Dx()) / float64(d.inputW)
	sy := float64(crop.Bounds().Dy()) / float64(d.inputH)
	return &geom.BBox{
		X1: seed.X1 + int(math.Round(float64(detData[best*5+0])*sx)),
		Y1: seed.Y1 + int(math.Round(float64(detData[best*5+1])*sy)),
		X2: seed.X1 + int(math.Round(float64(detData[best*5+2])*sx)),
		Y2: seed.Y1 + int(math.Round(float64(detData[best*5+3])*sy)),
	}, nil
}

// Pose model input and heatmap geometry, the usual top-down export layout.
const (
	poseInputW   = 192
	poseInputH   = 256
	poseHeatmapW = 48
	poseHeatmapH = 64
)

// ONNXPoseEstimator runs an exported top-down pose model over a detection
// box. The model takes one cropped image input and emits per-joint heatmaps.
type ONNXPoseEstimator struct {
	session *ort.DynamicAdvancedSession
}

func NewONNXPoseEstimator(modelPath, libPath string) (*ONNXPoseEstimator, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}
	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"output"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load pose model %s: %v", modelPath, err)
	}
	return &ONNXPoseEstimator{session: session}, nil
}

func (p *ONNXPoseEstimator) Close() error {
	return p.session.Destroy()
}

// EstimatePose crops the box, runs the pose model, and decodes each joint
// from the argmax of its heatmap, mapped back to full-image coordinates.
func (p *ONNXPoseEstimator) EstimatePose(img image.Image, box geom.BBox) (*Keypoints, error) {
	crop := cropImage(img, box)
	data, err := imageToTensor(crop, poseInputW, poseInputH)
	if err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(1, 3, poseInputH, poseInputW), data)
	if err != nil {
		return nil, fmt.Errorf("failed to build pose input: %v", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("pose inference failed: %v", err)
	}
	defer outputs[0].Destroy()

	heatmaps, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("pose output has unexpected type %T", outputs[0])
	}
	hm := heatmaps.GetData()
	if len(hm) < NumJoints*poseHeatmapH*poseHeatmapW {
		return nil, fmt.Errorf("pose output too small: %d values", len(hm))
	}

	sx := float64(crop.Bounds().Dx()) / poseHeatmapW
	sy := float64(crop.Bounds().Dy()) / poseHeatmapH

	var kp Keypoints
	for j := 0; j < NumJoints; j++ {
		plane := hm[j*poseHeatmapH*poseHeatmapW : (j+1)*poseHeatmapH*poseHeatmapW]
		bestIdx := 0
		bestVal := plane[0]
		for i, v := range plane {
			if v > bestVal {
				bestIdx = i
				bestVal = v
			}
		}
		hx := bestIdx % poseHeatmapW
		hy := bestIdx / poseHeatmapW
		kp[j] = [3]float64{
			float64(box.X1) + (float64(hx)+0.5)*sx,
			float64(box.Y1) + (float64(hy)+0.5)*sy,
			float64(bestVal),
		}
	}
	return &kp, nil
}

// cropImage extracts the box region clamped to the image bounds.
func cropImage(img image.Image, box geom.BBox) *image.RGBA {
	b := img.Bounds()
	x1 := clampInt(box.X1+b.Min.X, b.Min.X, b.Max.X-1)
	y1 := clampInt(box.Y1+b.Min.Y, b.Min.Y, b.Max.Y-1)
	x2 := clampInt(box.X2+b.Min.X, x1+1, b.Max.X)
	y2 := clampInt(box.Y2+b.Min.Y, y1+1, b.Max.Y)

	out := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Draw(out, out.Bounds(), img, image.Pt(x1, y1), draw.Src)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// imageToTensor resizes to the model input size and packs NCHW float32 with
// ImageNet normalization.
func imageToTensor(img image.Image, w, h int) ([]float32, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid tensor size %dx%d", w, h)
	}
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := resized.PixOffset(x, y)
			r := float32(resized.Pix[i])
			g := float32(resized.Pix[i+1])
			b := float32(resized.Pix[i+2])
			data[0*plane+y*w+x] = (r - rgbMean[0]) / rgbStd[0]
			data[1*plane+y*w+x] = (g - rgbMean[1]) / rgbStd[1]
			data[2*plane+y*w+x] = (b - rgbMean[2]) / rgbStd[2]
		}
	}
	return data, nil
}
