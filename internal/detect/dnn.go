// Package detect wraps a pretrained object-detection network behind the
// pipeline's Detector contract. The concrete backend is the OpenCV DNN
// module loaded through gocv; any SSD-style network whose output rows
// are [batchId, classId, confidence, left, top, right, bottom] with
// normalized coordinates works.
package detect

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/crowdmark/crowdmark/internal/pipeline"
)

// modelStride is the spatial stride multiple the network input must be
// rounded up to when the inference size is derived from the source.
const modelStride = 32

// Config holds detector settings for one run. Immutable after Load.
type Config struct {
	// ModelPath points at the frozen weights file.
	ModelPath string

	// ModelConfigPath points at the network description accompanying
	// the weights (e.g. a .pbtxt). Optional for formats that carry the
	// graph in the weights file.
	ModelConfigPath string

	// ConfThreshold is the minimum score for a detection to be kept,
	// in [0,1].
	ConfThreshold float64

	// InferenceSize is the square input resolution for the network.
	// Zero derives the size from each frame's own dimensions.
	InferenceSize int

	// Device selects the compute backend: auto, cpu, cuda:N or mps.
	Device string

	// PersonClassID is the numeric id of the "person" class in the
	// model's label map (1 for COCO SSD exports).
	PersonClassID int

	// Filter post-processes raw detections before they are returned.
	Filter PostFilter
}

// DNNDetector runs person detection with an OpenCV DNN network.
//
// The forward pass is serialized internally, so a single loaded
// detector may be shared by concurrent pipeline runs.
type DNNDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	cfg    Config
	device Device
	closed bool
}

var _ pipeline.Detector = (*DNNDetector)(nil)

// Load reads the network weights and binds them to the requested
// device. Failures are reported as *pipeline.ModelLoadError.
func Load(cfg Config) (*DNNDetector, error) {
	if cfg.ConfThreshold < 0 || cfg.ConfThreshold > 1 {
		return nil, &pipeline.ModelLoadError{
			Path: cfg.ModelPath,
			Err:  fmt.Errorf("confidence threshold %v outside [0,1]", cfg.ConfThreshold),
		}
	}
	if cfg.InferenceSize < 0 {
		return nil, &pipeline.ModelLoadError{
			Path: cfg.ModelPath,
			Err:  fmt.Errorf("inference size %d must be positive", cfg.InferenceSize),
		}
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, &pipeline.ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	device, err := ResolveDevice(cfg.Device)
	if err != nil {
		return nil, &pipeline.ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ModelConfigPath)
	if net.Empty() {
		return nil, &pipeline.ModelLoadError{
			Path: cfg.ModelPath,
			Err:  errors.New("network is empty after load, unsupported or corrupt model"),
		}
	}
	net.SetPreferableBackend(device.Backend)
	net.SetPreferableTarget(device.Target)

	if cfg.PersonClassID <= 0 {
		cfg.PersonClassID = 1
	}

	return &DNNDetector{net: net, cfg: cfg, device: device}, nil
}

// DeviceName reports the resolved device selector.
func (d *DNNDetector) DeviceName() string {
	return d.device.Name
}

// Detect runs one forward pass over the frame and returns person
// detections in the frame's own pixel space, all scoring at or above
// the configured threshold. Failures are reported as
// *pipeline.InferenceError and leave the detector usable for the next
// frame.
func (d *DNNDetector) Detect(frame *pipeline.Frame) ([]pipeline.Detection, error) {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, &pipeline.InferenceError{Frame: frame.Index, Err: err}
	}
	defer mat.Close()

	// The mat is already RGB, no channel swap needed.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, d.inputSize(frame),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	if out.Empty() {
		return nil, &pipeline.InferenceError{
			Frame: frame.Index,
			Err:   errors.New("forward pass produced no output"),
		}
	}

	dets := d.decode(out, frame.Width(), frame.Height())
	return d.cfg.Filter.Apply(dets, frame.Width(), frame.Height()), nil
}

// Close releases the network. Safe to call more than once.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// inputSize picks the network input resolution for a frame: the
// configured square size, or the frame's own dimensions when deriving
// from the source, both rounded up to the model stride.
func (d *DNNDetector) inputSize(frame *pipeline.Frame) image.Point {
	if d.cfg.InferenceSize > 0 {
		s := roundToStride(d.cfg.InferenceSize)
		return image.Pt(s, s)
	}
	return image.Pt(roundToStride(frame.Width()), roundToStride(frame.Height()))
}

// decode walks the [1,1,N,7] output blob and converts person rows above
// the threshold into detections. Output coordinates are normalized, so
// scaling by the original frame dimensions lands them back in source
// pixel space no matter what resolution the network ran at.
func (d *DNNDetector) decode(out gocv.Mat, width, height int) []pipeline.Detection {
	w, h := float64(width), float64(height)
	var dets []pipeline.Detection
	for i := 0; i+6 < out.Total(); i += 7 {
		score := float64(out.GetFloatAt(0, i+2))
		if score < d.cfg.ConfThreshold {
			continue
		}
		if int(out.GetFloatAt(0, i+1)) != d.cfg.PersonClassID {
			continue
		}
		dets = append(dets, pipeline.Detection{
			X1:    float64(out.GetFloatAt(0, i+3)) * w,
			Y1:    float64(out.GetFloatAt(0, i+4)) * h,
			X2:    float64(out.GetFloatAt(0, i+5)) * w,
			Y2:    float64(out.GetFloatAt(0, i+6)) * h,
			Score: score,
			Label: "person",
		})
	}
	return dets
}

// roundToStride rounds n up to the nearest multiple of the model
// stride.
func roundToStride(n int) int {
	if n <= 0 {
		return modelStride
	}
	if rem := n % modelStride; rem != 0 {
		return n + modelStride - rem
	}
	return n
}
