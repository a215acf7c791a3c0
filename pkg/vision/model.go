package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ModelDetector runs a YOLOv8-format ONNX model trained on opponent robots
// and returns the most confident box of any class.
type ModelDetector struct {
	net        gocv.Net
	confidence float32
	nms        float32
	inputSize  image.Point

	mu sync.Mutex // Protects inference
}

// NewModelDetector loads the ONNX model named in cfg
func NewModelDetector(cfg Config) (*ModelDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ModelDetector{
		net:        net,
		confidence: cfg.ConfidenceThresh,
		nms:        cfg.NMSThresh,
		inputSize:  image.Pt(cfg.InputSize, cfg.InputSize),
	}, nil
}

// Detect runs one forward pass
func (d *ModelDetector) Detect(img gocv.Mat) (Detection, bool, error) {
	if img.Empty() {
		return Detection{}, false, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.parse(output, float32(img.Cols()), float32(img.Rows()))
}

// parse reads a [1, 4+classes, anchors] tensor: per anchor cx, cy, w, h in
// input pixels followed by one score per class.
func (d *ModelDetector) parse(output gocv.Mat, imgW, imgH float32) (Detection, bool, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return Detection{}, false, fmt.Errorf("unexpected model output shape %v", dims)
	}
	attrs, anchors := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return Detection{}, false, fmt.Errorf("read model output: %w", err)
	}

	sx := imgW / float32(d.inputSize.X)
	sy := imgH / float32(d.inputSize.Y)

	var boxes []image.Rectangle
	var scores []float32
	for i := 0; i < anchors; i++ {
		best := float32(0)
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
			}
		}
		if best < d.confidence {
			continue
		}

		cx, cy := data[i], data[anchors+i]
		w, h := data[2*anchors+i], data[3*anchors+i]
		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
	}
	if len(boxes) == 0 {
		return Detection{}, false, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, d.confidence, d.nms)
	if len(indices) == 0 {
		return Detection{}, false, nil
	}
	best := indices[0]
	for _, idx := range indices[1:] {
		if scores[idx] > scores[best] {
			best = idx
		}
	}

	box := boxes[best]
	return Detection{
		Box:        box,
		Area:       float64(box.Dx() * box.Dy()),
		Confidence: float64(scores[best]),
	}, true, nil
}

// Close releases the network
func (d *ModelDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
