package vision

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
)

// MaskVerdict is the tri-state outcome of a mask check. NoFace means the
// frame carried no detectable face at all and the caller should move on to
// the next frame.
type MaskVerdict int

const (
	MaskNoFace MaskVerdict = iota
	MaskPresent
	MaskAbsent
)

func (v MaskVerdict) String() string {
	switch v {
	case MaskPresent:
		return "present"
	case MaskAbsent:
		return "absent"
	default:
		return "no_face"
	}
}

// MaskClassifier runs the two-stage mask check: locate the most confident
// face region, then classify the crop with a binary mask net. Only the
// primary face is considered; multi-face frames are not specially handled.
type MaskClassifier struct {
	detector     *Detector
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

// NewMaskClassifier loads the binary mask ONNX model. The detector is
// shared with the matcher and not owned by the classifier.
func NewMaskClassifier(modelPath string, detector *Detector) (*MaskClassifier, error) {
	inputW, inputH := 224, 224

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Output: [1, 2] — [mask_prob, no_mask_prob]
	outputShape := ort.NewShape(1, 2)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input_1"},
		[]string{"dense_1"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create mask session: %w", err)
	}

	return &MaskClassifier{
		detector:     detector,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Classify reports whether the primary face in img wears a mask.
func (m *MaskClassifier) Classify(img image.Image) (MaskVerdict, error) {
	bounds := img.Bounds()
	detInput := preprocessForDetection(img, m.detector.inputW, m.detector.inputH)

	face, err := m.detector.PrimaryFace(detInput, bounds.Dx(), bounds.Dy())
	if err != nil {
		return MaskNoFace, fmt.Errorf("detect face: %w", err)
	}
	if face == nil {
		return MaskNoFace, nil
	}

	crop := cropFace(img, face.BBox)
	if crop == nil {
		return MaskNoFace, nil
	}

	copy(m.inputTensor.GetData(), preprocessForMask(crop, m.inputW, m.inputH))

	if err := m.session.Run(); err != nil {
		return MaskNoFace, fmt.Errorf("run mask net: %w", err)
	}

	out := m.outputTensor.GetData()
	if len(out) < 2 {
		return MaskNoFace, fmt.Errorf("unexpected output size: %d", len(out))
	}

	if out[0] > out[1] {
		return MaskPresent, nil
	}
	return MaskAbsent, nil
}

func (m *MaskClassifier) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
}
