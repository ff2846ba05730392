package detector

import (
	"encoding/json"
	"fmt"

	"github.com/tphakala/okn-go/internal/errors"
)

// Frame is the JSON wire form of one detector result. Detectors send either
// a gaze estimate or raw eye landmarks; gaze wins when both are present.
//
//	{"detected":true,"center":{"x":0.5,"y":0.48},"gaze":{"x":-0.12,"y":0.03}}
//	{"detected":false}
type Frame struct {
	Detected  bool       `json:"detected"`
	Center    *Point     `json:"center,omitempty"`
	Gaze      *Point     `json:"gaze,omitempty"`
	Landmarks *Landmarks `json:"landmarks,omitempty"`
}

// FrameFromDetection encodes a Detection in wire form.
func FrameFromDetection(d Detection) Frame {
	if !d.Detected {
		return Frame{}
	}
	center := d.Center
	f := Frame{Detected: true, Center: &center}
	if d.HasGaze {
		gaze := d.Gaze
		f.Gaze = &gaze
	}
	return f
}

// Detection validates the frame and converts it.
func (f Frame) Detection() (Detection, error) {
	if !f.Detected {
		return NoDetection(), nil
	}
	if f.Center == nil {
		return Detection{}, invalidFrame("detected frame without center")
	}
	if !f.Center.finite() {
		return Detection{}, invalidFrame("center is not finite")
	}

	d := Detection{Detected: true, Center: *f.Center}

	switch {
	case f.Gaze != nil:
		if !f.Gaze.finite() {
			return Detection{}, invalidFrame("gaze is not finite")
		}
		d.Gaze = *f.Gaze
		d.HasGaze = true
	case f.Landmarks != nil:
		if x, y, ok := GazeFromLandmarks(*f.Landmarks); ok {
			d.Gaze = Point{X: x, Y: y}
			d.HasGaze = true
		}
	}

	return d, nil
}

// DecodeFrame parses a JSON frame into a Detection.
func DecodeFrame(data []byte) (Detection, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Detection{}, errors.New(fmt.Errorf("decode detector frame: %w", err)).
			Component("detector").
			Category(errors.CategoryValidation).
			Context("bytes", len(data)).
			Build()
	}
	return f.Detection()
}

func invalidFrame(reason string) error {
	return errors.Newf("invalid detector frame: %s", reason).
		Component("detector").
		Category(errors.CategoryValidation).
		Build()
}
