// Package detector defines the face detector boundary: the detection value
// consumed by the session machine, the JSON frame format detectors send, and
// the sources that deliver frames (websocket, MQTT, synthetic).
package detector

import "math"

// Centering window bounds, inclusive, in normalized frame coordinates.
const (
	CenterMin = 0.3
	CenterMax = 0.7
)

// Point is a normalized 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Detection is the result of processing one camera frame. A zero Detection
// is a NoDetection.
type Detection struct {
	Detected bool
	Center   Point // face bounding box center in [0,1]^2
	Gaze     Point // normalized gaze, roughly [-1,1] per axis
	HasGaze  bool  // false when the face was found but no gaze could be derived
}

// NoDetection reports that no face was found in the frame.
func NoDetection() Detection {
	return Detection{}
}

// Detected reports a face centred at center with the given gaze estimate.
func Detected(center Point, gazeX, gazeY float64) Detection {
	return Detection{
		Detected: true,
		Center:   center,
		Gaze:     Point{X: gazeX, Y: gazeY},
		HasGaze:  true,
	}
}

// Centered reports whether the face center lies inside the centering window.
func (d Detection) Centered() bool {
	return d.Detected && Centered(d.Center.X, d.Center.Y)
}

// Kind is a short label used in logs and metrics.
func (d Detection) Kind() string {
	switch {
	case !d.Detected:
		return "none"
	case !d.HasGaze:
		return "face"
	default:
		return "gaze"
	}
}

// Centered tests a normalized face center against the centering window.
func Centered(x, y float64) bool {
	return x >= CenterMin && x <= CenterMax && y >= CenterMin && y <= CenterMax
}
