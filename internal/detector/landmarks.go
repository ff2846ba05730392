package detector

// Landmarks holds the eye outline and pupil landmarks of one face, in
// normalized image coordinates.
type Landmarks struct {
	LeftEye    []Point `json:"leftEye"`
	RightEye   []Point `json:"rightEye"`
	LeftPupil  *Point  `json:"leftPupil"`
	RightPupil *Point  `json:"rightPupil"`
}

// GazeFromLandmarks derives a gaze estimate from eye landmarks.
//
// Horizontal gaze is the pupil position within each eye's horizontal extent,
// mapped to [-1, 1] and averaged over both eyes. Vertical gaze is the mean
// pupil height mapped from [0, 1] to [-1, 1]. ok is false when a landmark
// set is missing, an eye outline has zero width, or the result is not finite.
func GazeFromLandmarks(l Landmarks) (x, y float64, ok bool) {
	if l.LeftPupil == nil || l.RightPupil == nil || len(l.LeftEye) == 0 || len(l.RightEye) == 0 {
		return 0, 0, false
	}

	left, ok := eyeOffset(l.LeftEye, l.LeftPupil.X)
	if !ok {
		return 0, 0, false
	}
	right, ok := eyeOffset(l.RightEye, l.RightPupil.X)
	if !ok {
		return 0, 0, false
	}

	g := Point{X: (left + right) / 2, Y: (l.LeftPupil.Y+l.RightPupil.Y)/2*2 - 1}
	if !g.finite() {
		return 0, 0, false
	}
	return g.X, g.Y, true
}

func eyeOffset(outline []Point, pupilX float64) (float64, bool) {
	minX, maxX := outline[0].X, outline[0].X
	for _, p := range outline[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
	}
	span := maxX - minX
	if span <= 0 {
		return 0, false
	}
	return (pupilX-minX)/span*2 - 1, true
}
