// Package gain converts a sampled horizontal gaze trace into an OKN gain
// score and a Pass/Caution/Fail classification.
package gain

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	// DefaultSampleInterval is the nominal spacing of gaze samples in seconds.
	DefaultSampleInterval = 0.05

	// StimulusVelocity is the reference stimulus speed in gaze units per second.
	StimulusVelocity = 0.1

	// MinSamples is the smallest trace that is scored. Shorter traces yield
	// the degenerate result.
	MinSamples = 10

	// PassThreshold and CautionThreshold are inclusive lower bounds.
	PassThreshold    = 1.0
	CautionThreshold = 0.75
)

// Bucket is the discretized outcome of a trial.
type Bucket int

const (
	Fail Bucket = iota
	Caution
	Pass
)

type bucketInfo struct {
	name           string
	interpretation string
	advice         string
	color          string
}

var buckets = map[Bucket]bucketInfo{
	Pass:    {"pass", "Unlikely Impaired", "Safe to drive", "green"},
	Caution: {"caution", "Possible Impairment", "Use caution", "orange"},
	Fail:    {"fail", "Likely Impaired", "Do not drive", "red"},
}

func (b Bucket) info() bucketInfo {
	if info, ok := buckets[b]; ok {
		return info
	}
	return buckets[Fail]
}

func (b Bucket) String() string { return b.info().name }

// Interpretation is the headline text shown for the bucket.
func (b Bucket) Interpretation() string { return b.info().interpretation }

// Advice is the second line shown under the interpretation.
func (b Bucket) Advice() string { return b.info().advice }

// Color is a presentation hint.
func (b Bucket) Color() string { return b.info().color }

// MarshalText encodes the bucket as its lowercase name.
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a bucket name.
func (b *Bucket) UnmarshalText(text []byte) error {
	for k, v := range buckets {
		if v.name == string(text) {
			*b = k
			return nil
		}
	}
	return fmt.Errorf("unknown bucket %q", text)
}

// Classify maps a gain onto its bucket.
func Classify(gain float64) Bucket {
	switch {
	case gain >= PassThreshold:
		return Pass
	case gain >= CautionThreshold:
		return Caution
	default:
		return Fail
	}
}

// Result is the immutable outcome of scoring one trial.
type Result struct {
	Gain           float64
	Bucket         Bucket
	Interpretation string
	Advice         string
	MeanVelocity   float64
	Samples        int
}

type resultJSON struct {
	Gain           float64 `json:"gain"`
	Bucket         Bucket  `json:"bucket"`
	Interpretation string  `json:"interpretation"`
	Advice         string  `json:"advice"`
	Color          string  `json:"color"`
	MeanVelocity   float64 `json:"meanVelocity"`
	Samples        int     `json:"samples"`
}

// MarshalJSON adds the presentation colour to the encoded result.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Gain:           r.Gain,
		Bucket:         r.Bucket,
		Interpretation: r.Interpretation,
		Advice:         r.Advice,
		Color:          r.Bucket.Color(),
		MeanVelocity:   r.MeanVelocity,
		Samples:        r.Samples,
	})
}

// UnmarshalJSON decodes a result; the colour is derived from the bucket.
func (r *Result) UnmarshalJSON(data []byte) error {
	var v resultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Result{
		Gain:           v.Gain,
		Bucket:         v.Bucket,
		Interpretation: v.Interpretation,
		Advice:         v.Advice,
		MeanVelocity:   v.MeanVelocity,
		Samples:        v.Samples,
	}
	return nil
}

func newResult(gain, meanVelocity float64, samples int) Result {
	b := Classify(gain)
	return Result{
		Gain:           gain,
		Bucket:         b,
		Interpretation: b.Interpretation(),
		Advice:         b.Advice(),
		MeanVelocity:   meanVelocity,
		Samples:        samples,
	}
}

// Estimate scores a horizontal gaze trace sampled every sampleInterval
// seconds. The vertical channel is never scored.
//
// The trace is differentiated with forward differences, the velocities are
// averaged, and the gain is |mean / StimulusVelocity|. Inputs that cannot
// produce a velocity estimate return gain 0 in the Fail bucket. Estimate is
// pure: it never modifies gazeX.
func Estimate(gazeX []float64, sampleInterval float64) Result {
	n := len(gazeX)
	if n < MinSamples || sampleInterval <= 0 || math.IsNaN(sampleInterval) {
		return newResult(0, 0, n)
	}

	velocities := n - 1
	if velocities == 0 {
		return newResult(0, 0, n)
	}

	var sum float64
	for i := 1; i < n; i++ {
		sum += (gazeX[i] - gazeX[i-1]) / sampleInterval
	}
	mean := sum / float64(velocities)

	g := math.Abs(mean / StimulusVelocity)
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return newResult(0, 0, n)
	}

	return newResult(g, mean, n)
}
