// Package stimulus describes the moving stripe pattern shown during the
// stimulus phase. Presentation layers render from the Descriptor; scoring
// never reads it.
package stimulus

import (
	"math"
	"time"
)

// Stripe geometry in points and sweep timing.
const (
	StripeWidth = 44.0
	StripeGap   = 44.0
	Period      = StripeWidth + StripeGap

	// PeriodDuration is the time to translate the pattern by one Period.
	PeriodDuration = 2 * time.Second
)

// Direction of stripe motion.
type Direction string

const (
	RightToLeft Direction = "right-to-left"
)

// Descriptor is the read-only stripe description served to presentation.
type Descriptor struct {
	StripeWidth    float64   `json:"stripeWidth"`
	StripeGap      float64   `json:"stripeGap"`
	Period         float64   `json:"period"`
	PeriodSeconds  float64   `json:"periodSeconds"`
	Direction      Direction `json:"direction"`
	SpeedPerSecond float64   `json:"speedPerSecond"`
}

// Default returns the descriptor of the standard pattern.
func Default() Descriptor {
	return Descriptor{
		StripeWidth:    StripeWidth,
		StripeGap:      StripeGap,
		Period:         Period,
		PeriodSeconds:  PeriodDuration.Seconds(),
		Direction:      RightToLeft,
		SpeedPerSecond: Period / PeriodDuration.Seconds(),
	}
}

// Offset returns the horizontal translation of the pattern after elapsed,
// in (-Period, 0]. The pattern repeats every PeriodDuration, moving left.
func Offset(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	frac := float64(elapsed%PeriodDuration) / float64(PeriodDuration)
	if frac == 0 {
		return 0
	}
	return -frac * Period
}

// StripeCount returns how many stripes cover width, including one extra so
// the pattern wraps without a visible gap.
func StripeCount(width float64) int {
	if width <= 0 {
		return 0
	}
	return int(math.Ceil(width/Period)) + 1
}
