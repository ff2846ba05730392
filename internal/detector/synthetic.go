package detector

import (
	"context"
	"math"
	"time"

	"github.com/tphakala/okn-go/internal/errors"
)

// SyntheticConfig shapes the generated eye movement.
type SyntheticConfig struct {
	Amplitude float64 // peak horizontal gaze
	Frequency float64 // oscillations per second
	Rate      float64 // detections per second
}

// DefaultSyntheticConfig returns a slow sweep sampled well above the 20 Hz
// sample rate.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{Amplitude: 0.5, Frequency: 0.5, Rate: 60}
}

// SyntheticSource emits a centred face whose horizontal gaze follows a
// sinusoid. It is a development stand-in for a camera detector. Activate
// restarts the waveform at phase zero.
type SyntheticSource struct {
	cfg      SyntheticConfig
	activate chan struct{}
	now      func() time.Time
}

// NewSyntheticSource validates cfg and creates the source.
func NewSyntheticSource(cfg SyntheticConfig) (*SyntheticSource, error) {
	if cfg.Rate <= 0 || math.IsNaN(cfg.Rate) || math.IsInf(cfg.Rate, 0) {
		return nil, errors.Newf("synthetic rate must be positive, got %v", cfg.Rate).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if math.IsNaN(cfg.Amplitude) || math.IsNaN(cfg.Frequency) {
		return nil, errors.Newf("synthetic amplitude and frequency must be numbers").
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &SyntheticSource{
		cfg:      cfg,
		activate: make(chan struct{}, 1),
		now:      time.Now,
	}, nil
}

func (s *SyntheticSource) Name() string { return "synthetic" }

// Activate implements session.Activator. It never blocks.
func (s *SyntheticSource) Activate() {
	select {
	case s.activate <- struct{}{}:
	default:
	}
}

// Sample returns the detection at elapsed time t since activation.
func (s *SyntheticSource) Sample(t time.Duration) Detection {
	x := s.cfg.Amplitude * math.Sin(2*math.Pi*s.cfg.Frequency*t.Seconds())
	return Detected(Point{X: 0.5, Y: 0.5}, x, 0)
}

func (s *SyntheticSource) Run(ctx context.Context, sink Sink) error {
	period := time.Duration(float64(time.Second) / s.cfg.Rate)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log := GetLogger()
	log.Info("synthetic detector source running")

	origin := s.now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.activate:
			origin = s.now()
		case <-ticker.C:
			sink.Submit(s.Sample(s.now().Sub(origin)))
		}
	}
}
