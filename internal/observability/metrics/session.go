package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics contains Prometheus metrics for the session machine.
// It satisfies session.Recorder and events.DropRecorder.
type SessionMetrics struct {
	Transitions      *prometheus.CounterVec
	TrialsCompleted  *prometheus.CounterVec
	Samples          prometheus.Counter
	TrialSamples     prometheus.Histogram
	StaleTicks       *prometheus.CounterVec
	RejectedCommands *prometheus.CounterVec
	DetectorUpdates  *prometheus.CounterVec
	DroppedUpdates   prometheus.Counter
	EventsDropped    prometheus.Counter
	Gain             prometheus.Histogram
}

// NewSessionMetrics creates and registers session metrics.
func NewSessionMetrics(registry prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}
	return m, nil
}

func (m *SessionMetrics) initMetrics() {
	m.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "phase_transitions_total",
		Help:      "Phase transitions by source and target phase",
	}, []string{"from", "to"})

	m.TrialsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "trials_completed_total",
		Help:      "Completed trials by outcome bucket",
	}, []string{"bucket"})

	m.Samples = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "samples_total",
		Help:      "Gaze samples appended to trials",
	})

	m.TrialSamples = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "trial_samples",
		Help:      "Number of samples per completed trial",
		Buckets:   []float64{10, 50, 100, 150, 190, 195, 200},
	})

	m.StaleTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "stale_ticks_total",
		Help:      "Timer ticks discarded because their trial had ended",
	}, []string{"kind"})

	m.RejectedCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "rejected_commands_total",
		Help:      "Commands rejected by the phase machine",
	}, []string{"command"})

	m.DetectorUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "detector",
		Name:      "updates_total",
		Help:      "Detector updates applied by kind (none, face, gaze)",
	}, []string{"kind"})

	m.DroppedUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "detector",
		Name:      "dropped_updates_total",
		Help:      "Detector updates dropped because the session inbox was full",
	})

	m.EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "State events dropped because the event bus buffer was full",
	})

	m.Gain = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "session",
		Name:      "gain",
		Help:      "OKN gain of completed trials",
		Buckets:   gainBuckets,
	})
}

func (m *SessionMetrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *SessionMetrics) RecordTrialCompleted(bucket string, gain float64, samples int) {
	m.TrialsCompleted.WithLabelValues(bucket).Inc()
	m.Gain.Observe(gain)
	m.TrialSamples.Observe(float64(samples))
}

func (m *SessionMetrics) RecordSample() {
	m.Samples.Inc()
}

func (m *SessionMetrics) RecordStaleTick(kind string) {
	m.StaleTicks.WithLabelValues(kind).Inc()
}

func (m *SessionMetrics) RecordRejectedCommand(command string) {
	m.RejectedCommands.WithLabelValues(command).Inc()
}

func (m *SessionMetrics) RecordDetectorUpdate(kind string) {
	m.DetectorUpdates.WithLabelValues(kind).Inc()
}

func (m *SessionMetrics) RecordDroppedUpdate() {
	m.DroppedUpdates.Inc()
}

func (m *SessionMetrics) RecordEventDropped() {
	m.EventsDropped.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *SessionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Transitions.Collect(ch)
	m.TrialsCompleted.Collect(ch)
	ch <- m.Samples
	ch <- m.TrialSamples
	m.StaleTicks.Collect(ch)
	m.RejectedCommands.Collect(ch)
	m.DetectorUpdates.Collect(ch)
	ch <- m.DroppedUpdates
	ch <- m.EventsDropped
	ch <- m.Gain
}

// Describe implements the prometheus.Collector interface.
func (m *SessionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Transitions.Describe(ch)
	m.TrialsCompleted.Describe(ch)
	ch <- m.Samples.Desc()
	ch <- m.TrialSamples.Desc()
	m.StaleTicks.Describe(ch)
	m.RejectedCommands.Describe(ch)
	m.DetectorUpdates.Describe(ch)
	ch <- m.DroppedUpdates.Desc()
	ch <- m.EventsDropped.Desc()
	ch <- m.Gain.Desc()
}
