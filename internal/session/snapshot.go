package session

import (
	"time"

	"github.com/tphakala/okn-go/internal/gain"
)

// Snapshot is the observable session state handed to presentation. It is a
// value copy; holding one never blocks the machine.
type Snapshot struct {
	Sequence      uint64       `json:"sequence"`
	Phase         Phase        `json:"phase"`
	FaceDetected  bool         `json:"faceDetected"`
	FaceCentered  bool         `json:"faceCentered"`
	GazeX         float64      `json:"gazeX"`
	GazeY         float64      `json:"gazeY"`
	TimeRemaining int          `json:"timeRemaining"`
	Orientation   Orientation  `json:"orientation"`
	TrialID       string       `json:"trialId,omitempty"`
	Samples       int          `json:"samples"`
	Result        *gain.Result `json:"result"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// ChangeKind classifies what changed between two published snapshots.
type ChangeKind string

const (
	ChangePhase     ChangeKind = "phase"
	ChangeDetection ChangeKind = "detection"
	ChangeCountdown ChangeKind = "countdown"
)

// Publisher receives snapshots on significant changes. Publish must not
// block; implementations drop rather than wait.
type Publisher interface {
	Publish(kind ChangeKind, s Snapshot)
}

// Recorder receives session metrics.
type Recorder interface {
	RecordTransition(from, to string)
	RecordTrialCompleted(bucket string, gain float64, samples int)
	RecordSample()
	RecordStaleTick(kind string)
	RecordRejectedCommand(command string)
	RecordDetectorUpdate(kind string)
	RecordDroppedUpdate()
}

// Activator is asked to start delivering detections when a test starts.
type Activator interface {
	Activate()
}

type nopPublisher struct{}

func (nopPublisher) Publish(ChangeKind, Snapshot) {}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string)           {}
func (nopRecorder) RecordTrialCompleted(string, float64, int) {}
func (nopRecorder) RecordSample()                             {}
func (nopRecorder) RecordStaleTick(string)                    {}
func (nopRecorder) RecordRejectedCommand(string)              {}
func (nopRecorder) RecordDetectorUpdate(string)               {}
func (nopRecorder) RecordDroppedUpdate()                      {}
