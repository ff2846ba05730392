package session

import "github.com/tphakala/okn-go/internal/detector"

// Message is an event processed by the machine loop. Every mutation of
// session state is the result of exactly one Message.
type Message interface {
	kind() string
}

// DetectorUpdate carries one detector result.
type DetectorUpdate struct {
	Detection detector.Detection
}

// CountdownTick is one countdown timer fire for the trial with Generation.
type CountdownTick struct {
	Generation uint64
}

// SampleTick is one sample timer fire for the trial with Generation.
type SampleTick struct {
	Generation uint64
}

// StartTest moves Idle to Positioning.
type StartTest struct{}

// ContinueToStimulus is the user confirmation that starts the stimulus.
type ContinueToStimulus struct{}

// Reset moves Results back to Idle.
type Reset struct{}

func (DetectorUpdate) kind() string     { return "detector_update" }
func (CountdownTick) kind() string      { return "countdown_tick" }
func (SampleTick) kind() string         { return "sample_tick" }
func (StartTest) kind() string          { return "start" }
func (ContinueToStimulus) kind() string { return "continue" }
func (Reset) kind() string              { return "reset" }

// envelope pairs a message with the channel its outcome is reported on.
// reply is nil for fire-and-forget messages.
type envelope struct {
	msg   Message
	reply chan error
}
