package session

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/gain"
)

func TestNewMachineIsIdle(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	s := m.State()

	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, Portrait, s.Orientation)
	assert.Equal(t, CountdownTicks, s.TimeRemaining)
	assert.Nil(t, s.Result)
	assert.Empty(t, s.TrialID)
}

func TestRejectedTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup []Message
		msg   Message
		phase Phase
	}{
		{"idle cannot jump to stimulus", nil, ContinueToStimulus{}, Idle},
		{"idle cannot reset", nil, Reset{}, Idle},
		{"positioning cannot start again", []Message{StartTest{}}, StartTest{}, Positioning},
		{"positioning cannot reset", []Message{StartTest{}}, Reset{}, Positioning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := newCountingRecorder()
			m, _ := newStepMachine(t, WithRecorder(rec))
			for _, msg := range tt.setup {
				require.NoError(t, m.handle(msg))
			}

			err := m.handle(tt.msg)
			require.ErrorIs(t, err, ErrInvalidTransition)
			assert.True(t, errors.IsCategory(err, errors.CategoryState))
			assert.Equal(t, tt.phase, m.State().Phase)
			assert.Equal(t, 1, rec.rejected[tt.msg.kind()])
		})
	}
}

func TestStimulusRejectsCommands(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)

	for _, msg := range []Message{StartTest{}, ContinueToStimulus{}, Reset{}} {
		assert.ErrorIs(t, m.handle(msg), ErrInvalidTransition, msg.kind())
	}
	assert.Equal(t, Stimulus, m.phase)
}

func TestContinueRequiresCenteredFace(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	require.NoError(t, m.handle(StartTest{}))

	require.ErrorIs(t, m.handle(ContinueToStimulus{}), ErrFaceNotCentered)

	offCenter := detector.Detected(detector.Point{X: 0.2, Y: 0.5}, 0, 0)
	require.NoError(t, m.handle(DetectorUpdate{Detection: offCenter}))
	assert.True(t, m.State().FaceDetected)
	assert.False(t, m.State().FaceCentered)
	require.ErrorIs(t, m.handle(ContinueToStimulus{}), ErrFaceNotCentered)

	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0, 0)}))
	require.NoError(t, m.handle(ContinueToStimulus{}))

	s := m.State()
	assert.Equal(t, Stimulus, s.Phase)
	assert.Equal(t, Landscape, s.Orientation)
	assert.Equal(t, CountdownTicks, s.TimeRemaining)
	assert.NotEmpty(t, s.TrialID)
	assert.Zero(t, s.Samples)
}

func TestDetectorUpdatesApplyInEveryPhase(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)

	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0.4, -0.2)}))
	s := m.State()
	assert.Equal(t, Idle, s.Phase)
	assert.True(t, s.FaceDetected)
	assert.True(t, s.FaceCentered)
	assert.InDelta(t, 0.4, s.GazeX, 0)

	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.NoDetection()}))
	s = m.State()
	assert.False(t, s.FaceDetected)
	assert.False(t, s.FaceCentered)
	assert.InDelta(t, 0.4, s.GazeX, 0, "last gaze is retained across a missed frame")
	assert.InDelta(t, -0.2, s.GazeY, 0)
}

func TestSamplingUsesTickGridAndLastKnownGaze(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	require.NoError(t, m.handle(StartTest{}))
	// face found but no gaze derived yet
	faceOnly := detector.Detection{Detected: true, Center: centerPoint}
	require.NoError(t, m.handle(DetectorUpdate{Detection: faceOnly}))
	require.NoError(t, m.handle(ContinueToStimulus{}))
	gen := m.generation

	require.NoError(t, m.handle(SampleTick{Generation: gen}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0.3, 0.1)}))
	require.NoError(t, m.handle(SampleTick{Generation: gen}))
	require.NoError(t, m.handle(SampleTick{Generation: gen}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.NoDetection()}))
	require.NoError(t, m.handle(SampleTick{Generation: gen}))

	tr := m.trial.Export()
	assert.Equal(t, []float64{0, 0.3, 0.3, 0.3}, tr.GazeX)
	assert.Equal(t, []float64{0, 0.1, 0.1, 0.1}, tr.GazeY)
	require.Len(t, tr.Timestamp, 4)
	for i, ts := range tr.Timestamp {
		assert.InDelta(t, float64(i+1)*0.05, ts, 1e-12)
	}
}

func TestTrialInvariantsUnderInterleaving(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)
	gen := m.generation
	rng := rand.New(rand.NewPCG(7, 11))

	for range 500 {
		var msg Message
		switch rng.IntN(3) {
		case 0:
			msg = DetectorUpdate{Detection: detector.Detected(centerPoint, rng.Float64()*4-2, rng.Float64()*4-2)}
		case 1:
			msg = DetectorUpdate{Detection: detector.NoDetection()}
		default:
			msg = SampleTick{Generation: gen}
		}
		require.NoError(t, m.handle(msg))

		tr := m.trial
		require.Len(t, tr.gazeY, len(tr.gazeX))
		require.Len(t, tr.timestamp, len(tr.gazeX))
		if n := len(tr.timestamp); n > 1 {
			require.Greater(t, tr.timestamp[n-1], tr.timestamp[n-2])
		}
	}
	assert.True(t, m.trial.Export().Valid())
}

func TestOutOfRangeGazeIsNotClamped(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)

	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 7.5, -3)}))
	require.NoError(t, m.handle(SampleTick{Generation: m.generation}))

	tr := m.trial.Export()
	assert.Equal(t, []float64{7.5}, tr.GazeX)
	assert.Equal(t, []float64{-3}, tr.GazeY)
}

func TestCountdownCompletesTrial(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	m, _ := newStepMachine(t, WithRecorder(rec))
	enterStimulus(t, m)
	gen := m.generation

	for i := range 20 {
		require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, float64(i)*0.1, 0)}))
		require.NoError(t, m.handle(SampleTick{Generation: gen}))
	}
	for i := 1; i < CountdownTicks; i++ {
		require.NoError(t, m.handle(CountdownTick{Generation: gen}))
		assert.Equal(t, CountdownTicks-i, m.State().TimeRemaining)
		assert.Equal(t, Stimulus, m.phase)
	}
	require.NoError(t, m.handle(CountdownTick{Generation: gen}))

	s := m.State()
	assert.Equal(t, Results, s.Phase)
	assert.Equal(t, Portrait, s.Orientation)
	assert.Zero(t, s.TimeRemaining)
	require.NotNil(t, s.Result)
	assert.InDelta(t, 20.0, s.Result.Gain, 1e-9)
	assert.Equal(t, gain.Pass, s.Result.Bucket)
	assert.Nil(t, m.stopTick, "timers are cancelled on completion")

	tr, ok := m.LastTrial()
	require.True(t, ok)
	assert.Equal(t, 20, tr.Len())
	assert.Equal(t, s.TrialID, tr.ID)
	assert.Equal(t, []string{"pass"}, rec.completed)
	assert.Equal(t, 20, rec.samples)
}

func TestTicksAfterCompletionAreDiscarded(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	m, _ := newStepMachine(t, WithRecorder(rec))
	enterStimulus(t, m)
	gen := m.generation

	for range 12 {
		require.NoError(t, m.handle(SampleTick{Generation: gen}))
	}
	for range CountdownTicks {
		require.NoError(t, m.handle(CountdownTick{Generation: gen}))
	}
	require.Equal(t, Results, m.phase)
	before := m.State()

	// ticks that were already queued when the trial ended
	require.NoError(t, m.handle(SampleTick{Generation: gen}))
	require.NoError(t, m.handle(CountdownTick{Generation: gen}))

	after := m.State()
	assert.Equal(t, 12, m.trial.Len())
	assert.Equal(t, before.Result, after.Result)
	assert.Equal(t, Results, after.Phase)
	assert.Zero(t, after.TimeRemaining)
	assert.Equal(t, 1, rec.stale["sample"])
	assert.Equal(t, 1, rec.stale["countdown"])

	tr, ok := m.LastTrial()
	require.True(t, ok)
	assert.Equal(t, 12, tr.Len())
}

func TestResetStartsFreshTrial(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)
	oldGen := m.generation
	oldID := m.trial.ID

	for range 15 {
		require.NoError(t, m.handle(SampleTick{Generation: oldGen}))
	}
	for range CountdownTicks {
		require.NoError(t, m.handle(CountdownTick{Generation: oldGen}))
	}
	require.NoError(t, m.handle(Reset{}))

	s := m.State()
	assert.Equal(t, Idle, s.Phase)
	assert.Nil(t, s.Result)
	assert.Empty(t, s.TrialID)
	assert.Zero(t, s.Samples)
	assert.False(t, s.FaceCentered)
	assert.Equal(t, CountdownTicks, s.TimeRemaining)
	_, ok := m.LastTrial()
	assert.False(t, ok)

	enterStimulus(t, m)
	assert.NotEqual(t, oldID, m.trial.ID)
	assert.Zero(t, m.trial.Len())

	// a tick from the previous trial must not land in the new one
	require.NoError(t, m.handle(SampleTick{Generation: oldGen}))
	assert.Zero(t, m.trial.Len())
	assert.Equal(t, CountdownTicks, m.remaining)
}

func TestResetClearsGaze(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	require.NoError(t, m.handle(StartTest{}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0.4, -0.2)}))
	require.NoError(t, m.handle(ContinueToStimulus{}))
	gen := m.generation
	for range CountdownTicks {
		require.NoError(t, m.handle(CountdownTick{Generation: gen}))
	}
	require.Equal(t, Results, m.phase)

	require.NoError(t, m.handle(Reset{}))
	s := m.State()
	assert.Zero(t, s.GazeX)
	assert.Zero(t, s.GazeY)

	// centred face without a gaze estimate: samples fall back to zero
	require.NoError(t, m.handle(StartTest{}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detection{Detected: true, Center: centerPoint}}))
	require.NoError(t, m.handle(ContinueToStimulus{}))
	require.NoError(t, m.handle(SampleTick{Generation: m.generation}))

	require.Equal(t, 1, m.trial.Len())
	assert.Zero(t, m.trial.gazeX[0])
	assert.Zero(t, m.trial.gazeY[0])
}

func TestShortTrialScoresDegenerate(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)
	gen := m.generation

	for range gain.MinSamples - 1 {
		require.NoError(t, m.handle(SampleTick{Generation: gen}))
	}
	for range CountdownTicks {
		require.NoError(t, m.handle(CountdownTick{Generation: gen}))
	}

	s := m.State()
	require.Equal(t, Results, s.Phase)
	require.NotNil(t, s.Result)
	assert.Zero(t, s.Result.Gain)
	assert.Equal(t, gain.Fail, s.Result.Bucket)
}

func TestPublisherGetsSignificantChanges(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	m, _ := newStepMachine(t, WithPublisher(pub))

	require.NoError(t, m.handle(StartTest{}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0.1, 0)}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0.2, 0)}))
	require.NoError(t, m.handle(ContinueToStimulus{}))
	require.NoError(t, m.handle(SampleTick{Generation: m.generation}))
	require.NoError(t, m.handle(CountdownTick{Generation: m.generation}))

	assert.Equal(t, []ChangeKind{ChangePhase, ChangeDetection, ChangePhase, ChangeCountdown}, pub.Kinds())
	assert.Equal(t, Stimulus, pub.snaps[2].Phase)
	assert.Equal(t, CountdownTicks-1, pub.snaps[3].TimeRemaining)
}

type countingActivator struct{ n int }

func (a *countingActivator) Activate() { a.n++ }

func TestStartActivatesDetector(t *testing.T) {
	t.Parallel()

	act := &countingActivator{}
	m, _ := newStepMachine(t, WithActivator(act))

	require.NoError(t, m.handle(StartTest{}))
	assert.Equal(t, 1, act.n)
	require.Error(t, m.handle(StartTest{}))
	assert.Equal(t, 1, act.n)
}

func TestSubmitDropsWhenInboxFull(t *testing.T) {
	t.Parallel()

	rec := newCountingRecorder()
	m, _ := newStepMachine(t, WithQueueSize(1), WithRecorder(rec))

	assert.True(t, m.Submit(detector.NoDetection()))
	assert.False(t, m.Submit(detector.NoDetection()))
	assert.Equal(t, 1, rec.dropped)
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()

	m, _ := newStepMachine(t)
	enterStimulus(t, m)

	data, err := json.Marshal(m.State())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "stimulus", raw["phase"])
	assert.Equal(t, "landscape", raw["orientation"])
	assert.Nil(t, raw["result"])
}

func TestRunFullTrial(t *testing.T) {
	t.Parallel()

	m, clock, _ := startRunning(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, Positioning, m.State().Phase)
	require.ErrorIs(t, m.Continue(ctx), ErrFaceNotCentered)

	require.True(t, m.Submit(detector.Detected(centerPoint, 0, 0)))
	waitFor(t, m, "face centered", func(s Snapshot) bool { return s.FaceCentered })

	require.NoError(t, m.Continue(ctx))
	countdown, sample := clock.takeTickers(t)

	for i := range 20 {
		x := float64(i) * 0.1
		require.True(t, m.Submit(detector.Detected(centerPoint, x, 0)))
		waitFor(t, m, "gaze applied", func(s Snapshot) bool { return s.GazeX == x })
		sample.fire(t)
		want := i + 1
		waitFor(t, m, "sample appended", func(s Snapshot) bool { return s.Samples == want })
	}

	for i := range CountdownTicks - 1 {
		countdown.fire(t)
		want := CountdownTicks - i - 1
		waitFor(t, m, "countdown", func(s Snapshot) bool { return s.TimeRemaining == want })
	}
	countdown.fire(t)
	waitFor(t, m, "results", func(s Snapshot) bool { return s.Phase == Results })

	s := m.State()
	require.NotNil(t, s.Result)
	assert.InDelta(t, 20.0, s.Result.Gain, 1e-9)
	assert.Equal(t, gain.Pass, s.Result.Bucket)

	require.Eventually(t, func() bool {
		return countdown.stopped.Load() && sample.stopped.Load()
	}, 2*time.Second, time.Millisecond)

	tr, ok := m.LastTrial()
	require.True(t, ok)
	require.True(t, tr.Valid())
	assert.InDelta(t, 0.05, tr.Timestamp[0], 1e-12)
	assert.InDelta(t, 1.0, tr.Timestamp[19], 1e-12)

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, Idle, m.State().Phase)
}

func TestRunCancelStopsTimers(t *testing.T) {
	t.Parallel()

	m, clock, cancel := startRunning(t)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	require.True(t, m.Submit(detector.Detected(centerPoint, 0, 0)))
	waitFor(t, m, "face centered", func(s Snapshot) bool { return s.FaceCentered })
	require.NoError(t, m.Continue(ctx))
	countdown, sample := clock.takeTickers(t)

	cancel()
	<-m.Done()

	assert.True(t, countdown.stopped.Load())
	assert.True(t, sample.stopped.Load())
	assert.ErrorIs(t, m.Start(ctx), ErrStopped)
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	m, _, _ := startRunning(t)
	require.Eventually(t, func() bool { return m.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyRunning)
}

func TestCommandHonoursContext(t *testing.T) {
	t.Parallel()

	// no Run loop: the command is queued but never answered
	m, _ := newStepMachine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Start(ctx), context.Canceled)
}
