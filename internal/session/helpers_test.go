package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/logger"
)

var centerPoint = detector.Point{X: 0.5, Y: 0.5}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers chan *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		tickers: make(chan *fakeTicker, 32),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{period: d, c: make(chan time.Time)}
	c.tickers <- t
	return t
}

// takeTickers returns the countdown and sample tickers of the trial that
// just started.
func (c *fakeClock) takeTickers(t *testing.T) (countdown, sample *fakeTicker) {
	t.Helper()
	for range 2 {
		select {
		case tk := <-c.tickers:
			switch tk.period {
			case CountdownPeriod:
				countdown = tk
			case SamplePeriod:
				sample = tk
			}
		case <-time.After(2 * time.Second):
			t.Fatal("trial tickers were not created")
		}
	}
	require.NotNil(t, countdown)
	require.NotNil(t, sample)
	return countdown, sample
}

type fakeTicker struct {
	period  time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fire delivers one tick to the forwarder.
func (f *fakeTicker) fire(t *testing.T) {
	t.Helper()
	select {
	case f.c <- time.Time{}:
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker %v not being read", f.period)
	}
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions []string
	completed   []string
	samples     int
	stale       map[string]int
	rejected    map[string]int
	updates     map[string]int
	dropped     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		stale:    map[string]int{},
		rejected: map[string]int{},
		updates:  map[string]int{},
	}
}

func (r *countingRecorder) RecordTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+">"+to)
}

func (r *countingRecorder) RecordTrialCompleted(bucket string, _ float64, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, bucket)
}

func (r *countingRecorder) RecordSample() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
}

func (r *countingRecorder) RecordStaleTick(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[kind]++
}

func (r *countingRecorder) RecordRejectedCommand(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[command]++
}

func (r *countingRecorder) RecordDetectorUpdate(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[kind]++
}

func (r *countingRecorder) RecordDroppedUpdate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []ChangeKind
	snaps []Snapshot
}

func (p *recordingPublisher) Publish(kind ChangeKind, s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	p.snaps = append(p.snaps, s)
}

func (p *recordingPublisher) Kinds() []ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChangeKind(nil), p.kinds...)
}

// newStepMachine builds a machine driven by calling handle directly, without
// a Run loop. Timer forwarders are stopped at cleanup.
func newStepMachine(t *testing.T, opts ...Option) (*Machine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{WithClock(clock), WithLogger(logger.NewDiscard())}
	m := New(append(base, opts...)...)
	t.Cleanup(func() {
		m.stopTimers()
		m.timers.Wait()
	})
	return m, clock
}

// startRunning runs the machine loop until test cleanup.
func startRunning(t *testing.T, opts ...Option) (*Machine, *fakeClock, context.CancelFunc) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{WithClock(clock), WithLogger(logger.NewDiscard())}
	m := New(append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m, clock, cancel
}

func waitFor(t *testing.T, m *Machine, what string, cond func(Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(m.State()) }, 2*time.Second, time.Millisecond, what)
}

// enterStimulus drives a step machine from Idle into Stimulus.
func enterStimulus(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.handle(StartTest{}))
	require.NoError(t, m.handle(DetectorUpdate{Detection: detector.Detected(centerPoint, 0, 0)}))
	require.NoError(t, m.handle(ContinueToStimulus{}))
	require.Equal(t, Stimulus, m.phase)
}
