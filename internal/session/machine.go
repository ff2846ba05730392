// Package session runs the OKN test lifecycle: positioning, a timed stimulus
// window with fixed-cadence gaze sampling, scoring, and results.
//
// All session state is owned by the goroutine running Machine.Run. Detector
// updates, timer ticks and user commands are messages on a single inbox and
// are applied one at a time, so no state is ever shared between goroutines.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/gain"
	"github.com/tphakala/okn-go/internal/logger"
)

// Protocol timing. These are fixed properties of the test, not settings.
const (
	TestDuration    = 10 * time.Second
	CountdownPeriod = time.Second
	CountdownTicks  = int(TestDuration / CountdownPeriod)
	SamplePeriod    = 50 * time.Millisecond

	DefaultQueueSize = 256

	expectedSamples = int(TestDuration / SamplePeriod)
)

var (
	ErrInvalidTransition = errors.NewStd("invalid phase transition")
	ErrFaceNotCentered   = errors.NewStd("face not centered")
	ErrStopped           = errors.NewStd("session machine stopped")
	ErrAlreadyRunning    = errors.NewStd("session machine already running")
)

// DetectionState mirrors the most recent detector output.
type DetectionState struct {
	FaceDetected bool
	FaceCentered bool
	GazeX        float64
	GazeY        float64
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source used for trial timers.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithPublisher sets the receiver of state change notifications.
func WithPublisher(p Publisher) Option {
	return func(m *Machine) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithActivator sets the detector activation hook invoked on StartTest.
func WithActivator(a Activator) Option {
	return func(m *Machine) { m.activator = a }
}

// WithQueueSize sets the inbox capacity.
func WithQueueSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// Machine is the phase state machine. Create with New, drive with Run.
type Machine struct {
	inbox     chan envelope
	done      chan struct{}
	running   atomic.Bool
	queueSize int

	clock     Clock
	log       logger.Logger
	metrics   Recorder
	publisher Publisher
	activator Activator
	dropLimit *rate.Limiter

	// Owned by the Run goroutine.
	runCtx      context.Context
	phase       Phase
	det         DetectionState
	trial       *Trial
	result      *gain.Result
	remaining   int
	generation  uint64
	sampleTicks int
	stopTick    chan struct{}
	seq         uint64
	timers      sync.WaitGroup

	state     atomic.Pointer[Snapshot]
	lastTrial atomic.Pointer[TrialExport]
}

// New creates an idle machine.
func New(opts ...Option) *Machine {
	m := &Machine{
		queueSize: DefaultQueueSize,
		clock:     WallClock(),
		metrics:   nopRecorder{},
		publisher: nopPublisher{},
		remaining: CountdownTicks,
		dropLimit: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = GetLogger()
	}
	m.inbox = make(chan envelope, m.queueSize)
	m.done = make(chan struct{})
	m.updateState()
	return m
}

// Run processes messages until ctx is cancelled. Live trial timers are
// stopped before Run returns.
func (m *Machine) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	m.runCtx = ctx

	defer close(m.done)
	defer m.timers.Wait()
	defer m.stopTimers()

	m.log.Info("session machine started", logger.Int("queue_size", cap(m.inbox)))

	for {
		select {
		case <-ctx.Done():
			if m.phase == Stimulus {
				m.log.Warn("session stopped during stimulus",
					logger.String("trial_id", m.trial.ID),
					logger.Int("samples", m.trial.Len()))
			}
			m.log.Info("session machine stopped")
			return nil
		case env := <-m.inbox:
			err := m.handle(env.msg)
			if env.reply != nil {
				env.reply <- err
			}
		}
	}
}

// Done is closed after Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Start requests Idle → Positioning.
func (m *Machine) Start(ctx context.Context) error {
	return m.send(ctx, StartTest{})
}

// Continue confirms positioning and starts the stimulus if the face is centered.
func (m *Machine) Continue(ctx context.Context) error {
	return m.send(ctx, ContinueToStimulus{})
}

// Reset requests Results → Idle.
func (m *Machine) Reset(ctx context.Context) error {
	return m.send(ctx, Reset{})
}

// Submit enqueues a detector update without blocking. It returns false when
// the update was dropped because the inbox is full.
func (m *Machine) Submit(d detector.Detection) bool {
	select {
	case m.inbox <- envelope{msg: DetectorUpdate{Detection: d}}:
		return true
	default:
		m.metrics.RecordDroppedUpdate()
		if m.dropLimit.Allow() {
			m.log.Warn("session inbox full, dropping detector updates",
				logger.Int("queue_size", cap(m.inbox)))
		}
		return false
	}
}

// State returns the latest snapshot.
func (m *Machine) State() Snapshot {
	return *m.state.Load()
}

// LastTrial returns the samples of the most recently completed trial. It is
// cleared by Reset.
func (m *Machine) LastTrial() (TrialExport, bool) {
	t := m.lastTrial.Load()
	if t == nil {
		return TrialExport{}, false
	}
	return *t, true
}

func (m *Machine) send(ctx context.Context, msg Message) error {
	reply := make(chan error, 1)

	select {
	case m.inbox <- envelope{msg: msg, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

func (m *Machine) handle(msg Message) error {
	switch msg := msg.(type) {
	case DetectorUpdate:
		m.applyDetection(msg.Detection)
	case CountdownTick:
		m.onCountdown(msg.Generation)
	case SampleTick:
		m.onSample(msg.Generation)
	case StartTest:
		return m.startTest(msg)
	case ContinueToStimulus:
		return m.continueToStimulus(msg)
	case Reset:
		return m.reset(msg)
	default:
		return errors.Newf("unsupported session message %T", msg).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func (m *Machine) applyDetection(d detector.Detection) {
	m.metrics.RecordDetectorUpdate(d.Kind())

	prevDetected, prevCentered := m.det.FaceDetected, m.det.FaceCentered
	if d.Detected {
		m.det.FaceDetected = true
		m.det.FaceCentered = d.Centered()
		if d.HasGaze {
			m.det.GazeX = d.Gaze.X
			m.det.GazeY = d.Gaze.Y
		}
	} else {
		// last known gaze is kept for the sampler
		m.det.FaceDetected = false
		m.det.FaceCentered = false
	}

	if prevDetected != m.det.FaceDetected || prevCentered != m.det.FaceCentered {
		m.publish(ChangeDetection)
		return
	}
	m.updateState()
}

func (m *Machine) startTest(msg StartTest) error {
	if m.phase != Idle {
		return m.reject(msg, ErrInvalidTransition)
	}
	m.transition(Positioning)
	if m.activator != nil {
		m.activator.Activate()
	}
	return nil
}

func (m *Machine) continueToStimulus(msg ContinueToStimulus) error {
	if m.phase != Positioning {
		return m.reject(msg, ErrInvalidTransition)
	}
	if !m.det.FaceCentered {
		return m.reject(msg, ErrFaceNotCentered)
	}

	m.generation++
	m.trial = newTrial(uuid.NewString(), m.clock.Now(), expectedSamples)
	m.result = nil
	m.remaining = CountdownTicks
	m.sampleTicks = 0
	m.startTimers(m.generation)

	m.log.Info("trial started",
		logger.String("trial_id", m.trial.ID),
		logger.Duration("duration", TestDuration),
		logger.Duration("sample_period", SamplePeriod))

	m.transition(Stimulus)
	return nil
}

func (m *Machine) reset(msg Reset) error {
	if m.phase != Results {
		return m.reject(msg, ErrInvalidTransition)
	}
	m.trial = nil
	m.result = nil
	m.lastTrial.Store(nil)
	m.remaining = CountdownTicks
	m.det = DetectionState{}
	m.transition(Idle)
	return nil
}

func (m *Machine) reject(msg Message, cause error) error {
	m.metrics.RecordRejectedCommand(msg.kind())
	m.log.Debug("command rejected",
		logger.String("command", msg.kind()),
		logger.String("phase", m.phase.String()),
		logger.Error(cause))

	return errors.New(fmt.Errorf("%s in %s: %w", msg.kind(), m.phase, cause)).
		Component("session").
		Category(errors.CategoryState).
		Context("phase", m.phase.String()).
		Context("command", msg.kind()).
		Build()
}

// live reports whether a tick belongs to the running trial. Ticks already
// queued when a trial ends fail this check and are discarded.
func (m *Machine) live(generation uint64) bool {
	return m.phase == Stimulus && generation == m.generation
}

func (m *Machine) onCountdown(generation uint64) {
	if !m.live(generation) {
		m.metrics.RecordStaleTick("countdown")
		return
	}
	m.remaining--
	if m.remaining > 0 {
		m.publish(ChangeCountdown)
		return
	}
	m.completeTrial()
}

func (m *Machine) onSample(generation uint64) {
	if !m.live(generation) {
		m.metrics.RecordStaleTick("sample")
		return
	}
	m.sampleTicks++
	ts := (time.Duration(m.sampleTicks) * SamplePeriod).Seconds()
	m.trial.append(m.det.GazeX, m.det.GazeY, ts)
	m.metrics.RecordSample()
	m.updateState()
}

func (m *Machine) completeTrial() {
	m.stopTimers()
	m.remaining = 0

	res := gain.Estimate(m.trial.gazeX, SamplePeriod.Seconds())
	m.result = &res

	export := m.trial.Export()
	m.lastTrial.Store(&export)
	m.metrics.RecordTrialCompleted(res.Bucket.String(), res.Gain, m.trial.Len())

	m.log.Info("trial completed",
		logger.String("trial_id", m.trial.ID),
		logger.Int("samples", m.trial.Len()),
		logger.Float64("gain", res.Gain),
		logger.String("bucket", res.Bucket.String()))

	m.transition(Results)
}

func (m *Machine) startTimers(generation uint64) {
	ctx := m.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	stop := make(chan struct{})
	m.stopTick = stop

	countdown := m.clock.NewTicker(CountdownPeriod)
	sample := m.clock.NewTicker(SamplePeriod)

	m.timers.Add(2)
	go m.forward(ctx, stop, countdown, CountdownTick{Generation: generation})
	go m.forward(ctx, stop, sample, SampleTick{Generation: generation})
}

// stopTimers cancels the trial timers. Ticks the forwarders already queued
// are discarded by live.
func (m *Machine) stopTimers() {
	if m.stopTick == nil {
		return
	}
	close(m.stopTick)
	m.stopTick = nil
}

// forward turns ticker fires into inbox messages until stop is closed.
func (m *Machine) forward(ctx context.Context, stop <-chan struct{}, t Ticker, msg Message) {
	defer m.timers.Done()
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C():
		}

		select {
		case m.inbox <- envelope{msg: msg}:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Machine) transition(to Phase) {
	from := m.phase
	m.phase = to
	m.metrics.RecordTransition(from.String(), to.String())
	m.log.Debug("phase transition",
		logger.String("from", from.String()),
		logger.String("to", to.String()))
	m.publish(ChangePhase)
}

func (m *Machine) publish(kind ChangeKind) {
	s := m.updateState()
	m.publisher.Publish(kind, s)
}

func (m *Machine) updateState() Snapshot {
	m.seq++
	s := Snapshot{
		Sequence:      m.seq,
		Phase:         m.phase,
		FaceDetected:  m.det.FaceDetected,
		FaceCentered:  m.det.FaceCentered,
		GazeX:         m.det.GazeX,
		GazeY:         m.det.GazeY,
		TimeRemaining: m.remaining,
		Orientation:   orientationFor(m.phase),
		Samples:       m.trial.Len(),
		UpdatedAt:     m.clock.Now(),
	}
	if m.trial != nil {
		s.TrialID = m.trial.ID
	}
	if m.result != nil {
		r := *m.result
		s.Result = &r
	}
	m.state.Store(&s)
	return s
}
