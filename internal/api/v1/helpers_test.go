package api

import (
	"context"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/logger"
	"github.com/tphakala/okn-go/internal/session"
)

// fakeSession is a scriptable Session.
type fakeSession struct {
	mu        sync.Mutex
	state     session.Snapshot
	trial     *session.TrialExport
	errs      map[string]error
	calls     []string
	submitted []detector.Detection
	full      bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		state: session.Snapshot{Phase: session.Idle, TimeRemaining: 10, Orientation: session.Portrait},
		errs:  make(map[string]error),
	}
}

func (f *fakeSession) do(name string, next session.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return err
	}
	f.state.Phase = next
	f.state.Sequence++
	return nil
}

func (f *fakeSession) Start(context.Context) error    { return f.do("start", session.Positioning) }
func (f *fakeSession) Continue(context.Context) error { return f.do("continue", session.Stimulus) }
func (f *fakeSession) Reset(context.Context) error    { return f.do("reset", session.Idle) }

func (f *fakeSession) Submit(d detector.Detection) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.submitted = append(f.submitted, d)
	return true
}

func (f *fakeSession) State() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) LastTrial() (session.TrialExport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trial == nil {
		return session.TrialExport{}, false
	}
	return *f.trial, true
}

func (f *fakeSession) setState(fn func(s *session.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
}

func newTestController(t *testing.T, sess Session, opts ...Option) (*echo.Echo, *Controller) {
	t.Helper()
	e := echo.New()
	base := []Option{WithLogger(logger.NewDiscard())}
	c := New(e, sess, append(base, opts...)...)
	t.Cleanup(c.Shutdown)
	return e, c
}
