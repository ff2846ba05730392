package detector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collector is a Sink that buffers everything it receives.
type collector struct {
	ch chan Detection
}

func newCollector() *collector {
	return &collector{ch: make(chan Detection, 256)}
}

func (c *collector) Submit(d Detection) bool {
	select {
	case c.ch <- d:
		return true
	default:
		return false
	}
}

func (c *collector) next(t *testing.T) Detection {
	t.Helper()
	select {
	case d := <-c.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no detection received")
		return Detection{}
	}
}

type countingRecorder struct {
	mu        sync.Mutex
	frames    map[string]int
	errors    map[string]int
	connected map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		frames:    make(map[string]int),
		errors:    make(map[string]int),
		connected: make(map[string]int),
	}
}

func (r *countingRecorder) RecordFrame(source string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[source]++
}

func (r *countingRecorder) RecordDecodeError(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[source]++
}

func (r *countingRecorder) ClientConnected(source string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[source] += delta
}

func (r *countingRecorder) get(m map[string]int, source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[source]
}

func runSource(t *testing.T, run func() error) (stop func()) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- run() }()
	return func() {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("source did not stop")
		}
	}
}
