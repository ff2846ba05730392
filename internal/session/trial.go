package session

import (
	"slices"
	"time"
)

// Trial is the gaze trace of one stimulus window. It is owned by the machine
// loop; other goroutines only see TrialExport copies.
type Trial struct {
	ID        string
	StartedAt time.Time
	gazeX     []float64
	gazeY     []float64
	timestamp []float64
}

func newTrial(id string, startedAt time.Time, capacity int) *Trial {
	return &Trial{
		ID:        id,
		StartedAt: startedAt,
		gazeX:     make([]float64, 0, capacity),
		gazeY:     make([]float64, 0, capacity),
		timestamp: make([]float64, 0, capacity),
	}
}

// append records one sample. The three series always grow together.
func (t *Trial) append(x, y, ts float64) {
	t.gazeX = append(t.gazeX, x)
	t.gazeY = append(t.gazeY, y)
	t.timestamp = append(t.timestamp, ts)
}

// Len returns the number of samples.
func (t *Trial) Len() int {
	if t == nil {
		return 0
	}
	return len(t.timestamp)
}

// Export copies the trial into its transferable form.
func (t *Trial) Export() TrialExport {
	return TrialExport{
		ID:        t.ID,
		StartedAt: t.StartedAt,
		GazeX:     slices.Clone(t.gazeX),
		GazeY:     slices.Clone(t.gazeY),
		Timestamp: slices.Clone(t.timestamp),
	}
}

// TrialExport is an immutable copy of a trial's samples, also the JSON trace
// format read back by the score command.
type TrialExport struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	GazeX     []float64 `json:"gazeX"`
	GazeY     []float64 `json:"gazeY"`
	Timestamp []float64 `json:"timestamp"`
}

// Len returns the number of samples in the export.
func (e TrialExport) Len() int {
	return len(e.Timestamp)
}

// Valid reports whether all series have the same length and timestamps
// never decrease.
func (e TrialExport) Valid() bool {
	n := len(e.Timestamp)
	if len(e.GazeX) != n || len(e.GazeY) != n {
		return false
	}
	for i := 1; i < n; i++ {
		if e.Timestamp[i] < e.Timestamp[i-1] {
			return false
		}
	}
	return true
}
