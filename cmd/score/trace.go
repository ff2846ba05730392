package score

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/session"
)

// LoadTrace reads a trace file. Files ending in .csv are read as CSV,
// anything else as a JSON trial export.
func LoadTrace(path string) (session.TrialExport, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return session.TrialExport{}, fmt.Errorf("open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(f)
	}
	return ReadJSON(f)
}

// ReadJSON decodes a trial export as served by GET /api/v1/trial.
func ReadJSON(r io.Reader) (session.TrialExport, error) {
	var trace session.TrialExport
	if err := json.NewDecoder(r).Decode(&trace); err != nil {
		return session.TrialExport{}, invalidTrace(fmt.Errorf("decode trace: %w", err))
	}
	if !trace.Valid() {
		return session.TrialExport{}, invalidTrace(errors.NewStd("trace series lengths differ or timestamps decrease"))
	}
	return trace, nil
}

// ReadCSV reads rows of timestamp,gazeX,gazeY. A first row that does not
// parse as numbers is taken as a header.
func ReadCSV(r io.Reader) (session.TrialExport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var trace session.TrialExport
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return session.TrialExport{}, invalidTrace(fmt.Errorf("read csv: %w", err))
		}

		values, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return session.TrialExport{}, invalidTrace(fmt.Errorf("line %d: %w", line, err))
		}
		trace.Timestamp = append(trace.Timestamp, values[0])
		trace.GazeX = append(trace.GazeX, values[1])
		trace.GazeY = append(trace.GazeY, values[2])
	}

	if !trace.Valid() {
		return session.TrialExport{}, invalidTrace(errors.NewStd("timestamps decrease"))
	}
	return trace, nil
}

func parseRow(rec []string) ([3]float64, error) {
	var out [3]float64
	for i, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func invalidTrace(err error) error {
	return errors.New(err).
		Component("score").
		Category(errors.CategoryValidation).
		Build()
}
