package detector

import (
	"context"

	"github.com/tphakala/okn-go/internal/errors"
	"github.com/tphakala/okn-go/internal/logger"
)

// ErrSourceRunning is returned when Run is called on a source that is
// already running.
var ErrSourceRunning = errors.NewStd("detector source already running")

// Sink accepts detections from a source. Submit must not block; it reports
// false when the detection was dropped.
type Sink interface {
	Submit(d Detection) bool
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(d Detection) bool

// Submit calls f(d).
func (f SinkFunc) Submit(d Detection) bool { return f(d) }

// Source delivers detections to a Sink until its context is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Recorder receives transport metrics for detector sources.
type Recorder interface {
	RecordFrame(source string, size int)
	RecordDecodeError(source string)
	ClientConnected(source string, delta int)
}

type nopRecorder struct{}

func (nopRecorder) RecordFrame(string, int)     {}
func (nopRecorder) RecordDecodeError(string)    {}
func (nopRecorder) ClientConnected(string, int) {}

// Option configures the transport sources.
type Option func(*sourceOptions)

type sourceOptions struct {
	recorder Recorder
	log      logger.Logger
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *sourceOptions) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(o *sourceOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) sourceOptions {
	o := sourceOptions{recorder: nopRecorder{}, log: GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ingest decodes one frame and hands the detection to sink.
func ingest(o sourceOptions, source string, data []byte, sink Sink) error {
	o.recorder.RecordFrame(source, len(data))
	d, err := DecodeFrame(data)
	if err != nil {
		o.recorder.RecordDecodeError(source)
		return err
	}
	sink.Submit(d)
	return nil
}
