package run

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/okn-go/internal/conf"
	"github.com/tphakala/okn-go/internal/detector"
	"github.com/tphakala/okn-go/internal/observability"
	"github.com/tphakala/okn-go/internal/session"
	"github.com/tphakala/okn-go/internal/testutil"
	"go.uber.org/goleak"
)

func testSettings(source string) *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "okn-test"
	s.Session.QueueSize = 64
	s.Events.BufferSize = 64
	s.WebServer.Enabled = true
	s.WebServer.Listen = "127.0.0.1:0"
	s.Detector.Source = source
	s.Detector.MQTT.Broker = "tcp://127.0.0.1:1883"
	s.Detector.MQTT.Topic = "okn/detector"
	s.Detector.Synthetic.Amplitude = 0.5
	s.Detector.Synthetic.Frequency = 0.5
	s.Detector.Synthetic.Rate = 60
	s.Telemetry.Listen = "127.0.0.1:0"
	return s
}

func TestNewSource(t *testing.T) {
	t.Parallel()

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	tests := []struct {
		source string
		want   string
	}{
		{conf.SourceWebSocket, "websocket"},
		{conf.SourceMQTT, "mqtt"},
		{conf.SourceSynthetic, "synthetic"},
	}
	for _, tt := range tests {
		src, err := newSource(testSettings(tt.source), metrics)
		require.NoError(t, err, tt.source)
		require.NotNil(t, src, tt.source)
		assert.Equal(t, tt.want, src.Name())
	}

	src, err := newSource(testSettings(conf.SourceNone), metrics)
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = newSource(testSettings("camera"), metrics)
	require.Error(t, err)

	bad := testSettings(conf.SourceSynthetic)
	bad.Detector.Synthetic.Rate = 0
	_, err = newSource(bad, metrics)
	require.Error(t, err)
}

func TestSyntheticSourceIsActivator(t *testing.T) {
	t.Parallel()

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	src, err := newSource(testSettings(conf.SourceSynthetic), metrics)
	require.NoError(t, err)

	_, ok := src.(session.Activator)
	assert.True(t, ok)
	_, ok = src.(*detector.SyntheticSource)
	assert.True(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	for _, source := range []string{conf.SourceSynthetic, conf.SourceWebSocket, conf.SourceNone} {
		t.Run(source, func(t *testing.T) {
			t.Parallel()

			settings := testSettings(source)
			settings.Telemetry.Enabled = true

			ctx, cancel := context.WithCancel(t.Context())
			done := testutil.RunAsync(func() error { return Run(ctx, settings) })

			time.Sleep(100 * time.Millisecond)
			cancel()

			err := testutil.WaitForValue(t, done, testutil.LongTestTimeout, "Run did not return after cancel")
			require.NoError(t, err)
		})
	}
}

func TestRunFailsOnBadListen(t *testing.T) {
	t.Parallel()

	settings := testSettings(conf.SourceNone)
	settings.WebServer.Listen = "127.0.0.1:-1"

	done := testutil.RunAsync(func() error { return Run(t.Context(), settings) })
	err := testutil.WaitForValue(t, done, testutil.LongTestTimeout, "Run did not fail")
	require.Error(t, err)
}

// Not parallel: goleak.IgnoreCurrent must only see this test's goroutines.
func TestRunSetupErrorStopsComponents(t *testing.T) {
	tests := []struct {
		name   string
		listen string
	}{
		{"invalid listen address", "no-port-here"},
		{"listen fails", "127.0.0.1:-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			settings := testSettings(conf.SourceSynthetic)
			settings.WebServer.Listen = tt.listen
			settings.Telemetry.Enabled = true

			done := testutil.RunAsync(func() error { return Run(t.Context(), settings) })
			err := testutil.WaitForValue(t, done, testutil.LongTestTimeout, "Run did not fail")
			require.Error(t, err)
		})
	}
}
