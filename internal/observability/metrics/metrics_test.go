package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewSessionMetrics(reg)
	require.NoError(t, err)

	m.RecordTransition("idle", "positioning")
	m.RecordTransition("idle", "positioning")
	m.RecordTrialCompleted("pass", 1.4, 199)
	m.RecordSample()
	m.RecordStaleTick("sample")
	m.RecordRejectedCommand("reset")
	m.RecordDetectorUpdate("gaze")
	m.RecordDroppedUpdate()
	m.RecordEventDropped()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Transitions.WithLabelValues("idle", "positioning")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TrialsCompleted.WithLabelValues("pass")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Samples), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StaleTicks.WithLabelValues("sample")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectedCommands.WithLabelValues("reset")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DroppedUpdates), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EventsDropped), 0)

	expected := `
# HELP okn_session_samples_total Gaze samples appended to trials
# TYPE okn_session_samples_total counter
okn_session_samples_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "okn_session_samples_total"))
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewSessionMetrics(reg)
	require.NoError(t, err)
	_, err = NewSessionMetrics(reg)
	assert.Error(t, err)
}

func TestDetectorAndMQTTMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	det, err := NewDetectorMetrics(reg)
	require.NoError(t, err)
	mq, err := NewMQTTMetrics(reg)
	require.NoError(t, err)

	det.RecordFrame("websocket", 80)
	det.RecordDecodeError("websocket")
	det.ClientConnected("websocket", 1)
	det.ClientConnected("websocket", 1)
	det.ClientConnected("websocket", -1)

	mq.UpdateConnectionStatus(true)
	mq.IncrementMessagesReceived(64)
	mq.IncrementErrors()

	assert.InDelta(t, 1, testutil.ToFloat64(det.Frames.WithLabelValues("websocket")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(det.DecodeErrors.WithLabelValues("websocket")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(det.Connected.WithLabelValues("websocket")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mq.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mq.MessagesReceived), 0)

	mq.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(mq.ConnectionStatus), 0)
}
