package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.ConnectionReplaced()
		m.SetOnline(3)
		m.SetTyping(1)
		m.FrameReceived("typing_start")
		m.FrameSent("typing_start")
		m.FrameDropped("offline")
		m.PermissionDenied()
		m.Notification("chat_message", true)
	})
	assert.Nil(t, m.Registry())
}

func TestCountersExposed(t *testing.T) {
	m := metrics.New()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.FrameDropped("offline")
	m.Notification("notification", false)

	n, err := testutil.GatherAndCount(m.Registry(), "realtime_connections_open")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "realtime_connections_open 1")
	assert.Contains(t, body, `realtime_frames_dropped_total{reason="offline"} 1`)
	assert.True(t, strings.Contains(body, `realtime_notifications_total{kind="notification",outcome="dropped"} 1`))
}
