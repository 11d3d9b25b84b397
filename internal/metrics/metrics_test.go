package metrics_test

import (
	"strings"
	"testing"

	"codeberg.org/mutker/wvasim/internal/metrics"
	"codeberg.org/mutker/wvasim/internal/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	tcp := stream.SessionInfo{ID: "a", Transport: stream.TransportTCP}
	ws := stream.SessionInfo{ID: "b", Transport: stream.TransportWebsocket}

	c.SessionStarted(tcp)
	c.SessionStarted(ws)
	for _, field := range stream.FieldOrder {
		c.FrameSent(tcp, stream.Frame{Field: field})
	}
	c.FrameSent(ws, stream.Frame{Field: stream.FieldElapsedTime})
	c.CycleCompleted(tcp, 1, stream.ConnectionState{})
	c.SessionEnded(tcp, stream.Summary{Reason: stream.EndTransport})

	expected := `
# HELP wvasim_stream_sessions_active Number of streaming sessions currently running
# TYPE wvasim_stream_sessions_active gauge
wvasim_stream_sessions_active{transport="tcp"} 0
wvasim_stream_sessions_active{transport="websocket"} 1
# HELP wvasim_stream_sessions_total Total number of streaming sessions started
# TYPE wvasim_stream_sessions_total counter
wvasim_stream_sessions_total{transport="tcp"} 1
wvasim_stream_sessions_total{transport="websocket"} 1
# HELP wvasim_stream_session_errors_total Total number of sessions ended by a transport failure
# TYPE wvasim_stream_session_errors_total counter
wvasim_stream_session_errors_total{reason="transport"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"wvasim_stream_sessions_active",
		"wvasim_stream_sessions_total",
		"wvasim_stream_session_errors_total",
	))

	series, err := testutil.GatherAndCount(reg, "wvasim_stream_frames_total")
	require.NoError(t, err)
	assert.Equal(t, len(stream.FieldOrder), series, "one series per field")

	frames := `
# HELP wvasim_stream_frames_total Total number of telemetry frames written
# TYPE wvasim_stream_frames_total counter
wvasim_stream_frames_total{field="Elapsed_Time"} 2
wvasim_stream_frames_total{field="EngineRPM"} 1
wvasim_stream_frames_total{field="Ignition_State"} 1
wvasim_stream_frames_total{field="VehicleSpeed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(frames), "wvasim_stream_frames_total"))
}

func TestShutdownIsNotAnError(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	info := stream.SessionInfo{Transport: stream.TransportTCP}
	c.SessionStarted(info)
	c.SessionEnded(info, stream.Summary{Reason: stream.EndShutdown})

	series, err := testutil.GatherAndCount(reg, "wvasim_stream_session_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 0, series)
}

func TestDiscoveryRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	c.ObserveRequest("data", true)
	c.ObserveRequest("data", true)
	c.ObserveRequest("data", false)

	expected := `
# HELP wvasim_discovery_requests_total Total number of discovery API requests
# TYPE wvasim_discovery_requests_total counter
wvasim_discovery_requests_total{family="data",result="hit"} 2
wvasim_discovery_requests_total{family="data",result="miss"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wvasim_discovery_requests_total"))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}
