package discovery_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"codeberg.org/mutker/wvasim/internal/discovery"
	"codeberg.org/mutker/wvasim/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveRequest(family string, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := "miss"
	if found {
		result = "hit"
	}
	r.calls = append(r.calls, family+":"+result)
}

func newServer(t *testing.T) (*httptest.Server, *recordingObserver) {
	t.Helper()
	svc, _, _ := newService()
	obs := &recordingObserver{}

	mux := http.NewServeMux()
	discovery.NewHandler(svc, logger.Default(), obs).Mount(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, obs
}

func do(t *testing.T, method, url string) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body)), resp.Header
}

func TestHTTPVehicleData(t *testing.T) {
	srv, _ := newServer(t)

	status, body, header := do(t, http.MethodGet, srv.URL+"/ws/vehicle/data")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.ElementsMatch(t, []string{
		"vehicle/data/EngineRPM",
		"vehicle/data/Ignition_State",
		"vehicle/data/VehicleSpeed",
		"vehicle/data/Elapsed_Time",
	}, got["data"])
}

func TestHTTPECU(t *testing.T) {
	srv, _ := newServer(t)

	_, body, _ := do(t, http.MethodGet, srv.URL+"/ws/vehicle/ecus/can0ecu0/")

	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.ElementsMatch(t, []string{
		"vehicle/ecus/can0ecu0/VIN",
		"vehicle/ecus/can0ecu0/Price",
		"vehicle/ecus/can0ecu0/Previous_Owner",
	}, got["can0ecu0"])
}

func TestHTTPRoot(t *testing.T) {
	srv, _ := newServer(t)

	_, body, _ := do(t, http.MethodGet, srv.URL+"/ws")
	assert.JSONEq(t, `{"ws": ["vehicle", "config", "hw"]}`, body)
}

func TestHTTPNotFoundIsNullWith200(t *testing.T) {
	srv, obs := newServer(t)

	status, body, _ := do(t, http.MethodGet, srv.URL+"/ws/vehicle/data/Nope")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", body)

	status, body, _ = do(t, http.MethodPost, srv.URL+"/ws/subscriptions/x")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", body)

	assert.Equal(t, []string{"data:miss", "subscriptions:miss"}, obs.calls)
}

func TestHTTPSubscriptionRoundTrip(t *testing.T) {
	srv, _ := newServer(t)
	url := srv.URL + "/ws/subscriptions/rpm"

	_, body, _ := do(t, http.MethodPut, url+"?uri=vehicle/data/EngineRPM&buffer=queue&interval=10&interval=20")
	assert.JSONEq(t, `{"uri": "vehicle/data/EngineRPM", "buffer": "queue", "interval": "10"}`, body)

	_, body, _ = do(t, http.MethodGet, url)
	assert.JSONEq(t, `{"subscription": {"uri": "vehicle/data/EngineRPM", "buffer": "queue", "interval": "10"}}`, body)

	_, body, _ = do(t, http.MethodDelete, url)
	assert.JSONEq(t, `{"subscription": {"uri": "vehicle/data/EngineRPM", "buffer": "queue", "interval": "10"}}`, body)

	_, body, _ = do(t, http.MethodGet, url)
	assert.Equal(t, "null", body)
}

func TestHTTPAlarm(t *testing.T) {
	srv, _ := newServer(t)

	_, body, _ := do(t, http.MethodPut, srv.URL+"/ws/alarms/overheat")
	assert.Equal(t, `"overheat"`, body)

	_, body, _ = do(t, http.MethodGet, srv.URL+"/ws/alarms")
	assert.JSONEq(t, `{"alarms": ["alarms/overheat"]}`, body)
}
