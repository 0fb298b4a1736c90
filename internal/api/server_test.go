package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vitals.link/internal/db"
	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/receiver"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/visualiser"
)

type fakeStore struct {
	readings  []db.Reading
	err       error
	lastLimit int
}

func (f *fakeStore) RecentReadings(limit int) ([]db.Reading, error) {
	f.lastLimit = limit
	return f.readings, f.err
}

type failingMux struct {
	*serialmux.DisabledSerialMux
}

func (failingMux) SendCommand(string) error { return errors.New("port closed") }

type testEnv struct {
	rx    *receiver.Receiver
	store *fakeStore
	mux   *http.ServeMux
}

func newTestEnv(t *testing.T, m serialmux.SerialMuxInterface) *testEnv {
	t.Helper()
	if m == nil {
		m = serialmux.NewDisabledSerialMux()
	}
	analyzer := nrz.NewAnalyzer(nrz.FixedNoise(1.0))
	rx := receiver.New(m, receiver.Options{Analyzer: analyzer})
	store := &fakeStore{}
	srv := NewServer(m, rx, Options{Store: store, Analyzer: analyzer})
	return &testEnv{rx: rx, store: store, mux: srv.ServeMux()}
}

func (e *testEnv) do(method, target string, body url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["version"])
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/api/trace", "/api/frames", "/api/encode", "/api/readings", "/api/summary", "/charts/trace", "/charts/trace.png"} {
		rec := env.do(http.MethodPost, path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}

	rec := env.do(http.MethodGet, "/api/command", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTraceNotFoundBeforeFirstFrame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/trace", "/charts/trace", "/charts/trace.png"} {
		rec := env.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestTraceReturnsLatestFrame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	_, err := env.rx.HandleLine("70,97")
	require.NoError(t, err)
	want, err := env.rx.HandleLine("72,98")
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tr visualiser.Trace
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tr))
	assert.Equal(t, want.Trace.Bits, tr.Bits)
	assert.Equal(t, want.Metrics.SQI, tr.SQI)
	assert.Equal(t, visualiser.SNR(want.Metrics.SNR), tr.SNR)
	assert.Len(t, tr.Points, len(want.Trace.Points))
}

func TestTraceSNRIsOneDecimalString(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	_, err := env.rx.HandleLine("72,98")
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	var snr string
	require.NoError(t, json.Unmarshal(raw["snr"], &snr))
	assert.Regexp(t, `^\d+\.\d$`, snr)
}

func TestFramesAndSummary(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, line := range []string{"60,96", "70,97", "80,98"} {
		_, err := env.rx.HandleLine(line)
		require.NoError(t, err)
	}

	rec := env.do(http.MethodGet, "/api/frames", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var frames []receiver.Frame
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&frames))
	require.Len(t, frames, 3)
	assert.Equal(t, 60, frames[0].Sample.HeartRate)
	assert.Equal(t, 80, frames[2].Sample.HeartRate)

	rec = env.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum receiver.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	assert.Equal(t, 3, sum.Frames)
	assert.InDelta(t, 70.0, sum.HeartRateMean, 1e-9)
	assert.InDelta(t, 97.0, sum.SpO2Mean, 1e-9)
}

func TestEncode(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/encode?hr=72&spo2=104", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EncodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	bits := nrz.GeneratePacketBitstream(72, 100)
	assert.Equal(t, 100, resp.Sample.SpO2)
	assert.Equal(t, "72,100\n", resp.Payload)
	assert.Equal(t, bits.String(), resp.Bitstream)
	assert.Equal(t, bits.Ints(), resp.Trace.Bits)

	want := nrz.NewAnalyzer(nrz.FixedNoise(1.0)).CalculateMetrics(bits)
	assert.Equal(t, want.SQI, resp.Trace.SQI)
	assert.Equal(t, visualiser.SNR(want.SNR), resp.Trace.SNR)
}

func TestEncodeBadRequest(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, q := range []string{"", "?hr=72", "?spo2=98", "?hr=x&spo2=98", "?hr=72&spo2=-1", "?hr=72&spo2=256", "?hr=70000&spo2=98"} {
		rec := env.do(http.MethodGet, "/api/encode"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestReadings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.store.readings = []db.Reading{{ID: "a", HeartRate: 72, SpO2: 98, AlarmPriority: "none"}}

	rec := env.do(http.MethodGet, "/api/readings?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.store.lastLimit)

	var readings []db.Reading
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&readings))
	require.Len(t, readings, 1)
	assert.Equal(t, "a", readings[0].ID)

	rec = env.do(http.MethodGet, "/api/readings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultReadingsLimit, env.store.lastLimit)

	rec = env.do(http.MethodGet, "/api/readings?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.store.err = errors.New("database is locked")
	rec = env.do(http.MethodGet, "/api/readings", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReadingsWithoutStore(t *testing.T) {
	t.Parallel()
	m := serialmux.NewDisabledSerialMux()
	srv := NewServer(m, receiver.New(m, receiver.Options{}), Options{})

	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/readings", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(http.MethodPost, "/api/command", url.Values{"command": {"?"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/command", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env = newTestEnv(t, failingMux{serialmux.NewDisabledSerialMux()})
	rec = env.do(http.MethodPost, "/api/command", url.Values{"command": {"?"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTraceChart(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/charts/trace?hr=72&spo2=98", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "HR 72 SpO2 98")

	rec = env.do(http.MethodGet, "/charts/trace?hr=72", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := env.rx.HandleLine("65,99")
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/charts/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HR 65 SpO2 99")
}

func TestTracePNG(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/charts/trace.png?hr=72&spo2=98", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusCodeColor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
