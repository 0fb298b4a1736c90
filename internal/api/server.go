// Package api serves the decoded frames, link metrics and stored readings
// over HTTP.
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/vitals.link/internal/db"
	"github.com/banshee-data/vitals.link/internal/httputil"
	"github.com/banshee-data/vitals.link/internal/monitoring"
	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/receiver"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/version"
	"github.com/banshee-data/vitals.link/internal/visualiser"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

var logf = monitoring.Prefixed("api")

// ANSI escape codes for the request log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 10000
	maxHeartRate         = 65535
)

// FrameSource is the receiver state the API reads.
type FrameSource interface {
	Latest() (receiver.Frame, bool)
	History() []receiver.Frame
	Summary() receiver.Summary
}

// ReadingStore lists stored readings. *db.DB satisfies it.
type ReadingStore interface {
	RecentReadings(limit int) ([]db.Reading, error)
}

type Server struct {
	m        serialmux.SerialMuxInterface
	frames   FrameSource
	store    ReadingStore
	analyzer *nrz.Analyzer
	profile  vitals.AlarmProfile
}

type Options struct {
	// Store may be nil, in which case /api/readings reports 503.
	Store ReadingStore
	// Analyzer scores /api/encode results; nil uses a randomly seeded one.
	Analyzer *nrz.Analyzer
	Profile  vitals.AlarmProfile
}

func NewServer(m serialmux.SerialMuxInterface, frames FrameSource, opts Options) *Server {
	s := &Server{
		m:        m,
		frames:   frames,
		store:    opts.Store,
		analyzer: opts.Analyzer,
		profile:  opts.Profile,
	}
	if s.analyzer == nil {
		s.analyzer = nrz.NewAnalyzer(nil)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/trace", s.showTrace)
	mux.HandleFunc("/api/frames", s.listFrames)
	mux.HandleFunc("/api/encode", s.encode)
	mux.HandleFunc("/api/readings", s.listReadings)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/api/command", s.sendCommandHandler)
	mux.HandleFunc("/charts/trace", s.traceChart)
	mux.HandleFunc("/charts/trace.png", s.tracePNG)
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) showTrace(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	f, ok := s.frames.Latest()
	if !ok {
		httputil.NotFound(w, "no frame received yet")
		return
	}
	httputil.WriteJSONOK(w, f.Trace)
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.frames.History())
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.frames.Summary())
}

// EncodeResponse is the result of /api/encode.
type EncodeResponse struct {
	Sample    vitals.Sample    `json:"sample"`
	Payload   string           `json:"payload"`
	Bitstream string           `json:"bitstream"`
	Alarm     vitals.Alarm     `json:"alarm"`
	Trace     visualiser.Trace `json:"trace"`
}

func (s *Server) encode(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	sample, err := sampleFromQuery(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.encodeSample(sample))
}

func (s *Server) encodeSample(sample vitals.Sample) EncodeResponse {
	sample = sample.Clamped()
	bits := nrz.GeneratePacketBitstream(sample.HeartRate, sample.SpO2)
	return EncodeResponse{
		Sample:    sample,
		Payload:   sample.Payload(),
		Bitstream: bits.String(),
		Alarm:     s.profile.Classify(sample),
		Trace:     visualiser.NewTrace(bits, s.analyzer.CalculateMetrics(bits)),
	}
}

// sampleFromQuery reads hr and spo2. Both are required.
func sampleFromQuery(r *http.Request) (vitals.Sample, error) {
	q := r.URL.Query()
	if q.Get("hr") == "" || q.Get("spo2") == "" {
		return vitals.Sample{}, fmt.Errorf("'hr' and 'spo2' parameters are required")
	}
	hr, err := httputil.QueryInt(r, "hr", 0, 0, maxHeartRate)
	if err != nil {
		return vitals.Sample{}, err
	}
	spo2, err := httputil.QueryInt(r, "spo2", 0, 0, 255)
	if err != nil {
		return vitals.Sample{}, err
	}
	return vitals.Sample{HeartRate: hr, SpO2: spo2}, nil
}

func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "reading storage is disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultReadingsLimit, 1, maxReadingsLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	readings, err := s.store.RecentReadings(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve readings: %v", err))
		return
	}
	httputil.WriteJSONOK(w, readings)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "'command' is required")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to send command: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "sent"})
}

// chartTrace resolves the trace a chart endpoint draws: the encoded
// hr/spo2 from the query when given, otherwise the latest frame.
func (s *Server) chartTrace(w http.ResponseWriter, r *http.Request) (visualiser.Trace, string, bool) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return visualiser.Trace{}, "", false
	}
	q := r.URL.Query()
	if q.Has("hr") || q.Has("spo2") {
		sample, err := sampleFromQuery(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return visualiser.Trace{}, "", false
		}
		enc := s.encodeSample(sample)
		return enc.Trace, fmt.Sprintf("HR %d SpO2 %d", enc.Sample.HeartRate, enc.Sample.SpO2), true
	}
	f, ok := s.frames.Latest()
	if !ok {
		httputil.NotFound(w, "no frame received yet")
		return visualiser.Trace{}, "", false
	}
	return f.Trace, fmt.Sprintf("HR %d SpO2 %d", f.Sample.HeartRate, f.Sample.SpO2), true
}

func (s *Server) traceChart(w http.ResponseWriter, r *http.Request) {
	tr, title, ok := s.chartTrace(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := visualiser.RenderHTML(&buf, tr, title); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		logf("failed to write trace chart: %v", err)
	}
}

func (s *Server) tracePNG(w http.ResponseWriter, r *http.Request) {
	tr, title, ok := s.chartTrace(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := visualiser.WritePNG(&buf, tr, title); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := buf.WriteTo(w); err != nil {
		logf("failed to write trace png: %v", err)
	}
}
