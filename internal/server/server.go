// Package server exposes the recovery engine and the emergency extractor over
// HTTP for pipelines that do not link genrecover directly.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"genrecover/internal/config"
	"genrecover/internal/emergency"
	"genrecover/internal/logging"
	"genrecover/internal/metrics"
	"genrecover/internal/recovery"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = "X-Request-ID"

var (
	ErrEmptyBuffer    = errors.New("buffer is empty")
	ErrBufferTooLarge = errors.New("request body exceeds size limit")
)

// Analyzer is satisfied by *recovery.Engine.
type Analyzer interface {
	Analyze(buffer string, currentFiles map[string]string, plan *recovery.FilePlan) recovery.RecoveryResult
}

// RawExtractor is satisfied by *emergency.Extractor.
type RawExtractor interface {
	ExtractDetailed(buffer string, force bool) emergency.Result
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Buffer       string             `json:"buffer"`
	CurrentFiles map[string]string  `json:"currentFiles,omitempty"`
	Plan         *recovery.FilePlan `json:"plan,omitempty"`
}

// ExtractRequest is the body of POST /v1/extract.
type ExtractRequest struct {
	Buffer string `json:"buffer"`
	Force  bool   `json:"force"`
}

// ExtractResponse is the reply to POST /v1/extract. Files is null when
// nothing was recovered.
type ExtractResponse struct {
	Files  map[string]string `json:"files"`
	Found  bool              `json:"found"`
	Method string            `json:"method,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// Server serves analysis requests.
type Server struct {
	cfg             config.ServerConfig
	version         string
	shutdownTimeout time.Duration
	analyzer        Analyzer
	extractor       RawExtractor
	handler         http.Handler
}

// New creates a server for the given configuration.
func New(cfg *config.Config, analyzer Analyzer, extractor RawExtractor) *Server {
	s := &Server{
		cfg:             cfg.Server,
		version:         cfg.Version,
		shutdownTimeout: cfg.GetShutdownTimeout(),
		analyzer:        analyzer,
		extractor:       extractor,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/extract", s.handleExtract)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.EnableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	s.handler = withRequestID(metrics.Middleware(mux))
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := logging.Get(logging.CategoryServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Buffer == "" {
		s.fail(w, r, ErrEmptyBuffer)
		return
	}

	timer := logging.StartTimer(logging.CategoryPerformance, "analyze")
	result := s.analyzer.Analyze(req.Buffer, req.CurrentFiles, req.Plan)
	timer.Stop()

	metrics.RecordAnalysis(string(result.Action), len(req.Buffer), result.RecoveredCount)
	requestLogger(r).Info("analyze: %d bytes -> %s (%d files)", len(req.Buffer), result.Action, result.RecoveredCount)

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Buffer == "" {
		s.fail(w, r, ErrEmptyBuffer)
		return
	}

	res := s.extractor.ExtractDetailed(req.Buffer, req.Force)
	metrics.RecordEmergencyExtraction(len(req.Buffer), len(res.Files))
	requestLogger(r).Info("extract: %d bytes -> %d files", len(req.Buffer), len(res.Files))

	writeJSON(w, http.StatusOK, ExtractResponse{
		Files:  res.Files,
		Found:  len(res.Files) > 0,
		Method: res.Method,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// decode reads a JSON body no larger than the configured limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBufferTooLarge
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrBufferTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	requestLogger(r).Warn("request rejected: %v", err)
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryServer).Error("encode response: %v", err)
	}
}
