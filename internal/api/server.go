// Package api exposes the HTTP interface for the scan service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitesage/webscan/internal/config"
	"github.com/sitesage/webscan/internal/dispatcher"
	"github.com/sitesage/webscan/internal/scan"
	"github.com/sitesage/webscan/internal/telemetry"
)

// Server wires HTTP handlers to the dispatcher and scan store.
type Server struct {
	router     chi.Router
	scanStore  scan.ScanStore
	dispatcher *dispatcher.Dispatcher
	idGen      scan.IDGenerator
	clock      scan.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	scanStore scan.ScanStore,
	dispatch *dispatcher.Dispatcher,
	idGen scan.IDGenerator,
	clock scan.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scanStore:  scanStore,
		dispatcher: dispatch,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", s.submitScan)
			r.Route("/{scan_id}", func(r chi.Router) {
				r.Get("/", s.getScan)
				r.Get("/report", s.getScanReport)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

// submitScanRequest accepts an optional caller-supplied scan_id; a fresh
// UUID is generated when it is absent. "url" is a legacy alias for
// "target_url".
type submitScanRequest struct {
	ScanID    string `json:"scan_id"`
	TargetURL string `json:"target_url"`
	URL       string `json:"url"`
}

func (s *Server) submitScan(w http.ResponseWriter, r *http.Request) {
	var req submitScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	raw := req.TargetURL
	if raw == "" {
		raw = req.URL
	}
	target, err := normalizeTargetURL(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scanID, err := s.enqueueScan(r.Context(), req.ScanID, target)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, scan.ErrAlreadyExists):
			status = http.StatusConflict
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"scan_id":  scanID,
	}, s.logger)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")
	sc, err := s.scanStore.Get(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch scan")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scan": sc}, s.logger)
}

func (s *Server) getScanReport(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")
	sc, err := s.scanStore.Get(r.Context(), scanID)
	if err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch scan")
		return
	}
	if sc.Status == scan.StatusPending || sc.Status == scan.StatusProcessing {
		s.writeError(w, http.StatusConflict, "scan is still running")
		return
	}
	if sc.Result == nil || sc.Result.Report == nil || len(sc.Result.Report.Bytes) == 0 {
		s.writeError(w, http.StatusNotFound, "no report available for this scan")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", scanID+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(sc.Result.Report.Bytes); err != nil {
		s.logger.Error("write report failed", zap.String("scan_id", scanID), zap.Error(err))
	}
}

func (s *Server) enqueueScan(ctx context.Context, scanID, target string) (string, error) {
	if scanID == "" {
		var err error
		scanID, err = s.idGen.NewID()
		if err != nil {
			return "", fmt.Errorf("generate scan id: %w", err)
		}
	}
	now := s.clock.Now()
	sc := scan.Scan{
		ID:        scanID,
		TargetURL: target,
		Status:    scan.StatusPending,
		CreatedAt: now,
	}
	if err := s.scanStore.Create(ctx, sc); err != nil {
		return "", fmt.Errorf("create scan: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := scan.QueueItem{
		ScanID:    scanID,
		TargetURL: target,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		return "", fmt.Errorf("enqueue scan: %w", err)
	}
	return scanID, nil
}

// normalizeTargetURL validates the submitted URL and defaults a missing
// scheme to https.
func normalizeTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", errors.New("url has no host")
	}
	return u.String(), nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		telemetry.ObserveHTTPRequest(r.Method, ww.status)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"}, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg}, s.logger)
}
