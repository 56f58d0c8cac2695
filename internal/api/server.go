// Package api implements the HTTP API in front of the agent service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/pragasv/sola-labs-demo/internal/agent"
	"github.com/pragasv/sola-labs-demo/internal/buildinfo"
	"github.com/pragasv/sola-labs-demo/internal/creative"
	"github.com/pragasv/sola-labs-demo/internal/metrics"
)

// maxUploadBytes bounds multipart request bodies.
const maxUploadBytes = 32 << 20

// internalErrorMessage is the body of every 500 response. The cause is
// logged, never returned.
const internalErrorMessage = "internal error processing the request"

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// MetricsSummarizer aggregates stored metrics rows. *metrics.SQLiteSink
// implements it.
type MetricsSummarizer interface {
	Summary(ctx context.Context, start, end time.Time) (*metrics.Summary, error)
	SummaryByStep(ctx context.Context, start, end time.Time) (map[string]*metrics.Summary, error)
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	service *agent.Service
	metrics MetricsSummarizer
	origins []string
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a server for svc.
func NewServer(address string, port int, svc *agent.Service, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		service: svc,
		logger:  logger.With("component", "api"),
	}
}

// SetMetricsStore enables the metrics summary endpoint.
func (s *Server) SetMetricsStore(ms MetricsSummarizer) {
	s.metrics = ms
}

// SetAllowedOrigins configures the browser origins allowed by CORS.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.origins = origins
}

// Handler returns the routed handler with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /agent/process", s.handleProcess)
	mux.HandleFunc("POST /creative/react", s.handleCreativeReact)

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Router introspection endpoints
	mux.HandleFunc("GET /v1/router/stats", s.handleRouterStats)
	mux.HandleFunc("GET /v1/router/audit", s.handleRouterAudit)
	mux.HandleFunc("GET /v1/router/explain/{requestId}", s.handleRouterExplain)

	mux.HandleFunc("GET /v1/metrics/summary", s.handleMetricsSummary)

	mux.HandleFunc("GET /v1/memory", s.handleMemory)
	mux.HandleFunc("DELETE /v1/memory", s.handleMemoryClear)

	return s.withLogging(s.withCORS(mux))
}

// Start begins serving HTTP requests. It returns when the server stops.
func (s *Server) Start(ctx context.Context) error {
	// A run makes several sequential model calls, hence the long write
	// timeout.
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// withCORS answers preflight requests and echoes allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && slices.Contains(s.origins, origin)
		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.WriteHeader(http.StatusNoContent)
			} else {
				w.WriteHeader(http.StatusForbidden)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "VitaRoute",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

// AnswerResponse is the body returned by the agent and creative
// endpoints.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) writeAnswer(w http.ResponseWriter, answer string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AnswerResponse{Answer: answer}, s.logger)
}

// requiredField returns a multipart form value that must be present.
// An empty value is allowed; a missing one is not.
func requiredField(r *http.Request, name string) (string, error) {
	if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
		return vs[0], nil
	}
	return "", fmt.Errorf("%s is required", name)
}

// readFile reads an uploaded file. A missing optional file yields nil.
func readFile(r *http.Request, name string) ([]byte, *multipart.FileHeader, error) {
	f, hdr, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, hdr, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	prompt, err := requiredField(r, "prompt_text")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	file, hdr, err := readFile(r, "file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid file: "+err.Error())
		return
	}
	if hdr != nil {
		s.logger.Debug("attachment received", "filename", hdr.Filename, "bytes", len(file))
	}

	answer, err := s.service.Process(r.Context(), prompt, file)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyPrompt) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("agent request failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	s.writeAnswer(w, answer)
}

func (s *Server) handleCreativeReact(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	headline, err := requiredField(r, "headline")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	personas, err := requiredField(r, "personas_json")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	image, hdr, err := readFile(r, "image")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}
	if hdr == nil {
		s.errorResponse(w, http.StatusBadRequest, "image is required")
		return
	}
	mime := hdr.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = creative.DefaultMIMEType
	}

	s.writeAnswer(w, s.service.CreativeReact(r.Context(), headline, personas, image, mime))
}

// Router introspection handlers

func (s *Server) handleRouterStats(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Orchestrator().Audit().Stats()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats, s.logger)
}

func (s *Server) handleRouterAudit(w http.ResponseWriter, r *http.Request) {
	decisions := s.service.Orchestrator().Audit().Log(parseIntParam(r, "limit", 20))
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"count":     len(decisions),
		"decisions": decisions,
	}, s.logger)
}

func (s *Server) handleRouterExplain(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestId")
	decision := s.service.Orchestrator().Audit().Explain(requestID)
	if decision == nil {
		s.errorResponse(w, http.StatusNotFound, "decision not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, decision, s.logger)
}

// handleMetricsSummary aggregates metrics rows between ?since and
// ?until (RFC 3339). The default window is the last 24 hours. With
// ?by=step the summary is broken down per step.
func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "metrics store not configured")
		return
	}
	end := time.Now()
	start := end.Add(-24 * time.Hour)
	var err error
	if v := r.URL.Query().Get("since"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid since: "+err.Error())
			return
		}
	}
	if v := r.URL.Query().Get("until"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid until: "+err.Error())
			return
		}
	}

	var result any
	if r.URL.Query().Get("by") == "step" {
		result, err = s.metrics.SummaryByStep(r.Context(), start, end)
	} else {
		result, err = s.metrics.Summary(r.Context(), start, end)
	}
	if err != nil {
		s.logger.Error("metrics summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"since":   start.UTC(),
		"until":   end.UTC(),
		"summary": result,
	}, s.logger)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	entries, total, err := s.service.RecentMemory(r.Context(), parseIntParam(r, "limit", 0))
	if err != nil {
		s.logger.Error("memory read failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"count":   len(entries),
		"total":   total,
		"entries": entries,
	}, s.logger)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearMemory(r.Context()); err != nil {
		s.logger.Error("memory clear failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	s.logger.Info("memory cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
