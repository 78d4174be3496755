package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/consentscan/internal/app"
	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/policytext"
	"github.com/raysh454/consentscan/internal/scanner"
	"github.com/raysh454/consentscan/internal/store"
)

// maxBodyBytes caps request bodies; policy texts are the largest payload.
const maxBodyBytes = 1 << 20

// Server is the HTTP + WebSocket API surface of the compliance scanner.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	store        *store.Store
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a new Server with its own store, scanner and
// orchestrator.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.AppConfig.Server.ListenAddr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	dbPath, err := cfg.AppConfig.DBPath()
	if err != nil {
		return nil, fmt.Errorf("expanding storage root path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory: %w", err)
	}
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening analysis store: %w", err)
	}

	renderer := cfg.Renderer
	if renderer == nil {
		ctrl, err := browser.NewRenderer(cfg.AppConfig.Browser, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating renderer: %w", err)
		}
		renderer = ctrl
	}
	sc, err := scanner.New(cfg.AppConfig.Scanner, renderer, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating scanner: %w", err)
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: app.NewOrchestrator(cfg.AppConfig, sc, st, logger),
		store:        st,
		router:       r,
		logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/users/{user}/analyses", s.optionsHandler("GET, POST"))
	r.Options("/analyses/{id}", s.optionsHandler("GET"))
	r.Options("/users/{user}/jobs/scan", s.optionsHandler("POST"))
	r.Options("/jobs", s.optionsHandler("GET"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))
	r.Options("/policy/analyze", s.optionsHandler("POST"))

	r.Get("/healthz", s.handleHealth)

	// Scans
	r.Post("/scan", s.handleScan)

	// Analysis history
	r.Post("/users/{user}/analyses", s.handleCreateAnalysis)
	r.Get("/users/{user}/analyses", s.handleListAnalyses)
	r.Get("/analyses/{id}", s.handleGetAnalysis)

	// Jobs over REST
	r.Post("/users/{user}/jobs/scan", s.handleStartScanJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for job progress
	r.Get("/ws/users/{user}/scan", s.handleScanWS)

	// Policy text review
	r.Post("/policy/analyze", s.handleAnalyzePolicy)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.AppConfig.Server.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes)); err == nil {
			fields = append(fields, logging.Field{Key: "body_bytes", Value: len(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // scans and websockets outlive any fixed write timeout
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeScanError maps a failed scan to a response. Bad input is the
// caller's fault; everything else is the remote site's or the browser's.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	var se *model.ScanError
	switch {
	case errors.Is(err, app.ErrEmptyURL):
		writeError(w, http.StatusBadRequest, "missing url")
	case errors.As(err, &se) && se.Kind == model.KindInvalidTarget:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: se.Reason(), Kind: string(se.Kind)})
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: se.Reason(), Kind: string(se.Kind)})
	case errors.Is(err, store.ErrMissingUser):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Scans

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if err := decodeBody(r, &body); err != nil {
		s.logger.Warn("decoding scan body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.orchestrator.Scan(r.Context(), body.URL)
	if err != nil {
		s.logger.Warn("scanning site", logging.Field{Key: "url", Value: body.URL}, logging.Field{Key: "error", Value: err.Error()})
		s.writeScanError(w, err)
		return
	}
	s.logger.Info("scanned site", logging.Field{Key: "url", Value: body.URL}, logging.Field{Key: "score", Value: res.Score})
	writeJSON(w, http.StatusOK, newScanResponse(res))
}

// Analyses

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var body ScanRequest
	if err := decodeBody(r, &body); err != nil {
		s.logger.Warn("decoding analysis body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	a, err := s.orchestrator.ScanAndSave(r.Context(), user, body.URL)
	if err != nil {
		s.logger.Warn("creating analysis", logging.Field{Key: "user", Value: user}, logging.Field{Key: "error", Value: err.Error()})
		s.writeScanError(w, err)
		return
	}
	s.logger.Info("created analysis", logging.Field{Key: "user", Value: user}, logging.Field{Key: "id", Value: a.ID})
	writeJSON(w, http.StatusCreated, newAnalysisResponse(a))
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	list, err := s.orchestrator.ListAnalyses(r.Context(), user, limit)
	if err != nil {
		s.logger.Warn("listing analyses", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]AnalysisResponse, 0, len(list))
	for i := range list {
		out = append(out, newAnalysisResponse(&list[i]))
	}
	s.logger.Info("listed analyses", logging.Field{Key: "user", Value: user}, logging.Field{Key: "count", Value: len(out)})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.orchestrator.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrAnalysisNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.logger.Warn("getting analysis", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(a))
}

// Jobs (REST)

func (s *Server) handleStartScanJob(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	var body ScanRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// The job outlives the request.
	job, err := s.orchestrator.StartScanJob(context.Background(), user, body.URL)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err.Error()})
		s.writeJobError(w, err)
		return
	}
	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "url", Value: body.URL})
	writeJSON(w, http.StatusAccepted, s.orchestrator.GetJob(job.ID))
}

func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmptyURL):
		writeError(w, http.StatusBadRequest, "missing url")
	case errors.Is(err, app.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	canceled := s.orchestrator.CancelJob(jobID)
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID}, logging.Field{Key: "was_running", Value: canceled})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	s.logger.Info("listed jobs", logging.Field{Key: "count", Value: len(jobs)})
	writeJSON(w, http.StatusOK, jobs)
}

// WebSockets

func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing url query parameter")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartScanJob(r.Context(), user, target)
	if err != nil {
		s.logger.Warn("starting scan job", logging.Field{Key: "error", Value: err.Error()})
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started scan job", logging.Field{Key: "job_id", Value: job.ID})
	_ = conn.WriteJSON(s.orchestrator.GetJob(job.ID))

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			s.orchestrator.CancelJob(job.ID)
			return
		}
	}
}

// Policy text

func (s *Server) handleAnalyzePolicy(w http.ResponseWriter, r *http.Request) {
	var body PolicyTextRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	recs, err := policytext.Analyze(body.Text)
	if errors.Is(err, policytext.ErrEmptyText) {
		writeError(w, http.StatusBadRequest, "no text received")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PolicyTextResponse{Recommendations: recs})
}
