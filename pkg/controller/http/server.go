package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hivemind-lab/hivemind/pkg/model"
	"github.com/hivemind-lab/hivemind/pkg/usecase/mission"
	"github.com/hivemind-lab/hivemind/pkg/utils/logging"
	"github.com/hivemind-lab/hivemind/pkg/utils/metrics"
)

// Dispatcher runs missions for the HTTP surface
type Dispatcher interface {
	Dispatch(ctx context.Context, query string, force []string) (*model.Mission, error)
	Stream(ctx context.Context, query string, force []string) <-chan mission.Event
}

// StatsSource exposes one store's statistics under a name
type StatsSource func(ctx context.Context) (string, any)

type Server struct {
	router     *chi.Mux
	dispatcher Dispatcher
	agents     []model.AgentSpec
	tracker    *metrics.Tracker
	stats      []StatsSource
}

type Option func(*Server)

// WithAgents publishes the roster on GET /agents
func WithAgents(specs []model.AgentSpec) Option {
	return func(s *Server) {
		s.agents = specs
	}
}

// WithTracker includes execution metrics in GET /stats
func WithTracker(t *metrics.Tracker) Option {
	return func(s *Server) {
		s.tracker = t
	}
}

// WithStatsSource adds a store's statistics to GET /stats
func WithStatsSource(src StatsSource) Option {
	return func(s *Server) {
		s.stats = append(s.stats, src)
	}
}

func New(dispatcher Dispatcher, opts ...Option) *Server {
	r := chi.NewRouter()
	s := &Server{
		router:     r,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/agents", s.handleAgents)
	r.Post("/query", s.handleQuery)
	r.Post("/v1/chat/completions", s.handleChatCompletions)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger logs every HTTP request
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"name":    "hivemind",
		"version": "0.1.0",
		"endpoints": []string{
			"GET /health",
			"GET /stats",
			"GET /agents",
			"POST /query",
			"POST /v1/chat/completions",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	for _, src := range s.stats {
		name, value := src(r.Context())
		resp[name] = value
	}
	if s.tracker != nil {
		resp["metrics"] = s.tracker.Snapshot()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"agents": s.agents})
}

type queryRequest struct {
	Query  string   `json:"query"`
	Agents []string `json:"agents,omitempty"`
}

type queryResponse struct {
	Query        string          `json:"query"`
	Plan         []string        `json:"plan"`
	Answer       string          `json:"answer"`
	DurationMS   float64         `json:"duration_ms"`
	AgentReports []*model.Report `json:"agent_reports"`
	Failures     []model.Failure `json:"failures"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		respondError(w, r, http.StatusBadRequest, "query is required")
		return
	}

	m, err := s.dispatcher.Dispatch(r.Context(), req.Query, req.Agents)
	if err != nil {
		logging.From(r.Context()).Error("dispatch failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "mission dispatch failed")
		return
	}

	respondJSON(w, http.StatusOK, queryResponse{
		Query:        m.Query,
		Plan:         m.Plan,
		Answer:       m.Answer,
		DurationMS:   m.DurationMS(),
		AgentReports: m.Reports,
		Failures:     m.Failures,
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}
