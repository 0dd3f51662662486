package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denisok6893-rgb/neighborfit/internal/domain"
	"github.com/denisok6893-rgb/neighborfit/internal/matching"
	"github.com/denisok6893-rgb/neighborfit/internal/observability"
	"github.com/denisok6893-rgb/neighborfit/internal/storage"
)

// NeighborhoodStore is the read model behind the browse and detail routes.
type NeighborhoodStore interface {
	GetNeighborhood(ctx context.Context, id string) (domain.NeighborhoodCandidate, error)
	ListNeighborhoods(ctx context.Context, f storage.BrowseFilter) ([]domain.NeighborhoodCandidate, int, error)
}

type Options struct {
	// ResultsDelay is the pause before the results page renders.
	ResultsDelay time.Duration
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	Engine *matching.Engine
	Store  NeighborhoodStore

	resultsDelay time.Duration
	logger       *observability.Logger
	metrics      *observability.Metrics
	gatherer     prometheus.Gatherer
	views        *views
}

func NewServer(engine *matching.Engine, store NeighborhoodStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Server{
		Engine:       engine,
		Store:        store,
		resultsDelay: opts.ResultsDelay,
		logger:       logger,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		views:        mustParseViews(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST /api/match", s.handleMatch)
	mux.HandleFunc("POST /api/questionnaire", s.handleQuestionnaire)
	mux.HandleFunc("GET /api/questionnaire/steps", s.handleQuestionnaireSteps)
	mux.HandleFunc("GET /api/neighborhoods", s.handleNeighborhoodsList)
	mux.HandleFunc("GET /api/neighborhoods/{id}", s.handleNeighborhoodGet)

	mux.HandleFunc("GET /{$}", s.handleLandingView)
	mux.HandleFunc("GET /questionnaire", s.handleQuestionnaireView)
	mux.HandleFunc("POST /questionnaire", s.handleQuestionnaireSubmit)
	mux.HandleFunc("GET /results", s.handleResultsView)
	mux.HandleFunc("POST /results", s.handleResultsView)
	mux.HandleFunc("GET /neighborhoods", s.handleBrowseView)
	mux.HandleFunc("GET /neighborhoods/{id}", s.handleDetailView)

	return s.withLogging(s.withCORS(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func parseLimitOffset(r *http.Request, defLimit, defOffset int) (int, int) {
	q := r.URL.Query()

	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defLimit
	}
	// safety cap
	if limit > 200 {
		limit = 200
	}

	offset := defOffset
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = defOffset
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging tags the request with an id, logs it and counts it by route.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(observability.WithRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, rec.status)
		s.logger.InfoContext(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
