// Package funcserver hosts the analyze-evidence and generate-report
// functions behind the /functions/v1 prefix.
package funcserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/middleware"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

const maxBodyBytes = 1 << 20

type Analyzer interface {
	Analyze(ctx context.Context, userID string, req evidence.AnalyzeRequest) (evidence.Analysis, error)
}

type Reporter interface {
	Generate(ctx context.Context, userID string, req evidence.ReportRequest) (string, error)
}

type Options struct {
	AnalyzeName    string
	ReportName     string
	AllowedOrigins []string
	JWTSecret      []byte
	Limiter        *middleware.RateLimiter
	Metrics        *middleware.Metrics
	Checkers       map[string]middleware.HealthChecker
	Log            *logger.Logger
}

type Router struct {
	analyzer Analyzer
	reporter Reporter
	metrics  *middleware.Metrics
	log      *logger.Logger
}

func NewRouter(analyzer Analyzer, reporter Reporter, o Options) http.Handler {
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.AnalyzeName == "" {
		o.AnalyzeName = "analyze-evidence"
	}
	if o.ReportName == "" {
		o.ReportName = "generate-report"
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	r := &Router{analyzer: analyzer, reporter: reporter, metrics: o.Metrics, log: o.Log}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(o.Log))
	if o.Metrics != nil {
		mux.Use(o.Metrics.Middleware)
		mux.Handle("/metrics", o.Metrics.Handler())
	}
	mux.Get("/health", middleware.HealthHandler(o.Checkers))
	mux.Get("/livez", middleware.LivenessHandler)

	mux.Route("/functions/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
			MaxAge:         300,
		}))
		if o.Limiter != nil {
			rt.Use(o.Limiter.Middleware)
		}
		rt.Options("/*", preflight)
		rt.Group(func(p chi.Router) {
			p.Use(middleware.BearerJWT(o.JWTSecret))
			p.Post("/"+o.AnalyzeName, r.wrap(r.handleAnalyze))
			p.Post("/"+o.ReportName, r.wrap(r.handleReport))
		})
	})

	return mux
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap renders every failure as the {error} envelope with status 500.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.log.Error("function failed",
				"path", req.URL.Path,
				"request_id", middleware.RequestIDFrom(req.Context()),
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Function error: " + failure.Message(err),
			})
		}
	}
}

// POST /functions/v1/analyze-evidence
// Body: {"evidenceId": "<id>", "filePath": "<userID>/<millis>-<name>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body evidence.AnalyzeRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if id := strings.TrimSpace(body.EvidenceID); id != "" {
		if err := middleware.ValidateEvidenceID(id); err != nil {
			return failure.Validation("%s", err.Error())
		}
	}
	if err := middleware.ValidateStoragePath(body.FilePath); err != nil {
		return failure.Validation("%s", err.Error())
	}

	a, err := r.analyzer.Analyze(req.Context(), auth.UserIDFrom(req.Context()), body)
	if err != nil {
		r.metrics.Record(middleware.EventAnalyze, middleware.OutcomeFailure)
		return err
	}
	r.metrics.Record(middleware.EventAnalyze, middleware.OutcomeSuccess)

	writeJSON(w, http.StatusOK, evidence.AnalyzeResponse{Result: &evidence.AnalysisPayload{
		Summary:    a.Summary,
		Labels:     a.Labels,
		Severity:   a.Severity,
		Score:      a.Score,
		AnalyzedAt: a.AnalyzedAt.UTC().Format(time.RFC3339Nano),
	}})
	return nil
}

// POST /functions/v1/generate-report
// Body: {"evidenceIds": ["<id>", ...]}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	var body evidence.ReportRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	for _, id := range body.EvidenceIDs {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if err := middleware.ValidateEvidenceID(id); err != nil {
			return failure.Validation("%s: %q", err.Error(), id)
		}
	}

	url, err := r.reporter.Generate(req.Context(), auth.UserIDFrom(req.Context()), body)
	if err != nil {
		r.metrics.Record(middleware.EventReport, middleware.OutcomeFailure)
		return err
	}
	r.metrics.Record(middleware.EventReport, middleware.OutcomeSuccess)

	writeJSON(w, http.StatusOK, evidence.ReportResponse{ReportURL: url})
	return nil
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return failure.Validation("Request body is too large.")
		}
		return failure.Validation("Request body is missing or invalid: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
