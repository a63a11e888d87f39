// Package httpserver is the server-rendered web client: the landing,
// auth, onboarding, dashboard and calculator pages.
package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/reclaimai/reclaim/internal/application/workflow"
	"github.com/reclaimai/reclaim/internal/application/workspace"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/middleware"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

const (
	defaultCookieName  = "reclaim_sid"
	defaultRestoreWait = 1500 * time.Millisecond
	defaultMaxUpload   = 50 << 20
)

type Options struct {
	Registry       *workspace.Registry
	CookieName     string
	CookieSecure   bool
	RestoreWait    time.Duration
	MaxUploadBytes int64
	Limiter        *middleware.RateLimiter
	Metrics        *middleware.Metrics
	Checkers       map[string]middleware.HealthChecker
	Log            *logger.Logger
}

type Router struct {
	registry     *workspace.Registry
	cookieName   string
	cookieSecure bool
	restoreWait  time.Duration
	maxUpload    int64
	metrics      *middleware.Metrics
	log          *logger.Logger
	views        *views
}

func NewRouter(o Options) http.Handler {
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.CookieName == "" {
		o.CookieName = defaultCookieName
	}
	if o.RestoreWait <= 0 {
		o.RestoreWait = defaultRestoreWait
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = defaultMaxUpload
	}
	r := &Router{
		registry:     o.Registry,
		cookieName:   o.CookieName,
		cookieSecure: o.CookieSecure,
		restoreWait:  o.RestoreWait,
		maxUpload:    o.MaxUploadBytes,
		metrics:      o.Metrics,
		log:          o.Log,
		views:        mustParseViews(),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(o.Log))
	if o.Metrics != nil {
		mux.Use(o.Metrics.Middleware)
		mux.Handle("/metrics", o.Metrics.Handler())
	}

	mux.Get("/health", middleware.HealthHandler(o.Checkers))
	mux.Get("/livez", middleware.LivenessHandler)

	// no session, no backend
	mux.Get("/calculator", r.wrap(r.handleCalculator))
	mux.Post("/calculator", r.wrap(r.handleCalculatorPress))

	mux.Group(func(public chi.Router) {
		public.Use(r.peekWorkspace)
		public.Get("/", r.wrap(r.handleLanding))
		public.Get("/login", r.wrap(r.handleLoginPage))
		public.Get("/register", r.wrap(r.handleRegisterPage))
	})

	mux.Group(func(web chi.Router) {
		web.Use(r.withWorkspace)

		web.Post("/logout", r.wrap(r.handleLogout))
		web.Group(func(limited chi.Router) {
			if o.Limiter != nil {
				limited.Use(o.Limiter.Middleware)
			}
			limited.Post("/login", r.wrap(r.handleLogin))
			limited.Post("/register", r.wrap(r.handleRegister))
		})

		web.Group(func(p chi.Router) {
			p.Use(r.requireSession)
			p.Get("/onboarding", r.wrap(r.handleOnboarding))
			p.Post("/onboarding", r.wrap(r.handleOnboardingNext))
			p.Get("/dashboard", r.wrap(r.handleDashboard))
			p.Post("/dashboard/evidence", r.wrap(r.handleUpload))
			p.Post("/dashboard/evidence/{id}/analyze", r.wrap(r.handleAnalyze))
			p.Post("/dashboard/evidence/{id}/delete", r.wrap(r.handleDelete))
			p.Post("/dashboard/reports", r.wrap(r.handleGenerateReport))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap turns handler errors into a notice plus a redirect back to the
// dashboard; an expired session goes to the login page instead.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		if failure.Is(err, failure.ErrUnauthorized) {
			if ws := workspaceFrom(req.Context()); ws != nil {
				ws.Notices.Warning("Your session has expired. Please sign in again.")
			}
			http.Redirect(w, req, "/login", http.StatusSeeOther)
			return
		}
		r.log.Error("request failed",
			"path", req.URL.Path,
			"request_id", middleware.RequestIDFrom(req.Context()),
			"error", err,
		)
		if ws := workspaceFrom(req.Context()); ws != nil {
			ws.Notices.Error(failure.Message(err))
			http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// outcome classifies a dashboard operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return middleware.OutcomeSuccess
	case errors.Is(err, workflow.ErrRefused), failure.Is(err, failure.ErrValidation):
		return middleware.OutcomeRefused
	default:
		return middleware.OutcomeFailure
	}
}
