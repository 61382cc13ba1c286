package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rodneygagnon/qckstrt/internal/api/handlers"
	"github.com/rodneygagnon/qckstrt/internal/api/middleware"
	"github.com/rodneygagnon/qckstrt/internal/auth"
	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/events"
)

type Deps struct {
	Documents    *document.Service
	Orchestrator handlers.Asker
	Events       handlers.EventAdapter
	Verifier     events.Verifier
	Auth         *auth.JWTMiddleware
	Checks       map[string]handlers.Check
	Logger       *slog.Logger

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	rl   *middleware.RateLimiter
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	if deps.RateLimitRPS <= 0 {
		deps.RateLimitRPS = 100
	}
	if deps.RateLimitBurst <= 0 {
		deps.RateLimitBurst = 200
	}
	if deps.Verifier == nil {
		deps.Verifier = events.UnverifiedVerifier{}
	}
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
		rl:   middleware.NewRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst),
	}
}

// Close releases the rate limiter's background sweeper.
func (rt *Router) Close() {
	rt.rl.Close()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(rt.deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.deps.AllowedOrigins))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Storage notifications authenticate with a body signature, not a token.
	evh := handlers.NewEventHandler(rt.deps.Events, rt.deps.Verifier)
	r.Route("/events", func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Post("/storage", evh.Storage)
		r.Post("/cloudevents", evh.CloudEvent)
	})

	docs := handlers.NewDocumentHandler(rt.deps.Documents)
	ragH := handlers.NewRAGHandler(rt.deps.Orchestrator)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.deps.Auth.Authenticate)
		r.Use(rt.rl.Limit)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docs.Register)
			r.Get("/", docs.List)
			r.Get("/{id}", docs.Get)
			r.Delete("/{id}", docs.Delete)
		})

		r.Post("/rag/query", ragH.Query)
	})

	return r
}
