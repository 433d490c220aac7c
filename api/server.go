/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the SPA frontend

ROUTE GROUPS:
  /api/auth/*            Sign-up / sign-in / sign-out (mostly public)
  /api/*                 Authenticated application routes
  /files/*               Uploaded documents (disk storage backend)
  /                      Landing page

AUTHENTICATION:
  The authenticated group runs auth.Middleware: a valid token AND a live
  session row are both required. Sign-out deliberately sits outside the
  group so an expired token can still clear its cookie.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coverclarity/coverage-engine/auth"
)

// RouterConfig carries the wiring the router needs beyond the handler.
type RouterConfig struct {
	Secret      string
	Sessions    auth.SessionChecker
	CORSOrigins []string

	// FilesDir, when set, serves uploaded documents at /files/ from the
	// local disk storage backend. Empty for the s3 backend.
	FilesDir string

	// Scenarios, when set, mounts the demo-data routes. Dev deployments
	// only: loading a scenario wipes the database.
	Scenarios *Scenarios
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	authed := auth.Middleware(cfg.Secret, cfg.Sessions)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.Post("/signout", h.SignOut)
		})

		// Demo scenarios (dev deployments only)
		if cfg.Scenarios != nil {
			r.Get("/scenarios", cfg.Scenarios.List)
			r.Post("/scenarios/load", cfg.Scenarios.Load)
		}

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authed)

			r.Get("/session", h.GetSession)

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListPolicies)
				r.Post("/", h.CreatePolicy)
				r.Get("/{id}", h.GetPolicy)
				r.Put("/{id}", h.UpdatePolicy)
			})

			r.Get("/dashboard", h.Dashboard)

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/", h.ListRecommendations)
				r.Post("/", h.AddRecommendation)
				r.Post("/{id}/dismiss", h.DismissRecommendation)
				r.Post("/{id}/complete", h.CompleteRecommendation)
			})
		})
	})

	// Uploaded documents (disk backend only; the s3 backend serves its own)
	if cfg.FilesDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
		r.Get("/files/*", fileServer.ServeHTTP)
	}

	// Landing page
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>CoverClarity</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>CoverClarity</h1>
<p>All your insurance policies and warranties, tracked in one place.</p>
<h2>API Endpoints</h2>
<ul>
<li><code>POST /api/auth/signup</code> - Create an account</li>
<li><code>POST /api/auth/signin</code> - Sign in</li>
<li><code>GET /api/policies</code> - Your policies</li>
<li><code>GET /api/dashboard</code> - Coverage overview</li>
</ul>
</body>
</html>`))
	})

	return r
}
