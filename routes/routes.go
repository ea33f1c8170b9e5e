package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/internship-placement/app"
	"github.com/upb/internship-placement/handlers"
	"github.com/upb/internship-placement/identity"
	"github.com/upb/internship-placement/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics.HTTPStarted))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.Logger, deps.HealthChecks()...)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	apps := handlers.NewApplicationHandler(deps.Applications, deps.Config.Server.MaxUploadBytes, deps.Logger)
	auth := deps.AuthMiddleware

	// API v1 routes, all authenticated
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Route("/applications", func(r chi.Router) {
			r.With(auth.RequireRole(identity.RoleStudent, identity.RoleAdmin)).Post("/", apps.HandleSubmit)
			r.Get("/{id}", apps.HandleGet)
			r.Get("/{id}/cv", apps.HandleGetCV)
			r.Get("/{id}/history", apps.HandleHistory)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(identity.RoleCompany, identity.RoleAdmin))
				r.Post("/{id}/accept", apps.HandleAccept)
				r.Post("/{id}/reject", apps.HandleReject)
			})
		})

		r.Route("/students/{id}", func(r chi.Router) {
			r.Get("/applications", apps.HandleListByStudent)
			r.Get("/quota", apps.HandleStudentQuota)
			r.Get("/notifications", apps.HandleStudentNotifications)
		})

		r.Get("/companies/{id}/applications", apps.HandleListByCompany)
		r.Get("/internships/{id}/applications", apps.HandleListByInternship)

		// Quota administration (require admin role)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(identity.RoleAdmin))
			r.Get("/quota", apps.HandleGetQuotaCap)
			r.Put("/quota", apps.HandleSetQuotaCap)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"endpoint not found"}`))
	})

	return r
}
