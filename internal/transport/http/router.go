package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-signup-api/internal/application/registration"
	"github.com/go-signup-api/internal/application/session"
	"github.com/go-signup-api/internal/application/user"
	"github.com/go-signup-api/internal/application/verification"
	"github.com/go-signup-api/internal/config"
	"github.com/go-signup-api/internal/transport/http/handler"
	appmiddleware "github.com/go-signup-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	// Every downstream call (stores, notifier) inherits this deadline, so no
	// request can block indefinitely on an external collaborator.
	r.Use(chimiddleware.Timeout(15 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10. Applied to login only; code requests
	// are not rate limited here.
	loginRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verificationSvc := verification.NewService(verification.ServiceDeps{
		TempStore:       deps.TempStore,
		UserRepo:        deps.UserRepo,
		CodeGenerator:   deps.CodeGenerator,
		Hasher:          deps.Hasher,
		Mailer:          deps.Mailer,
		SMSSender:       deps.SMSSender,
		TTL:             cfg.VerificationTTL,
		DeliveryMethods: cfg.DeliveryMethods,
	})
	registrationSvc := registration.NewService(deps.TempStore, deps.UserRepo)
	sessionSvc := session.NewService(deps.SessionRepo, deps.UserRepo, deps.Hasher, deps.JWTProvider, cfg.RefreshTokenExpiry)
	userSvc := user.NewService(deps.UserRepo)

	healthH := handler.NewHealthHandler()
	verificationH := handler.NewVerificationHandler(verificationSvc)
	registrationH := handler.NewRegistrationHandler(registrationSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)

	r.Route("/v1", func(r chi.Router) {
		// Public routes.
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/verification/request", verificationH.Request)
		r.Post("/verification/validate", verificationH.Validate)
		r.Post("/registration/complete", registrationH.Complete)
		r.With(loginRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
		})
	})

	return r
}
