package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/pdfmate/internal/api/handlers"
	"github.com/nikhilbhutani/pdfmate/internal/api/middleware"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/billing"
	"github.com/nikhilbhutani/pdfmate/internal/chat"
	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/deletion"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/quota"
	"github.com/nikhilbhutani/pdfmate/internal/storage"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Store     *store.Store
	Objects   storage.ObjectStore
	Ingestion *ingestion.Coordinator
	Deletion  *deletion.Coordinator
	Quota     *quota.Checker
	Plans     quota.PlanResolver
	Billing   *billing.Service
	Chat      *chat.Service
	Admins    auth.AdminPolicy
	Checks    map[string]handlers.Check
}

type Router struct {
	mux *chi.Mux
	cfg *config.Config
	svc Services
	jwt *auth.JWTMiddleware
	rl  *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux: chi.NewRouter(),
		cfg: cfg,
		svc: svc,
		jwt: auth.NewJWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		rl:  middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// RunCleanup evicts idle rate-limit entries until ctx is done.
func (rt *Router) RunCleanup(ctx context.Context) { rt.rl.Cleanup(ctx) }

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))
	r.Use(rt.rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.svc.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	billingH := handlers.NewBillingHandler(rt.svc.Billing)
	r.Post("/api/webhooks/stripe", billingH.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		authH := handlers.NewAuthHandler(rt.svc.Store.Users)
		r.Post("/auth/callback", authH.Callback)

		r.Post("/billing/session", billingH.Session)
		r.Get("/billing/plan", billingH.Plan)

		uploadH := handlers.NewUploadHandler(rt.svc.Objects, rt.svc.Quota, rt.svc.Plans, rt.svc.Admins)
		r.Post("/uploads", uploadH.Create)

		fileH := handlers.NewFileHandler(rt.svc.Store.Files, rt.svc.Ingestion, rt.svc.Deletion, rt.svc.Quota)
		msgH := handlers.NewMessageHandler(rt.svc.Store, rt.svc.Chat, rt.cfg.Chat.PageSize)
		r.Route("/files", func(r chi.Router) {
			r.Get("/", fileH.List)
			r.Post("/", fileH.Register)
			r.Get("/quota", fileH.Quota)
			r.Get("/by-key/*", fileH.ByKey)
			r.Get("/{id}/status", fileH.Status)
			r.Delete("/{id}", fileH.Delete)

			r.Get("/{id}/messages", msgH.List)
			r.Post("/{id}/messages", msgH.Send)
			r.Get("/{id}/messages/count", msgH.Count)
		})

		adminH := handlers.NewAdminHandler(rt.svc.Deletion)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(rt.svc.Admins))
			r.Delete("/files/{id}", adminH.DeleteFile)
		})
	})

	return r
}
