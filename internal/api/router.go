package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"LeadDesk/internal/constants"
	"LeadDesk/internal/logging"
	"LeadDesk/internal/metrics"
)

// Dependencies holds everything the router needs.
type Dependencies struct {
	Service  Service
	Verifier TokenVerifier
	Logger   logrus.FieldLogger

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// NewRouter builds the chi router with every API route mounted.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Handler{svc: deps.Service, log: log}
	limiter := NewRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/api/health/db", h.DatabaseHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/api/programs", h.ListPrograms)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.Verifier, deps.Service, log))

		r.Get("/api/me", h.GetMe)
		r.Patch("/api/me", h.UpdateMe)
		r.Get("/api/dashboard", h.GetDashboard)

		r.Get("/api/leads", h.ListMyLeads)
		r.With(limiter.Handler).Post("/api/leads", h.SubmitLead)
		r.Get("/api/leads/{id}", h.GetLead)

		r.Route("/api/payment-methods", func(r chi.Router) {
			r.Get("/", h.ListPaymentMethods)
			r.Post("/", h.AddPaymentMethod)
			r.Put("/{id}", h.UpdatePaymentMethod)
			r.Delete("/{id}", h.DeletePaymentMethod)
			r.Post("/{id}/default", h.SetDefaultPaymentMethod)
		})

		r.Get("/api/payouts", h.GetPayouts)
		r.With(limiter.Handler).Post("/api/payouts", h.RequestPayout)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(RoleMiddleware(constants.ROLE_ADMIN))

			r.Get("/overview", h.AdminOverview)

			r.Get("/leads", h.AdminListLeads)
			r.Get("/leads/export", h.ExportLeads)
			r.Get("/leads/{id}", h.AdminGetLead)
			r.Patch("/leads/{id}", h.ReviewLead)
			r.Post("/leads/{id}/call", h.RequestCall)
			r.Get("/leads/{id}/call-qr", h.CallQRCode)

			r.Get("/users", h.AdminListUsers)
			r.Get("/users/{id}", h.AdminUserDetail)
			r.Post("/users/{id}/suspend", h.SuspendUser)
			r.Delete("/users/{id}", h.DeleteUser)

			r.Get("/payouts", h.AdminListPayouts)
			r.Get("/payouts/export", h.ExportPayouts)
			r.Post("/payouts/{id}/approve", h.ApprovePayout)
			r.Post("/payouts/{id}/reject", h.RejectPayout)
		})
	})

	return r
}
