// Package entitlement предоставляет маршруты HTTP-приложения биллинга.
package entitlement

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/overridegrant"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/overriderevoke"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/pendingcreate"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/pendingtoggle"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/promocreate"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/admin/promotoggle"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/cancel"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/claimgrants"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/redeem"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/resume"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/status"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/billing/trialstart"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/health"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	billingservice "github.com/magabrotheeeer/entitlement-engine/internal/services/billing"
	statusservice "github.com/magabrotheeeer/entitlement-engine/internal/services/status"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, billingService *billingservice.Service, statusService *statusservice.Service, tokenParser middlewarectx.TokenParser) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenParser, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/entitlement/status", status.New(logger, statusService).ServeHTTP)
			r.Post("/trial/start", trialstart.New(logger, billingService).ServeHTTP)
			r.Post("/subscription/cancel", cancel.New(logger, billingService).ServeHTTP)
			r.Post("/subscription/resume", resume.New(logger, billingService).ServeHTTP)
			r.Post("/promotions/redeem", redeem.New(logger, billingService).ServeHTTP)
			r.Post("/grants/claim", claimgrants.New(logger, billingService).ServeHTTP)
		})

		// Административная группа
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenParser, logger))
			r.Use(middlewarectx.AdminOnlyMiddleware())
			r.Post("/admin/promotions", promocreate.New(logger, billingService).ServeHTTP)
			r.Post("/admin/promotions/{id}/disable", promotoggle.NewDisable(logger, billingService).ServeHTTP)
			r.Post("/admin/promotions/{id}/enable", promotoggle.NewEnable(logger, billingService).ServeHTTP)
			r.Post("/admin/grants", pendingcreate.New(logger, billingService).ServeHTTP)
			r.Post("/admin/grants/{id}/disable", pendingtoggle.NewDisable(logger, billingService).ServeHTTP)
			r.Post("/admin/grants/{id}/enable", pendingtoggle.NewEnable(logger, billingService).ServeHTTP)
			r.Post("/admin/overrides", overridegrant.NewGrant(logger, billingService).ServeHTTP)
			r.Post("/admin/overrides/extend", overridegrant.NewExtend(logger, billingService).ServeHTTP)
			r.Post("/admin/overrides/{id}/revoke", overriderevoke.New(logger, billingService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
