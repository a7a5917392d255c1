package api

import (
	"net/http"
	"time"

	"github.com/futig/doctalk-backend/internal/api/docs"
	"github.com/futig/doctalk-backend/internal/api/middleware"
	sessionapi "github.com/futig/doctalk-backend/internal/api/session"
	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	serviceName    = "doctalk-api"
	requestTimeout = 5 * time.Minute
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	cfg *config.Config,
	sessionHandler *sessionapi.Handler,
	sessionCount func() int,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, entity.HealthResponse{
			Status:   "ok",
			Service:  serviceName,
			Sessions: sessionCount(),
		})
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	auth := func(next http.Handler) http.Handler { return next }
	if cfg.IsProduction() {
		auth = middleware.Auth(cfg.AuthCfg.Tokens)
	}
	sessionapi.RegisterRoutes(r, sessionHandler, auth, middleware.Session)

	return r
}
