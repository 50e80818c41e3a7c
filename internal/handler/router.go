package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/epir-jewellery/shop-assistant/backend/internal/config"
	"github.com/epir-jewellery/shop-assistant/backend/internal/handler/catalog"
	"github.com/epir-jewellery/shop-assistant/backend/internal/handler/chat"
	middlewarePkg "github.com/epir-jewellery/shop-assistant/backend/internal/middleware"
)

// NewRouter wires HTTP routes to core services. A nil limiter disables rate limiting.
func NewRouter(serverCfg config.ServerConfig, chatSvc chat.Replier, catalogSvc catalog.Source, limiter middlewarePkg.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	chatHandler := chat.New(chatSvc, serverCfg.ExposeErrorDetails, serverCfg.AllowedOrigins)
	catalogHandler := catalog.New(catalogSvc, serverCfg.ExposeErrorDetails)

	r.Route("/api", func(api chi.Router) {
		if limiter != nil {
			api.Use(middlewarePkg.RateLimit(limiter, serverCfg.RateLimitWindow))
		}

		chatHandler.RegisterRoutes(api)
		catalogHandler.RegisterRoutes(api)
	})

	return r
}
