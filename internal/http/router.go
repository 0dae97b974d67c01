package http

import (
	"net/http"

	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/handlers"
	"cryptodash/backend-go/internal/render"
)

func NewRouter(cfg config.Config, log *zap.Logger, api *handlers.API) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", api.Index)
	mux.HandleFunc("/news", api.NewsPage)
	mux.Handle("/static/", http.StripPrefix("/static/", render.Static()))

	mux.HandleFunc("/api/v1/health", api.Health)
	mux.HandleFunc("/api/v1/listings", api.Listings)
	mux.HandleFunc("/api/v1/global", api.Global)
	mux.HandleFunc("/api/v1/news", api.News)

	h := http.Handler(mux)
	h = withRecovery(log)(h)
	h = withLogging(log)(h)
	h = withRateLimit(cfg.RateLimitPerMin)(h)
	h = withCORS(h)
	return h
}
