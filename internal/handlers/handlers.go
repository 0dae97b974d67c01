package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/logger"
	"cryptodash/backend-go/internal/render"
	"cryptodash/backend-go/internal/services"
)

type UpstreamChecker interface {
	Health(ctx context.Context) error
}

type API struct {
	cfg      config.Config
	market   *services.MarketService
	news     *services.NewsService
	upstream UpstreamChecker
	pages    *render.Renderer
	log      *zap.Logger
	now      func() time.Time
}

func New(cfg config.Config, market *services.MarketService, news *services.NewsService, upstream UpstreamChecker, pages *render.Renderer, log *zap.Logger) *API {
	return &API{
		cfg:      cfg,
		market:   market,
		news:     news,
		upstream: upstream,
		pages:    pages,
		log:      logger.OrNop(log).Named("handlers"),
		now:      time.Now,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) renderPage(w http.ResponseWriter, name string, data any) {
	if err := a.pages.HTML(w, http.StatusOK, name, data); err != nil {
		a.log.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntParam(v string, def int, min int, max int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	if out < min {
		return min
	}
	if out > max {
		return max
	}
	return out
}

func timeboxed(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), d)
}

func (a *API) timestamp() string {
	return a.now().Format(render.TimestampLayout)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
