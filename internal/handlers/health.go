package handlers

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"cryptodash/backend-go/internal/models"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := []string{}
	missing := []string{}
	depsStatus := map[string]models.DepStatus{}

	if !a.cfg.HasAPIKey() {
		missing = appendUniqueString(missing, "cmc_api_key")
		depsStatus["coinmarketcap"] = models.DepStatus{Ok: false, Error: "CMC_API_KEY not set"}
	} else if err := a.upstream.Health(ctx); err != nil {
		missing = appendUniqueString(missing, "coinmarketcap_unreachable")
		depsStatus["coinmarketcap"] = models.DepStatus{Ok: false, Error: err.Error()}
	} else {
		deps = appendUniqueString(deps, "coinmarketcap")
		depsStatus["coinmarketcap"] = models.DepStatus{Ok: true}
	}

	backend := a.market.CacheBackend()
	if err := a.market.PingCache(ctx); err != nil {
		missing = appendUniqueString(missing, backend+"_unreachable")
		depsStatus["cache"] = models.DepStatus{Ok: false, Error: err.Error()}
	} else {
		deps = appendUniqueString(deps, backend)
		depsStatus["cache"] = models.DepStatus{Ok: true}
	}

	resp := models.HealthResponse{
		Ok:          len(missing) == 0,
		TsISO:       nowISO(),
		Service:     "cryptodash",
		Version:     os.Getenv("SERVICE_VERSION"),
		Deps:        deps,
		DepsStatus:  depsStatus,
		DataMissing: missing,
		Env: map[string]bool{
			"CMC_API_KEY":   a.cfg.HasAPIKey(),
			"REDIS_URL":     os.Getenv("REDIS_URL") != "",
			"NEWS_SOURCE":   os.Getenv("NEWS_SOURCE") != "",
			"NEWS_FEED_URL": os.Getenv("NEWS_FEED_URL") != "",
		},
		NewsCache: a.news.Status(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func appendUniqueString(items []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return items
	}
	for _, it := range items {
		if strings.EqualFold(it, v) {
			return items
		}
	}
	return append(items, v)
}
