package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"cryptodash/backend-go/internal/render"
	"cryptodash/backend-go/internal/services"
)

func (a *API) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page := render.IndexPage{Title: "Markets", Now: a.timestamp(), Convert: a.cfg.Convert}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	listings, meta, err := a.market.Listings(ctx, services.ListingsQuery{
		Start:   1,
		Limit:   a.cfg.ListingLimit,
		Convert: a.cfg.Convert,
	})
	if err != nil {
		page.Error = errorMessage(err)
		a.renderPage(w, "index.html", page)
		return
	}
	page.Listings = listings
	page.Meta = meta.Model()

	global, _, err := a.market.Global(ctx, a.cfg.Convert)
	if err != nil {
		a.log.Warn("global metrics unavailable", zap.Error(err))
	} else {
		page.Global = &global
	}
	a.renderPage(w, "index.html", page)
}

func (a *API) NewsPage(w http.ResponseWriter, r *http.Request) {
	page := render.NewsPage{Title: "News", Now: a.timestamp()}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.news.Today(ctx)
	if err != nil {
		page.Error = "Error loading news: " + err.Error()
		a.renderPage(w, "news.html", page)
		return
	}
	page.Items = res.Value
	page.Epoch = res.Epoch
	page.Meta = newsMeta(res.Source, res.Stale, res.Err, res.FetchedAt)
	a.renderPage(w, "news.html", page)
}

// errorMessage turns a fetch failure into the line shown on the page.
func errorMessage(err error) string {
	if errors.Is(err, services.ErrMissingAPIKey) {
		return "Error: CoinMarketCap API key is not configured"
	}
	var upErr *services.UpstreamError
	if errors.As(err, &upErr) && upErr.Status != 0 {
		return fmt.Sprintf("Error: %d", upErr.Status)
	}
	return "Error: market data is unavailable right now"
}
