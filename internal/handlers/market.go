package handlers

import (
	"net/http"
	"strings"

	"cryptodash/backend-go/internal/models"
	"cryptodash/backend-go/internal/services"
)

func (a *API) Listings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := services.ListingsQuery{
		Start:   parseIntParam(q.Get("start"), 1, 1, 5000),
		Limit:   parseIntParam(q.Get("limit"), a.cfg.ListingLimit, 1, 100),
		Convert: a.convertParam(q.Get("convert")),
	}

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	listings, meta, err := a.market.Listings(ctx, query)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	writeJSON(w, http.StatusOK, models.ListingsResponse{
		TsISO:    nowISO(),
		Start:    query.Start,
		Limit:    query.Limit,
		Convert:  query.Convert,
		Listings: listings,
		Meta:     meta.Model(),
	})
}

func (a *API) Global(w http.ResponseWriter, r *http.Request) {
	convert := a.convertParam(r.URL.Query().Get("convert"))

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	global, meta, err := a.market.Global(ctx, convert)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, models.GlobalResponse{
		TsISO:   nowISO(),
		Convert: convert,
		Global:  global,
		Meta:    meta.Model(),
	})
}

func (a *API) convertParam(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return a.cfg.Convert
	}
	return v
}
