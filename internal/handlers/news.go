package handlers

import (
	"net/http"
	"strings"
	"time"

	"cryptodash/backend-go/internal/models"
)

func (a *API) News(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseIntParam(q.Get("page"), 1, 1, 500)
	pageSize := parseIntParam(q.Get("pageSize"), 10, 1, 50)
	filter := strings.TrimSpace(q.Get("source"))
	searchText := strings.TrimSpace(q.Get("q"))

	ctx, cancel := timeboxed(r, a.cfg.RequestTimeout)
	defer cancel()

	res, err := a.news.Today(ctx)
	if err != nil {
		writeUpstreamError(w, err, 0)
		return
	}
	items := applyNewsFilter(res.Value, filter)
	items = applyNewsSearch(items, searchText)

	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	paged := []models.NewsItem{}
	if start < end {
		paged = items[start:end]
	}

	writeJSON(w, http.StatusOK, models.NewsPageResponse{
		TsISO:    nowISO(),
		Epoch:    res.Epoch,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Filter:   filter,
		Query:    searchText,
		Items:    paged,
		Meta:     newsMeta(res.Source, res.Stale, res.Err, res.FetchedAt),
	})
}

func newsMeta(source string, stale bool, err error, fetchedAt time.Time) models.Meta {
	m := models.Meta{Source: source, Stale: stale}
	if err != nil {
		m.Error = err.Error()
	}
	if !fetchedAt.IsZero() {
		m.FetchedAt = fetchedAt.UTC().Format(time.RFC3339)
	}
	return m
}

func applyNewsFilter(items []models.NewsItem, filter string) []models.NewsItem {
	if filter == "" || strings.EqualFold(filter, "all") {
		return items
	}
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		if strings.EqualFold(strings.TrimSpace(it.Source), filter) {
			out = append(out, it)
		}
	}
	return out
}

func applyNewsSearch(items []models.NewsItem, query string) []models.NewsItem {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if trimmed == "" {
		return items
	}
	tokens := strings.Fields(trimmed)
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		text := strings.ToLower(it.Title + " " + it.Description + " " + it.Source)
		if strings.Contains(text, trimmed) {
			out = append(out, it)
			continue
		}
		matchAll := true
		for _, tok := range tokens {
			if len(tok) < 2 {
				continue
			}
			if !strings.Contains(text, tok) {
				matchAll = false
				break
			}
		}
		if matchAll {
			out = append(out, it)
		}
	}
	return out
}
