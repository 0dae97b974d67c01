package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/epochcache"
	"cryptodash/backend-go/internal/logger"
	"cryptodash/backend-go/internal/models"
)

const maxDescriptionRunes = 300

type NewsSource interface {
	Name() string
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// NewNewsSource picks the source named by NEWS_SOURCE.
func NewNewsSource(cfg config.Config, cmc *CMCClient) (NewsSource, error) {
	switch cfg.NewsSource {
	case "", config.NewsSourceMock:
		return MockNewsSource{}, nil
	case config.NewsSourceCMC:
		return &CMCNewsSource{client: cmc, limit: cfg.NewsLimit}, nil
	case config.NewsSourceRSS:
		return NewRSSNewsSource(cfg.NewsFeedURL, cfg.NewsLimit, cfg.NewsFetchTimeout), nil
	}
	return nil, fmt.Errorf("unknown news source %q", cfg.NewsSource)
}

// MockNewsSource serves a fixed set of headlines. Useful until a real news
// provider is configured.
type MockNewsSource struct{}

func (MockNewsSource) Name() string { return config.NewsSourceMock }

func (MockNewsSource) Fetch(context.Context) ([]models.NewsItem, error) {
	return []models.NewsItem{
		{
			Title:         "Bitcoin hits a new all-time high",
			Description:   "Bitcoin pushed past its previous record after major institutional investments were announced.",
			URL:           "#",
			PublishedDate: "2025-03-02",
			Source:        "cryptodash",
		},
		{
			Title:         "Ethereum completes a major upgrade",
			Description:   "The Ethereum network shipped an upgrade that improves scalability and lowers gas fees.",
			URL:           "#",
			PublishedDate: "2025-03-01",
			Source:        "cryptodash",
		},
		{
			Title:         "Regulators announce new guidelines for crypto assets",
			Description:   "Several countries agreed on a common regulatory framework for digital assets, bringing more clarity to the market.",
			URL:           "#",
			PublishedDate: "2025-02-28",
			Source:        "cryptodash",
		},
	}, nil
}

type CMCNewsSource struct {
	client *CMCClient
	limit  int
}

func (s *CMCNewsSource) Name() string { return config.NewsSourceCMC }

func (s *CMCNewsSource) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	return s.client.LatestContent(ctx, s.limit)
}

type RSSNewsSource struct {
	url    string
	limit  int
	parser *gofeed.Parser
}

func NewRSSNewsSource(url string, limit int, timeout time.Duration) *RSSNewsSource {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	return &RSSNewsSource{url: url, limit: limit, parser: p}
}

func (s *RSSNewsSource) Name() string { return config.NewsSourceRSS }

func (s *RSSNewsSource) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	feed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &UpstreamError{Status: httpErr.StatusCode, Message: httpErr.Status}
		}
		return nil, &UpstreamError{Err: errors.Wrapf(err, "fetching %s", s.url)}
	}

	source := strings.TrimSpace(feed.Title)
	out := make([]models.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if s.limit > 0 && len(out) >= s.limit {
			break
		}
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		out = append(out, models.NewsItem{
			Title:         strings.TrimSpace(item.Title),
			Description:   truncate(stripHTML(desc), maxDescriptionRunes),
			URL:           item.Link,
			ImageURL:      feedImage(item),
			PublishedDate: feedDate(item),
			Source:        source,
		})
	}
	return out, nil
}

func feedImage(item *gofeed.Item) *string {
	if item.Image != nil && item.Image.URL != "" {
		u := item.Image.URL
		return &u
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			u := enc.URL
			return &u
		}
	}
	return nil
}

func feedDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(time.DateOnly)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(time.DateOnly)
	}
	return item.Published
}

func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// NewsService holds the day's news list. The list is produced at most once per
// calendar day in NEWS_TIMEZONE; callers share the returned slice and must not
// modify it.
type NewsService struct {
	src     NewsSource
	fetcher *epochcache.Fetcher[[]models.NewsItem]
}

func NewNewsService(cfg config.Config, src NewsSource, log *zap.Logger, opts ...epochcache.Option) *NewsService {
	base := []epochcache.Option{
		epochcache.WithName("news:" + src.Name()),
		epochcache.WithEpoch(epochcache.Daily(cfg.Location())),
		epochcache.WithFetchTimeout(cfg.NewsFetchTimeout),
		epochcache.WithLogger(logger.OrNop(log).Named("news")),
	}
	return &NewsService{
		src:     src,
		fetcher: epochcache.New(src.Fetch, append(base, opts...)...),
	}
}

func (s *NewsService) Today(ctx context.Context) (epochcache.Result[[]models.NewsItem], error) {
	return s.fetcher.Get(ctx)
}

func (s *NewsService) SourceName() string {
	return s.src.Name()
}

func (s *NewsService) Status() models.NewsCacheStatus {
	stats := s.fetcher.Stats()
	status := models.NewsCacheStatus{
		Source:   s.src.Name(),
		Hits:     stats.Hits,
		Misses:   stats.Misses,
		Failures: stats.Failures,
		Stale:    stats.StaleServed,
	}
	if snap, ok := s.fetcher.Snapshot(); ok {
		status.Epoch = snap.Epoch
		status.Items = len(snap.Value)
		status.FetchedAt = snap.FetchedAt.UTC().Format(time.RFC3339)
	}
	return status
}
