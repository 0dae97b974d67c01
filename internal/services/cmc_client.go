package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/logger"
	"cryptodash/backend-go/internal/models"
)

var (
	// ErrMissingAPIKey is returned before any request when CMC_API_KEY is empty.
	ErrMissingAPIKey = errors.New("coinmarketcap api key not configured")
	// ErrUpstreamUnavailable matches every *UpstreamError.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	errCircuitOpen = errors.New("coinmarketcap circuit breaker open")
)

const maxErrorBody = 4096

type UpstreamError struct {
	Status  int
	Body    string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("coinmarketcap: %d %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("coinmarketcap: %d", e.Status)
	case e.Err != nil:
		return "coinmarketcap: " + e.Err.Error()
	}
	return "coinmarketcap: unavailable"
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

type ListingsQuery struct {
	Start   int
	Limit   int
	Convert string
}

func (q ListingsQuery) values() url.Values {
	v := url.Values{}
	v.Set("start", strconv.Itoa(q.Start))
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("convert", q.Convert)
	return v
}

// CMCClient talks to the CoinMarketCap Pro API. Every response body is a JSON
// object with a "status" block and the payload under "data".
type CMCClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	cb      *circuitBreaker
	log     *zap.Logger
}

func NewCMCClient(cfg config.Config, log *zap.Logger) *CMCClient {
	return &CMCClient{
		baseURL: strings.TrimRight(cfg.CMCBaseURL, "/"),
		apiKey:  cfg.CMCAPIKey,
		hc: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		cb:  newCircuitBreaker(cfg.CircuitFailLimit, cfg.CircuitCooldown),
		log: logger.OrNop(log).Named("cmc"),
	}
}

func (c *CMCClient) Listings(ctx context.Context, q ListingsQuery) ([]models.Listing, error) {
	var out []models.Listing
	if err := c.fetchData(ctx, "/v1/cryptocurrency/listings/latest", q.values(), &out); err != nil {
		return nil, errors.Wrap(err, "listings")
	}
	return out, nil
}

func (c *CMCClient) GlobalMetrics(ctx context.Context, convert string) (models.GlobalMetrics, error) {
	var out models.GlobalMetrics
	params := url.Values{}
	params.Set("convert", convert)
	if err := c.fetchData(ctx, "/v1/global-metrics/quotes/latest", params, &out); err != nil {
		return out, errors.Wrap(err, "global metrics")
	}
	return out, nil
}

type cmcContent struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	SourceName string `json:"source_name"`
	SourceURL  string `json:"source_url"`
	Cover      string `json:"cover"`
	ReleasedAt string `json:"released_at"`
}

// LatestContent returns the latest news articles published on CoinMarketCap.
func (c *CMCClient) LatestContent(ctx context.Context, limit int) ([]models.NewsItem, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("news_type", "news")
	var raw []cmcContent
	if err := c.fetchData(ctx, "/v1/content/latest", params, &raw); err != nil {
		return nil, errors.Wrap(err, "content")
	}
	out := make([]models.NewsItem, 0, len(raw))
	for _, it := range raw {
		item := models.NewsItem{
			Title:         strings.TrimSpace(it.Title),
			Description:   strings.TrimSpace(it.Subtitle),
			URL:           it.SourceURL,
			PublishedDate: publishedDate(it.ReleasedAt),
			Source:        it.SourceName,
		}
		if it.Cover != "" {
			cover := it.Cover
			item.ImageURL = &cover
		}
		out = append(out, item)
	}
	return out, nil
}

// Health checks the credential against /v1/key/info, which does not consume credits.
func (c *CMCClient) Health(ctx context.Context) error {
	var out json.RawMessage
	return c.fetchData(ctx, "/v1/key/info", nil, &out)
}

func (c *CMCClient) fetchData(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if !c.cb.allow() {
		return &UpstreamError{Err: errCircuitOpen}
	}

	body, err := c.get(ctx, path, params)
	if err != nil {
		var upErr *UpstreamError
		// Client-side rejections (bad key, bad params) say nothing about upstream health.
		if !errors.As(err, &upErr) || upErr.Status == 0 || upErr.Status >= 500 || upErr.Status == http.StatusTooManyRequests {
			c.cb.fail()
		}
		return err
	}
	c.cb.success()

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return &UpstreamError{Status: http.StatusOK, Message: "response has no data field"}
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func (c *CMCClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("path", path), zap.Error(err))
		return nil, &UpstreamError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		upErr := &UpstreamError{
			Status:  res.StatusCode,
			Body:    string(b),
			Message: gjson.GetBytes(b, "status.error_message").String(),
		}
		c.log.Warn("upstream error",
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("message", upErr.Message))
		return nil, upErr
	}

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &UpstreamError{Status: res.StatusCode, Err: err}
	}
	c.log.Debug("upstream ok", zap.String("path", path), zap.Duration("took", time.Since(start)))
	return b, nil
}

func publishedDate(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(time.DateOnly)
}
