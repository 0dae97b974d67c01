package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodash/backend-go/internal/models"
)

type fakeMarketSource struct {
	listingsCalls int
	globalCalls   int
	listings      []models.Listing
	global        models.GlobalMetrics
	err           error
}

func (f *fakeMarketSource) Listings(_ context.Context, q ListingsQuery) ([]models.Listing, error) {
	f.listingsCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f *fakeMarketSource) GlobalMetrics(_ context.Context, convert string) (models.GlobalMetrics, error) {
	f.globalCalls++
	if f.err != nil {
		return models.GlobalMetrics{}, f.err
	}
	return f.global, nil
}

func TestMarketServiceCachesListings(t *testing.T) {
	src := &fakeMarketSource{listings: []models.Listing{{ID: 1, Symbol: "BTC"}}}
	svc := NewMarketService(testConfig(""), NewMemoryCache(), src, nil)
	q := ListingsQuery{Start: 1, Limit: 10, Convert: "usd"}

	got, meta, err := svc.Listings(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "fresh", meta.Source)
	assert.Equal(t, "BTC", got[0].Symbol)

	got, meta, err = svc.Listings(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "cache", meta.Source)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 1, src.listingsCalls)
}

func TestMarketServiceServesLastGoodOnFailure(t *testing.T) {
	cache := NewMemoryCache()
	src := &fakeMarketSource{global: models.GlobalMetrics{BTCDominance: 61.2}}
	svc := NewMarketService(testConfig(""), cache, src, nil)

	_, _, err := svc.Global(context.Background(), "USD")
	require.NoError(t, err)

	// Drop the short-lived copy so the next call goes upstream.
	delete(cache.items, "global:v1:USD")
	src.err = &UpstreamError{Status: 500}

	got, meta, err := svc.Global(context.Background(), "usd")
	require.NoError(t, err)
	assert.True(t, meta.Stale)
	assert.Equal(t, "stale_cache", meta.Source)
	assert.Contains(t, meta.Err, "500")
	assert.Equal(t, 61.2, got.BTCDominance)
	assert.Equal(t, 2, src.globalCalls)
}

func TestMarketServiceFailureWithoutLastGood(t *testing.T) {
	src := &fakeMarketSource{err: ErrMissingAPIKey}
	svc := NewMarketService(testConfig(""), NewMemoryCache(), src, nil)

	_, meta, err := svc.Listings(context.Background(), ListingsQuery{Start: 1, Limit: 10, Convert: "USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.Equal(t, "error", meta.Source)

	// Failures are never cached.
	src.err = nil
	src.listings = []models.Listing{{Symbol: "ETH"}}
	got, meta, err := svc.Listings(context.Background(), ListingsQuery{Start: 1, Limit: 10, Convert: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "fresh", meta.Source)
	assert.Equal(t, "ETH", got[0].Symbol)
}

type blockingMarketSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingMarketSource) Listings(context.Context, ListingsQuery) ([]models.Listing, error) {
	b.calls.Add(1)
	<-b.release
	return []models.Listing{{Symbol: "BTC"}}, nil
}

func (b *blockingMarketSource) GlobalMetrics(context.Context, string) (models.GlobalMetrics, error) {
	return models.GlobalMetrics{}, nil
}

func TestMarketServiceConcurrentColdListingsFetchOnce(t *testing.T) {
	src := &blockingMarketSource{release: make(chan struct{})}
	svc := NewMarketService(testConfig(""), NewMemoryCache(), src, nil)
	q := ListingsQuery{Start: 1, Limit: 10, Convert: "USD"}

	const callers = 20
	var wg sync.WaitGroup
	symbols := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := svc.Listings(context.Background(), q)
			errs[i] = err
			if len(got) > 0 {
				symbols[i] = got[0].Symbol
			}
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "BTC", symbols[i])
	}
}

func TestMarketServiceCallerTimeoutDoesNotFailFlight(t *testing.T) {
	src := &blockingMarketSource{release: make(chan struct{})}
	svc := NewMarketService(testConfig(""), NewMemoryCache(), src, nil)
	q := ListingsQuery{Start: 1, Limit: 10, Convert: "USD"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, meta, err := svc.Listings(ctx, q)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "error", meta.Source)

	close(src.release)
	require.Eventually(t, func() bool {
		_, meta, err := svc.Listings(context.Background(), q)
		return err == nil && meta.Source == "cache"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), src.calls.Load())
}
