// Package epochcache keeps one value per validity window ("epoch") and
// refreshes it at most once per window.
//
// The slot holds a single entry. A Get whose epoch differs from the stored
// entry's runs the producer under single-flight; concurrent callers for the
// same epoch share that call. A failed refresh never touches the slot: if a
// previous value exists it is served as stale, otherwise the error is returned.
package epochcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrProducerPanic is returned, wrapped with the recovered value, when a
// producer panics instead of returning.
var ErrProducerPanic = errors.New("epochcache: producer panicked")

const (
	SourceFresh      = "fresh"
	SourceCache      = "cache"
	SourceStaleCache = "stale_cache"
)

// EpochFunc maps an instant to the key of the window it falls in.
type EpochFunc func(time.Time) string

// Daily returns one window per calendar day in loc, keyed as YYYY-MM-DD.
func Daily(loc *time.Location) EpochFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time) string {
		return t.In(loc).Format(time.DateOnly)
	}
}

// Producer computes a fresh value. It receives a context detached from the
// caller that triggered it, bounded by the fetch timeout when one is set.
type Producer[T any] func(ctx context.Context) (T, error)

type Entry[T any] struct {
	Epoch     string
	Value     T
	FetchedAt time.Time

	seq uint64
}

type Result[T any] struct {
	Value     T
	Epoch     string
	Source    string
	Stale     bool
	Err       error
	FetchedAt time.Time
}

type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Failures    int64 `json:"failures"`
	StaleServed int64 `json:"stale_served"`
}

type options struct {
	name         string
	now          func() time.Time
	epoch        EpochFunc
	fetchTimeout time.Duration
	log          *zap.Logger
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithEpoch(fn EpochFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.epoch = fn
		}
	}
}

// WithFetchTimeout bounds each producer call. Zero leaves it unbounded.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) { o.fetchTimeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

type Fetcher[T any] struct {
	produce Producer[T]
	opts    options

	mu    sync.RWMutex
	entry *Entry[T]

	group singleflight.Group
	seq   atomic.Uint64

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
	stale    atomic.Int64
}

func New[T any](produce Producer[T], opts ...Option) *Fetcher[T] {
	o := options{
		name:  "epochcache",
		now:   time.Now,
		epoch: Daily(time.UTC),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Fetcher[T]{produce: produce, opts: o}
}

// Get returns the value for the current epoch, producing it if needed.
// ctx only bounds how long this caller waits; an in-flight refresh keeps
// running after the caller gives up and still fills the slot.
func (f *Fetcher[T]) Get(ctx context.Context) (Result[T], error) {
	epoch := f.opts.epoch(f.opts.now())
	if e, ok := f.lookup(epoch); ok {
		f.hits.Add(1)
		return e.result(SourceCache, nil), nil
	}
	f.misses.Add(1)

	ch := f.group.DoChan(epoch, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				f.failures.Add(1)
				f.opts.log.Error("cache producer panicked",
					zap.String("cache", f.opts.name),
					zap.String("epoch", epoch),
					zap.Any("panic", r))
				v, err = nil, errors.Wrapf(ErrProducerPanic, "%v", r)
			}
		}()
		fl, err := f.refresh(ctx, epoch)
		if err != nil {
			return nil, err
		}
		return fl, nil
	})

	select {
	case <-ctx.Done():
		return f.fallback(epoch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return f.fallback(epoch, res.Err)
		}
		fl := res.Val.(flight[T])
		if !fl.produced {
			f.misses.Add(-1)
			f.hits.Add(1)
			return fl.entry.result(SourceCache, nil), nil
		}
		return fl.entry.result(SourceFresh, nil), nil
	}
}

// Snapshot returns the stored entry without triggering a refresh.
func (f *Fetcher[T]) Snapshot() (Entry[T], bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.entry == nil {
		return Entry[T]{}, false
	}
	return *f.entry, true
}

func (f *Fetcher[T]) Stats() Stats {
	return Stats{
		Hits:        f.hits.Load(),
		Misses:      f.misses.Load(),
		Failures:    f.failures.Load(),
		StaleServed: f.stale.Load(),
	}
}

func (f *Fetcher[T]) lookup(epoch string) (*Entry[T], bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.entry == nil || f.entry.Epoch != epoch {
		return nil, false
	}
	return f.entry, true
}

// flight is what one refresh hands to its callers. produced is false when
// another flight had already stored the epoch's entry.
type flight[T any] struct {
	entry    *Entry[T]
	produced bool
}

func (f *Fetcher[T]) refresh(parent context.Context, epoch string) (flight[T], error) {
	// A flight for this epoch may have finished between our miss and DoChan.
	if e, ok := f.lookup(epoch); ok {
		return flight[T]{entry: e}, nil
	}
	seq := f.seq.Add(1)

	ctx := context.WithoutCancel(parent)
	if f.opts.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := f.produce(ctx)
	if err != nil {
		f.failures.Add(1)
		f.opts.log.Warn("cache refresh failed",
			zap.String("cache", f.opts.name),
			zap.String("epoch", epoch),
			zap.Error(err))
		return flight[T]{}, err
	}

	e := &Entry[T]{Epoch: epoch, Value: v, FetchedAt: f.opts.now(), seq: seq}
	f.mu.Lock()
	// An older flight finishing late must not clobber a newer entry.
	if f.entry == nil || f.entry.seq < seq {
		f.entry = e
	}
	f.mu.Unlock()

	f.opts.log.Info("cache refreshed",
		zap.String("cache", f.opts.name),
		zap.String("epoch", epoch),
		zap.Duration("took", time.Since(start)))
	return flight[T]{entry: e, produced: true}, nil
}

func (f *Fetcher[T]) fallback(epoch string, cause error) (Result[T], error) {
	f.mu.RLock()
	e := f.entry
	f.mu.RUnlock()

	if e == nil {
		return Result[T]{Epoch: epoch, Err: cause}, errors.WithMessagef(cause, "%s: refresh %s", f.opts.name, epoch)
	}
	if e.Epoch == epoch {
		// Filled by the flight we stopped waiting for.
		return e.result(SourceCache, nil), nil
	}
	f.stale.Add(1)
	return e.result(SourceStaleCache, cause), nil
}

func (e *Entry[T]) result(source string, err error) Result[T] {
	return Result[T]{
		Value:     e.Value,
		Epoch:     e.Epoch,
		Source:    source,
		Stale:     source == SourceStaleCache,
		Err:       err,
		FetchedAt: e.FetchedAt,
	}
}
