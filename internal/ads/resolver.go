// Package ads resolves ad slot positions to active creatives and renders
// them into HTML fragments.
package ads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/schedule"
	"github.com/netpulse/webclient/internal/util"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 5 * time.Minute

	loadKey = "ads:active"
)

// Fetcher loads the active ad list from the backend.
type Fetcher interface {
	ActiveAds(ctx context.Context) ([]model.AdSlotRecord, error)
}

type FetcherFunc func(ctx context.Context) ([]model.AdSlotRecord, error)

func (f FetcherFunc) ActiveAds(ctx context.Context) ([]model.AdSlotRecord, error) {
	return f(ctx)
}

type Option func(*Resolver)

func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithScheduler(scheduler schedule.Scheduler) Option {
	return func(r *Resolver) { r.scheduler = scheduler }
}

func WithStore(store Store) Option {
	return func(r *Resolver) { r.store = store }
}

func WithLogger(logger *util.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(metrics *util.Metrics) Option {
	return func(r *Resolver) { r.metrics = metrics }
}

// Resolver caches the active ad list for the whole process. Concurrent
// resolutions share a single load, and the cache expires TTL after a load
// completes. Construct one per process and pass it to every consumer.
type Resolver struct {
	id        string
	fetcher   Fetcher
	store     Store
	scheduler schedule.Scheduler
	logger    *util.Logger
	metrics   *util.Metrics
	ttl       time.Duration

	group singleflight.Group

	// storeMu orders write-backs against Invalidate's Clear.
	storeMu sync.Mutex

	mu      sync.Mutex
	entries []model.AdSlotRecord
	loaded  bool
	epoch   uint64
	expiry  schedule.Timer
	closed  bool
}

func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		id:        uuid.New().String(),
		fetcher:   fetcher,
		scheduler: schedule.Real(),
		logger:    util.NewNopLogger(),
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the record bound to position, or nil when there is none.
// Load failures degrade to an empty ad set and are never returned. If ctx
// ends before a pending load settles, Resolve returns nil while the load
// carries on for the other callers.
func (r *Resolver) Resolve(ctx context.Context, position string) *model.AdSlotRecord {
	records, ok := r.cached()
	if ok {
		if r.metrics != nil {
			r.metrics.IncrementAdCacheHit()
		}
		return model.FindByPosition(records, position)
	}

	if r.metrics != nil {
		r.metrics.IncrementAdCacheMiss()
	}

	ch := r.group.DoChan(loadKey, func() (interface{}, error) {
		return r.load(), nil
	})

	select {
	case res := <-ch:
		records, _ := res.Val.([]model.AdSlotRecord)
		return model.FindByPosition(records, position)
	case <-ctx.Done():
		r.logger.Debugw("Ad resolution abandoned", "position", position, "error", ctx.Err())
		return nil
	}
}

// Records returns a copy of the cached entries; nil when not loaded.
func (r *Resolver) Records() []model.AdSlotRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil
	}
	return append([]model.AdSlotRecord{}, r.entries...)
}

func (r *Resolver) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Invalidate drops the cached list and the shared store copy so the next
// resolution reloads. A load already in flight still answers its callers
// but is not cached. Instances following the store drop their copies too.
func (r *Resolver) Invalidate(ctx context.Context) {
	r.dropLocal()

	if r.store != nil {
		r.storeMu.Lock()
		if err := r.store.Clear(ctx); err != nil {
			r.logger.Warnw("Failed to clear ad store", "error", err)
		}
		r.storeMu.Unlock()
		if b, ok := r.store.(Broadcaster); ok {
			if err := b.PublishInvalidation(ctx, r.id); err != nil {
				r.logger.Warnw("Failed to broadcast ad invalidation", "error", err)
			}
		}
	}
	r.logger.Infow("Ad cache invalidated")
}

// Follow subscribes to invalidations published by other instances sharing
// the store. It is a no-op for stores that cannot broadcast.
func (r *Resolver) Follow(ctx context.Context) (stop func() error, err error) {
	b, ok := r.store.(Broadcaster)
	if !ok {
		return func() error { return nil }, nil
	}
	return b.SubscribeInvalidations(ctx, func(origin string) {
		if origin == r.id {
			return
		}
		r.dropLocal()
		r.logger.Infow("Ad cache invalidated by peer", "origin", origin)
	})
}

func (r *Resolver) dropLocal() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()

	r.group.Forget(loadKey)
}

// Close stops the expiry timer. Cached entries stay readable.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expiry != nil {
		r.expiry.Stop()
		r.expiry = nil
	}
	r.closed = true
}

func (r *Resolver) cached() ([]model.AdSlotRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, r.loaded
}

// load runs once per singleflight group. It is detached from any caller's
// context so one caller going away cannot fail the others.
func (r *Resolver) load() []model.AdSlotRecord {
	r.mu.Lock()
	if r.loaded {
		records := r.entries
		r.mu.Unlock()
		return records
	}
	epoch := r.epoch
	r.mu.Unlock()

	ctx := context.Background()
	records, fromBackend := r.fetch(ctx)

	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		r.logger.Debugw("Ad load superseded by invalidation", "count", len(records))
		return records
	}
	r.entries = records
	r.loaded = true
	if !r.closed {
		r.expiry = r.scheduler.AfterFunc(r.ttl, func() {
			r.expire(epoch)
		})
	}
	r.mu.Unlock()
	r.logger.Debugw("Ad cache loaded", "count", len(records), "ttl", r.ttl)

	if fromBackend {
		r.writeBack(ctx, epoch, records)
	}
	return records
}

// writeBack shares a backend load through the store unless an invalidation
// has superseded it. Holding storeMu across the epoch check and the write
// keeps a concurrent Clear from landing in between.
func (r *Resolver) writeBack(ctx context.Context, epoch uint64, records []model.AdSlotRecord) {
	if r.store == nil {
		return
	}
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	r.mu.Lock()
	current := epoch == r.epoch
	r.mu.Unlock()
	if !current {
		return
	}
	if err := r.store.Save(ctx, records, r.ttl); err != nil {
		r.logger.Warnw("Ad store write failed", "error", err)
	}
}

// fetch reports fromBackend only for successful backend loads, the one
// result worth sharing through the store.
func (r *Resolver) fetch(ctx context.Context) (records []model.AdSlotRecord, fromBackend bool) {
	if r.store != nil {
		records, ok, err := r.store.Load(ctx)
		switch {
		case err != nil:
			r.logger.Warnw("Ad store read failed", "error", err)
		case ok:
			r.recordLoad("store", "ok")
			return records, false
		}
	}

	records, err := r.fetcher.ActiveAds(ctx)
	if err != nil {
		r.logger.Warnw("Active ads load failed", "error", util.FormatError(err))
		r.recordLoad("backend", "error")
		return []model.AdSlotRecord{}, false
	}
	if records == nil {
		records = []model.AdSlotRecord{}
	}
	r.recordLoad("backend", "ok")
	return records, true
}

func (r *Resolver) expire(epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		return
	}
	r.resetLocked()
	r.logger.Debugw("Ad cache expired")
}

func (r *Resolver) resetLocked() {
	if r.expiry != nil {
		r.expiry.Stop()
		r.expiry = nil
	}
	r.entries = nil
	r.loaded = false
	r.epoch++
}

func (r *Resolver) recordLoad(source, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordAdLoad(source, outcome)
	}
}
