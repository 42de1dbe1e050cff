package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"yoketrip/internal/domain"
	"yoketrip/internal/models"

	"github.com/rs/zerolog"
)

const recoverAfter = time.Minute

// FailoverReviewCache reads and writes the primary until it fails, then
// serves from the fallback and probes the primary again once a minute.
// Deletes the primary could not apply are kept as tombstones and replayed
// before the key is read from the primary again.
type FailoverReviewCache struct {
	primary    domain.ReviewCache
	fallback   domain.ReviewCache
	logger     *zerolog.Logger
	isDown     atomic.Bool
	lastCheck  atomic.Int64
	tombstones sync.Map // models.ReviewKey -> struct{}
	now        func() time.Time
}

func NewFailoverReviewCache(primary, fallback domain.ReviewCache, logger *zerolog.Logger) *FailoverReviewCache {
	return &FailoverReviewCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverReviewCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary review cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the next call should go to the primary.
func (r *FailoverReviewCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoverAfter
}

func (r *FailoverReviewCache) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary review cache recovered")
	}
}

// clearTombstone replays a pending delete of key on the primary.
func (r *FailoverReviewCache) clearTombstone(ctx context.Context, key models.ReviewKey) error {
	if _, ok := r.tombstones.Load(key); !ok {
		return nil
	}
	if err := r.primary.Delete(ctx, key); err != nil {
		return err
	}
	r.tombstones.Delete(key)
	return nil
}

// Get prefers the primary. A primary miss falls through to the fallback,
// which holds whatever was written while the primary was down.
func (r *FailoverReviewCache) Get(ctx context.Context, key models.ReviewKey) (*domain.CachedReview, error) {
	if r.usePrimary() {
		entry, err := r.primaryGet(ctx, key)
		if err == nil {
			r.recovered()
			if entry != nil {
				return entry, nil
			}
		} else {
			r.markDown(err)
		}
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverReviewCache) primaryGet(ctx context.Context, key models.ReviewKey) (*domain.CachedReview, error) {
	if err := r.clearTombstone(ctx, key); err != nil {
		return nil, err
	}
	return r.primary.Get(ctx, key)
}

func (r *FailoverReviewCache) Set(ctx context.Context, key models.ReviewKey, value *domain.CachedReview) error {
	if r.usePrimary() {
		err := r.primary.Set(ctx, key, value)
		if err == nil {
			r.tombstones.Delete(key)
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	r.tombstones.Store(key, struct{}{})
	return r.fallback.Set(ctx, key, value)
}

// Delete always tries the primary, even while it is marked down. A failed
// primary delete leaves a tombstone so the stale entry is never served.
func (r *FailoverReviewCache) Delete(ctx context.Context, key models.ReviewKey) error {
	if err := r.primary.Delete(ctx, key); err != nil {
		r.tombstones.Store(key, struct{}{})
		r.markDown(err)
	} else {
		r.tombstones.Delete(key)
		r.recovered()
	}
	return r.fallback.Delete(ctx, key)
}
