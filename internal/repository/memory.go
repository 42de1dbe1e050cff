package repository

import (
	"context"
	"sync"
	"time"

	"yoketrip/internal/domain"
	"yoketrip/internal/models"
)

type memoryEntry struct {
	value     *domain.CachedReview
	expiresAt time.Time
}

// MemoryReviewCache keeps review lookups for the life of the process.
type MemoryReviewCache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryReviewCache creates a cache; ttl <= 0 keeps entries forever.
func NewMemoryReviewCache(ttl time.Duration) *MemoryReviewCache {
	return &MemoryReviewCache{ttl: ttl, now: time.Now}
}

func (r *MemoryReviewCache) Get(ctx context.Context, key models.ReviewKey) (*domain.CachedReview, error) {
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.entries.CompareAndDelete(key, val)
		return nil, nil
	}
	return entry.value, nil
}

func (r *MemoryReviewCache) Set(ctx context.Context, key models.ReviewKey, value *domain.CachedReview) error {
	entry := memoryEntry{value: value}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.entries.Store(key, entry)
	return nil
}

func (r *MemoryReviewCache) Delete(ctx context.Context, key models.ReviewKey) error {
	r.entries.Delete(key)
	return nil
}
