package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"yoketrip/internal/api"
	"yoketrip/internal/booking"
	"yoketrip/internal/domain"
	"yoketrip/internal/metrics"
	"yoketrip/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidRating   = fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
	ErrAlreadyReviewed = errors.New("review already submitted")
)

const (
	actionReview = "review"

	lookupConcurrency = 4
)

type ReviewStatus int

const (
	ReviewUnknown ReviewStatus = iota
	ReviewMissing
	ReviewReviewed
)

func (s ReviewStatus) String() string {
	switch s {
	case ReviewMissing:
		return "missing"
	case ReviewReviewed:
		return "reviewed"
	default:
		return "unknown"
	}
}

// ReviewState is the lookup outcome for one (trip, user) key.
type ReviewState struct {
	Status ReviewStatus
	Review *models.Review
	Err    error
}

func Reviewed(r *models.Review) ReviewState { return ReviewState{Status: ReviewReviewed, Review: r} }
func Missing() ReviewState                  { return ReviewState{Status: ReviewMissing} }
func Unknown(err error) ReviewState         { return ReviewState{Status: ReviewUnknown, Err: err} }

type ReviewOptions struct {
	// TreatErrorsAsMissing shows the review prompt even when the lookup failed.
	TreatErrorsAsMissing bool
}

// Reviews attaches review state to past bookings and submits new reviews.
type Reviews struct {
	api      domain.ReviewAPI
	cache    domain.ReviewCache
	opts     ReviewOptions
	notifier domain.Notifier
	auth     Expirer
	logger   *zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	states   map[models.ReviewKey]ReviewState
	inFlight map[models.ReviewKey]bool
}

func NewReviews(reviewAPI domain.ReviewAPI, cache domain.ReviewCache, opts ReviewOptions, notifier domain.Notifier, auth Expirer, logger *zerolog.Logger) *Reviews {
	return &Reviews{
		api:      reviewAPI,
		cache:    cache,
		opts:     opts,
		notifier: notifier,
		auth:     auth,
		logger:   logger,
		now:      time.Now,
		states:   make(map[models.ReviewKey]ReviewState),
		inFlight: make(map[models.ReviewKey]bool),
	}
}

// Targets lists the (trip, traveller) pairs of past, non-cancelled bookings
// in board order, without duplicates.
func (r *Reviews) Targets(buckets booking.Buckets) []models.ReviewKey {
	seen := make(map[models.ReviewKey]bool)
	var keys []models.ReviewKey
	// Past never holds cancelled bookings.
	for _, bk := range buckets.Past {
		key := models.ReviewKey{TripID: bk.TripID(), UserID: bk.User.ID}
		if key.TripID == "" || key.UserID == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// Attach looks up every review target of buckets.
func (r *Reviews) Attach(ctx context.Context, buckets booking.Buckets) map[models.ReviewKey]ReviewState {
	keys := r.Targets(buckets)
	out := make(map[models.ReviewKey]ReviewState, len(keys))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(lookupConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			state := r.Lookup(ctx, key)
			mu.Lock()
			out[key] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Lookup resolves the review state of key, from the cache when possible.
func (r *Reviews) Lookup(ctx context.Context, key models.ReviewKey) ReviewState {
	if r.cache != nil {
		entry, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key.String()).Msg("review cache read failed")
		} else if entry != nil {
			state := Missing()
			if entry.Review != nil {
				state = Reviewed(entry.Review)
			}
			r.store(key, state)
			return state
		}
	}
	return r.fetch(ctx, key)
}

// fetch asks the backend and caches definite answers only.
func (r *Reviews) fetch(ctx context.Context, key models.ReviewKey) ReviewState {
	review, err := r.api.Review(ctx, key.TripID, key.UserID)

	var state ReviewState
	switch {
	case err == nil:
		state = Reviewed(review)
		r.remember(ctx, key, review)
	case errors.Is(err, api.ErrNotFound):
		state = Missing()
		r.remember(ctx, key, nil)
	default:
		r.logger.Warn().Err(err).Str("key", key.String()).Msg("review lookup failed")
		r.handleAuth(ctx, err)
		state = Unknown(err)
		if r.opts.TreatErrorsAsMissing && !api.IsAuthError(err) {
			state = Missing()
		}
	}

	r.store(key, state)
	return state
}

func (r *Reviews) remember(ctx context.Context, key models.ReviewKey, review *models.Review) {
	if r.cache == nil {
		return
	}
	entry := &domain.CachedReview{Review: review, CheckedAt: r.now()}
	if err := r.cache.Set(ctx, key, entry); err != nil {
		r.logger.Warn().Err(err).Str("key", key.String()).Msg("review cache write failed")
	}
}

func (r *Reviews) store(key models.ReviewKey, state ReviewState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[key] = state
}

// State returns the last known state of key.
func (r *Reviews) State(key models.ReviewKey) (ReviewState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[key]
	return state, ok
}

// NeedsReview reports whether the "Leave a Review" prompt is shown for key.
func (r *Reviews) NeedsReview(key models.ReviewKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[key].Status == ReviewMissing && !r.inFlight[key]
}

// Submit posts one review for key and then re-reads it from the backend so
// the prompt disappears.
func (r *Reviews) Submit(ctx context.Context, key models.ReviewKey, rating int, comment string) (*models.Review, error) {
	if !models.ValidRating(rating) {
		return nil, ErrInvalidRating
	}
	if err := r.begin(key); err != nil {
		metrics.IncAction(actionReview, "refused")
		return nil, err
	}
	defer r.finish(key)

	created, err := r.api.CreateReview(ctx, models.ReviewInput{
		Trip:     key.TripID,
		Reviewee: key.UserID,
		Rating:   rating,
		Comment:  comment,
	})
	if err != nil {
		metrics.IncAction(actionReview, "error")
		if r.handleAuth(ctx, err) {
			return nil, err
		}
		r.logger.Error().Err(err).Str("key", key.String()).Msg("review submit failed")
		r.notifier.Error("Failed to submit review")
		return nil, fmt.Errorf("submit review %s: %w", key, err)
	}
	metrics.IncAction(actionReview, "ok")
	if created == nil {
		created = &models.Review{Trip: key.TripID, Reviewee: key.UserID, Rating: rating, Comment: comment}
	}

	if r.cache != nil {
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logger.Warn().Err(err).Str("key", key.String()).Msg("review cache delete failed")
		}
	}
	state := r.fetch(ctx, key)
	if state.Status != ReviewReviewed {
		r.store(key, Reviewed(created))
		r.remember(ctx, key, created)
	}

	r.notifier.Success("Review submitted")
	if state.Status == ReviewReviewed && state.Review != nil {
		return state.Review, nil
	}
	return created, nil
}

func (r *Reviews) begin(key models.ReviewKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] {
		return ErrActionInFlight
	}
	if r.states[key].Status == ReviewReviewed {
		return ErrAlreadyReviewed
	}
	r.inFlight[key] = true
	return nil
}

func (r *Reviews) finish(key models.ReviewKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

func (r *Reviews) handleAuth(ctx context.Context, err error) bool {
	if !api.IsAuthError(err) {
		return false
	}
	if r.auth != nil {
		r.auth.Expire(ctx)
	} else {
		r.notifier.SessionExpired()
	}
	return true
}
