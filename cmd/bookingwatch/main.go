package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yoketrip/internal/api"
	"yoketrip/internal/booking"
	"yoketrip/internal/config"
	"yoketrip/internal/domain"
	"yoketrip/internal/events"
	"yoketrip/internal/logging"
	"yoketrip/internal/metrics"
	"yoketrip/internal/realtime"
	"yoketrip/internal/repository"
	"yoketrip/internal/service"
	"yoketrip/internal/session"
	"yoketrip/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(base, "bookingwatch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := initRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	notifier := service.NewLogNotifier(logging.Component(base, "notifier"))

	sess, err := initSession(ctx, cfg, redisClient, logging.Component(base, "session"))
	if err != nil {
		return err
	}
	sess.OnExpired(notifier.SessionExpired)
	go func() {
		if err := sess.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("session watch stopped")
		}
	}()

	client := api.NewClient(cfg.API, sess, logging.Component(base, "api"))
	if redisClient != nil && cfg.API.CacheTTLSeconds > 0 {
		client.UseRedisCache(redisClient, time.Duration(cfg.API.CacheTTLSeconds)*time.Second)
	}

	scope := service.AllScope()
	if cfg.Booking.Scope == config.ScopeTrip {
		scope = service.TripScope(cfg.Booking.TripID)
		checkHostTrip(ctx, client, cfg.Booking.TripID, logger)
	}

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
	})

	board := service.NewBoard(client, service.BoardOptions{
		Scope:        scope,
		Policy:       cfg.PartitionPolicy(),
		CancelWindow: cfg.Booking.CancelWindow,
	}, notifier, sess, logging.Component(base, "board"))
	board.Listen(bus)

	reviews := service.NewReviews(client, reviewCache(cfg, redisClient, base), service.ReviewOptions{
		TreatErrorsAsMissing: cfg.Review.TreatErrorsAsMissing,
	}, notifier, sess, logging.Component(base, "reviews"))
	board.Subscribe(func(s service.Snapshot) {
		logSnapshot(ctx, s, reviews, logger)
	})

	startMetrics(ctx, cfg, logger)
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, healthMux(ctx, sess, board, redisClient), logger)

	if cfg.Realtime.Enabled {
		watcher := realtime.NewWatcher(socketURL(client, cfg.Realtime.Path), bus, retryPolicy(cfg.Realtime.Reconnect), logging.Component(base, "realtime")).
			OnAuthFailure(sess.Expire)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("realtime channel stopped, list refreshes only on actions")
			}
		}()
	}

	logger.Info().Str("scope", scope.String()).Bool("realtime", cfg.Realtime.Enabled).Msg("booking watcher started")
	err = board.Run(ctx)
	logger.Info().Msg("booking watcher stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

// initRedis connects only when something is configured to use Redis.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, error) {
	needed := cfg.Session.Store == config.StoreRedis || cfg.Review.Cache == config.StoreRedis || cfg.API.CacheTTLSeconds > 0
	if cfg.Redis.Address == "" || !needed {
		return nil, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		_ = client.Close()
		if cfg.Session.Store == config.StoreRedis {
			return nil, err
		}
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil, nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client, nil
}

func initSession(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (*session.Session, error) {
	var store domain.TokenStore = session.NewMemoryStore("")
	if cfg.Session.Store == config.StoreRedis {
		store = session.NewRedisStore(redisClient)
	}

	sess := session.New(store, logger)
	if err := sess.Sync(ctx); err != nil {
		return nil, err
	}
	if cfg.Session.Token != "" {
		if err := sess.Login(ctx, cfg.Session.Token); err != nil {
			return nil, err
		}
	}
	if !sess.IsLoggedIn() {
		return nil, errors.New("no session token: set session.token or log in through the shared store")
	}
	return sess, nil
}

func reviewCache(cfg *config.Config, redisClient *redis.Client, base *zerolog.Logger) domain.ReviewCache {
	memory := repository.NewMemoryReviewCache(cfg.Review.CacheTTL)
	if cfg.Review.Cache != config.StoreRedis || redisClient == nil {
		return memory
	}
	primary := repository.NewRedisReviewCache(redisClient, cfg.Review.CacheTTL)
	return repository.NewFailoverReviewCache(primary, memory, logging.Component(base, "review-cache"))
}

// checkHostTrip warns when the watched trip is not one of the host's active trips.
func checkHostTrip(ctx context.Context, client domain.TripAPI, tripID string, logger *zerolog.Logger) {
	trips, err := client.OwnTrips(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not load own trips")
		return
	}
	for _, t := range booking.ActiveTrips(trips, time.Now()) {
		if t.ID == tripID {
			return
		}
	}
	logger.Warn().Str("trip_id", tripID).Int("own_trips", len(trips)).Msg("trip is not an active trip of this host")
}

func socketURL(client *api.Client, path string) realtime.URLFunc {
	return func(ctx context.Context) (string, error) {
		token, err := client.Token(ctx)
		if err != nil {
			return "", err
		}
		return client.SocketURL(path, token)
	}
}

func retryPolicy(cfg config.ReconnectConfig) worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		InitialDelay:  cfg.InitialDelay,
		MaxDelay:      cfg.MaxDelay,
		BackoffFactor: cfg.BackoffFactor,
	}
}

func logSnapshot(ctx context.Context, s service.Snapshot, reviews *service.Reviews, logger *zerolog.Logger) {
	if s.Err != nil {
		return
	}
	prompts := 0
	for key, state := range reviews.Attach(ctx, s.Buckets) {
		if state.Status == service.ReviewMissing {
			prompts++
			logger.Debug().Str("trip_id", key.TripID).Str("user_id", key.UserID).Msg("review prompt")
		}
	}
	logger.Info().
		Int("pending", len(s.Buckets.Pending)).
		Int("upcoming", len(s.Buckets.Upcoming)).
		Int("ongoing", len(s.Buckets.Ongoing)).
		Int("past", len(s.Buckets.Past)).
		Int("expired", len(s.Buckets.Expired)).
		Int("unknown", len(s.Buckets.Unknown)).
		Int("review_prompts", prompts).
		Msg("bookings")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go serve(ctx, cfg.Monitoring.PrometheusPort, mux, "metrics", logger)
}

func healthMux(ctx context.Context, sess *session.Session, board *service.Board, rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !sess.IsLoggedIn() {
			http.Error(w, "session expired", http.StatusServiceUnavailable)
			return
		}
		snap := board.Snapshot()
		if snap.FetchedAt.IsZero() || snap.Err != nil {
			http.Error(w, "bookings not loaded", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := repository.Ping(ctxPing, rdb); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

func startHealthServer(ctx context.Context, port int, mux *http.ServeMux, logger *zerolog.Logger) {
	serve(ctx, port, mux, "health", logger)
}

func serve(ctx context.Context, port int, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
