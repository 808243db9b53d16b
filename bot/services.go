package bot

import (
	"context"
	"fmt"
	"time"

	"starboard-bot/cache"
	"starboard-bot/database"
	"starboard-bot/database/pgstore"
	apperrors "starboard-bot/errors"
	"starboard-bot/guard"
	"starboard-bot/metrics"
	"starboard-bot/models"
	"starboard-bot/publisher"
	"starboard-bot/starboard"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

const startupAttempts = 5

// Store is every persistent operation the starboard needs. The SQLite and
// Postgres stores both implement it.
type Store interface {
	cache.Store
	cache.OverrideStore
	Insert(ctx context.Context, rec *models.CuratedMessage) (int64, error)
	TransitionStatus(ctx context.Context, id int64, to models.Status, postedMessageID, postedChannelID *string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options are the inputs NewServices needs besides configuration it reads
// itself.
type Options struct {
	Starboard  models.StarboardConfig
	Database   models.DatabaseConfig
	Guard      models.GuardConfig
	Session    publisher.Session
	Authorizer starboard.Authorizer
	Logger     logrus.FieldLogger
	Metrics    *metrics.Metrics
}

// Services is the wired starboard: store, cache, guard and the two workflows.
type Services struct {
	Config     models.StarboardConfig
	Store      Store
	Cache      *cache.Cache
	Overrides  *cache.Overrides
	Thresholds *starboard.ThresholdResolver
	Guard      starboard.Guard
	Publisher  *publisher.Discord
	Reviews    *starboard.ReviewService
	Curator    *starboard.Curator
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger

	closers []func() error
}

// NewServices opens the store and loads the channel overrides before
// returning, so nothing can observe reactions against an empty override view.
func NewServices(ctx context.Context, opts Options) (*Services, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	svc := &Services{Config: opts.Starboard, Metrics: opts.Metrics, Log: logger}

	store, err := openStore(ctx, opts.Database, logger)
	if err != nil {
		return nil, err
	}
	svc.Store = store
	svc.closers = append(svc.closers, store.Close)

	svc.Overrides = cache.NewOverrides(store)
	n, err := loadOverrides(ctx, svc.Overrides, logger)
	if err != nil {
		svc.Close()
		return nil, err
	}
	logger.WithField("count", n).Info("channel overrides loaded")

	switch opts.Guard.Backend {
	case "redis":
		g, err := guard.ConnectRedis(ctx, opts.Guard.RedisAddr, opts.Guard.TTL)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to connect guard: %w", err)
		}
		svc.Guard = g
		svc.closers = append(svc.closers, g.Close)
	default:
		svc.Guard = guard.NewMemory()
	}

	svc.Cache = cache.New(store, svc.Metrics)
	svc.Publisher = publisher.NewDiscord(opts.Session, opts.Starboard, logger)
	svc.Thresholds = starboard.NewThresholdResolver(svc.Overrides, opts.Starboard.Threshold)
	svc.Curator = starboard.NewCurator(svc.Cache, store, svc.Publisher, svc.Thresholds, logger, svc.Metrics)
	svc.Reviews = starboard.NewReviewService(starboard.ReviewServiceConfig{
		Authorizer: opts.Authorizer,
		Guard:      svc.Guard,
		Cache:      svc.Cache,
		Store:      store,
		Publisher:  svc.Publisher,
		Timeout:    opts.Starboard.ReviewTimeout,
		Logger:     logger,
		Metrics:    svc.Metrics,
	})
	return svc, nil
}

// Close releases the store and guard connections in reverse order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Log.WithError(err).Warn("failed to close service")
		}
	}
	s.closers = nil
}

func startupBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

func openStore(ctx context.Context, cfg models.DatabaseConfig, logger logrus.FieldLogger) (Store, error) {
	switch cfg.Driver {
	case "postgres", "sqlite":
	default:
		return nil, apperrors.NewConfigError("database.driver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}

	op := func() (Store, error) {
		var (
			store Store
			err   error
		)
		if cfg.Driver == "postgres" {
			store, err = pgstore.Connect(ctx, cfg.DSN)
		} else {
			store, err = database.Open(cfg.Path)
		}
		if err != nil {
			logger.WithError(err).WithField("driver", cfg.Driver).Warn("opening store failed, retrying")
			return nil, err
		}
		return store, nil
	}

	store, err := backoff.Retry(ctx, op, backoff.WithBackOff(startupBackOff()), backoff.WithMaxTries(startupAttempts))
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("open", err)
	}
	return store, nil
}

func loadOverrides(ctx context.Context, overrides *cache.Overrides, logger logrus.FieldLogger) (int, error) {
	op := func() (int, error) {
		n, err := overrides.Load(ctx)
		if err != nil {
			if !apperrors.IsRetryable(err) {
				return 0, backoff.Permanent(err)
			}
			logger.WithError(err).Warn("loading channel overrides failed, retrying")
			return 0, err
		}
		return n, nil
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(startupBackOff()), backoff.WithMaxTries(startupAttempts))
}
