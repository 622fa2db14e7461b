// Package service assembles the engine from configuration: the store,
// the domain services, the notification sink and the HTTP router.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ecoride/carpool/internal/account"
	"github.com/ecoride/carpool/internal/booking"
	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/database"
	"github.com/ecoride/carpool/internal/handler"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/middleware"
	"github.com/ecoride/carpool/internal/notify"
	"github.com/ecoride/carpool/internal/queue"
	"github.com/ecoride/carpool/internal/registry"
	"github.com/ecoride/carpool/internal/repository"
	"github.com/ecoride/carpool/internal/review"
	"github.com/ecoride/carpool/internal/ride"
	"github.com/ecoride/carpool/internal/router"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/store/memstore"
)

// App holds the wired engine. Close releases the database pool, the
// Redis client and the broker connection.
type App struct {
	Cfg   config.Config
	Core  config.CoreConfig
	Queue config.QueueConfig

	Store store.Store
	DB    *sql.DB       // nil with the memory store
	Redis *redis.Client // nil when Redis is unreachable

	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Rides    *ride.Manager
	Bookings *booking.Coordinator
	Reviews  *review.Gate
	Accounts *account.Service
	Feed     *notify.Feed

	publisher *queue.Publisher
}

// New opens the configured store and builds every service on top of it.
func New(cfg config.Config, core config.CoreConfig, qc config.QueueConfig) (*App, error) {
	a := &App{Cfg: cfg, Core: core, Queue: qc}
	switch cfg.StoreDriver {
	case config.StoreMemory:
		a.Store = memstore.New()
		if qc.Driver == config.QueueAMQP {
			logging.Warn(context.Background(), "memory store cannot share its outbox with another process, dispatching inline",
				logging.Component("service"))
			a.Queue.Driver = config.QueueInline
		}
	default:
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.Store = repository.New(db)
	}

	l, err := ledger.New(core.PlatformFee)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Ledger = l
	a.Registry = registry.New(a.Store, core.TxMaxAttempts)
	a.Rides, err = ride.New(a.Store, l,
		ride.WithAttempts(core.TxMaxAttempts),
		ride.WithCompletionGrace(core.CompletionGrace),
		ride.WithScreener(ride.Screener{BannedTerms: core.BannedTerms, PriceCeiling: core.PriceCeiling}),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Bookings, err = booking.New(a.Store, a.Rides, l,
		booking.WithAttempts(core.TxMaxAttempts),
		booking.WithCancelCutoff(core.CancelCutoff),
	)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	a.Reviews = review.New(a.Store, review.WithAttempts(core.TxMaxAttempts))
	a.Accounts = account.New(a.Store, l, cfg.BcryptCost, core.SignupBonus, core.TxMaxAttempts)
	a.Feed = notify.NewFeed(a.Store)
	return a, nil
}

// Topology returns the broker names from the queue configuration.
func (a *App) Topology() queue.Topology {
	return queue.Topology{
		Exchange: a.Queue.Exchange,
		Queue:    a.Queue.Queue,
		Parked:   a.Queue.ParkedQueue,
	}.WithDefaults()
}

// RetryPolicy returns the delivery retry policy from the configuration.
func (a *App) RetryPolicy() notify.RetryPolicy {
	return notify.RetryPolicy{MaxAttempts: a.Queue.MaxAttempts, Base: a.Queue.BackoffBase, Max: a.Queue.BackoffMax}
}

// Sink is where the outbox relay hands events: the broker with the amqp
// driver, the in-process dispatcher otherwise.
func (a *App) Sink() notify.Sink {
	if a.Queue.Driver == config.QueueInline {
		return notify.NewDispatcher(a.Store)
	}
	if a.publisher == nil {
		a.publisher = queue.NewPublisher(a.Queue.URL, a.Topology())
	}
	return a.publisher
}

// Relay builds the outbox relay feeding Sink.
func (a *App) Relay() (*notify.Relay, error) {
	return notify.NewRelay(a.Store, a.Sink(), a.RetryPolicy(), notify.WithBatch(a.Queue.BatchSize))
}

// Consumer builds the broker consumer that writes notifications.
func (a *App) Consumer() *queue.Consumer {
	return queue.NewConsumer(a.Queue.URL, a.Topology(), notify.NewDispatcher(a.Store), a.RetryPolicy(), a.Queue.Prefetch)
}

// Router builds the HTTP API. Caching and rate limiting are only active
// with a Redis client.
func (a *App) Router() *echo.Echo {
	deps := map[string]handler.Pinger{}
	if a.DB != nil {
		deps["mysql"] = a.DB
	}
	if a.Redis != nil {
		rdb := a.Redis
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	h := router.Handlers{
		Auth:          handler.NewAuthHandler(a.Cfg, a.Accounts, a.Store),
		Vehicles:      handler.NewVehicleHandler(a.Registry),
		Rides:         handler.NewRideHandler(a.Rides),
		Bookings:      handler.NewBookingHandler(a.Bookings),
		Reviews:       handler.NewReviewHandler(a.Reviews),
		Notifications: handler.NewNotificationHandler(a.Feed),
		Credits:       handler.NewCreditHandler(a.Store),
		Staff:         handler.NewStaffHandler(a.Rides, a.Reviews, a.Accounts),
		Health:        handler.Health(deps),
	}
	mw := router.Middleware{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.Redis),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), a.Redis),
	}
	return router.New(h, mw, a.Cfg.JWTSecret)
}

// Close releases external resources.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
