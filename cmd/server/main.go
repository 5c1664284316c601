package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/memory"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/seatlock"
	"github.com/iliyamo/showtime-booking/internal/seatmap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := newLogger(cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("shutdown complete")
}

func newLogger(app config.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if app.IsDev() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// bookingStore is what the booking engine needs from a storage backend.
type bookingStore interface {
	booking.Store
	seatmap.Reader
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	checks := map[string]handler.Check{}

	store, sc, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sc.Close()
	if sc.sqlDB != nil {
		checks["mysql"] = sc.sqlDB.PingContext
	}

	// Redis is optional unless it backs the lock store.
	var rdb redis.UniversalClient
	if client, err := config.NewRedisClient(cfg.Redis); err != nil {
		if cfg.Hold.LockStore == "redis" {
			return fmt.Errorf("lock store: %w", err)
		}
		log.WithError(err).Warn("redis unavailable; cache and rate limiting disabled")
	} else {
		defer client.Close()
		rdb = client
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	var lockStore seatlock.LockStore = seatlock.NewMemoryStore()
	if cfg.Hold.LockStore == "redis" {
		lockStore = seatlock.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Hold.Retention)
	}

	seats := seatmap.New(store)
	locks := seatlock.NewManager(lockStore, seats,
		seatlock.WithTTL(cfg.Hold.TTL, cfg.Hold.MaxTTL),
		seatlock.WithRetention(cfg.Hold.Retention),
		seatlock.WithLogger(log.WithField("component", "seatlock")),
	)

	opts := []booking.Option{booking.WithLogger(log.WithField("component", "booking"))}
	if cfg.RabbitMQ.Enabled {
		pub, err := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log.WithField("component", "publisher"))
		if err != nil {
			// confirmations must not depend on the broker
			log.WithError(err).Warn("rabbitmq unavailable; booking events disabled")
		} else {
			defer pub.Close()
			opts = append(opts, booking.WithNotifier(pub))
		}
	}
	bookings := booking.New(store, seats, locks, opts...)

	e := newEcho(log)
	router.RegisterRoutes(e, checks)
	router.RegisterPublic(e,
		&handler.PublicHandler{Seats: seats, Locks: locks, Bookings: bookings, Log: log},
		middleware.NewRedisCache(cfg.Cache, rdb, log))
	router.RegisterCustomer(e,
		&handler.CustomerHandler{Locks: locks, Bookings: bookings, Log: log},
		cfg.JWT.Secret,
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return locks.RunSweeper(runCtx, cfg.Hold.SweepInterval)
	})

	if cfg.RabbitMQ.Enabled {
		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.LogFile,
			log.WithField("component", "booking-consumer"))
		g.Go(func() error { return consumer.Run(runCtx) })
	}

	g.Go(func() error {
		addr := ":" + cfg.App.Port
		log.WithFields(logrus.Fields{
			"addr":       addr,
			"store":      cfg.Store.Driver,
			"lock_store": cfg.Hold.LockStore,
		}).Info("starting HTTP server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down HTTP server")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newEcho(log logrus.FieldLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	return e
}

// storeCloser owns the database handle of the mysql store.
type storeCloser struct {
	sqlDB *sql.DB
}

func (c storeCloser) Close() {
	if c.sqlDB != nil {
		_ = c.sqlDB.Close()
	}
}

// openStore builds the configured storage backend and loads the seed
// catalog into it.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (bookingStore, storeCloser, error) {
	switch cfg.Store.Driver {
	case "mysql":
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, storeCloser{}, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, storeCloser{}, err
		}
		store := repository.NewStore(db)
		if cfg.Store.SeedFile != "" {
			seed, err := memory.ReadSeed(cfg.Store.SeedFile)
			if err != nil {
				_ = db.Close()
				return nil, storeCloser{}, err
			}
			for _, st := range seed.Showtimes {
				if err := store.UpsertShowtime(ctx, st); err != nil {
					_ = db.Close()
					return nil, storeCloser{}, fmt.Errorf("seed showtime %s: %w", st.ID, err)
				}
			}
			for _, c := range seed.Combos {
				if err := store.UpsertCombo(ctx, c); err != nil {
					_ = db.Close()
					return nil, storeCloser{}, fmt.Errorf("seed combo %s: %w", c.ID, err)
				}
			}
			log.WithFields(logrus.Fields{"showtimes": len(seed.Showtimes), "combos": len(seed.Combos)}).Info("seed applied")
		}
		return store, storeCloser{sqlDB: db}, nil
	default:
		store := memory.NewStore()
		if cfg.Store.SeedFile != "" {
			showtimes, combos, err := store.LoadSeedFile(cfg.Store.SeedFile)
			if err != nil {
				return nil, storeCloser{}, err
			}
			log.WithFields(logrus.Fields{"showtimes": showtimes, "combos": combos}).Info("seed loaded")
		} else {
			log.Warn("memory store started without SEED_FILE; no showtimes to sell")
		}
		return store, storeCloser{}, nil
	}
}
