package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/clock"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/reconcile"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/router"
	"github.com/iliyamo/hotel-reservation/internal/scheduler"
	"github.com/iliyamo/hotel-reservation/internal/service"
)

var interruptSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGINT,
}

func main() {
	cfg := config.Load()
	if cfg.Dev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("cannot migrate database")
	}
	store := repository.NewMySQLStore(db)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	clk := clock.System{}
	cacheCfg := config.LoadCacheConfig()
	cacheRedis := rdb
	if !cacheCfg.Enabled {
		cacheRedis = nil
	}
	roomTypes := booking.NewRoomTypes(store, cacheRedis, cacheCfg.Prefix, cacheCfg.TTL)
	locker := newLocker(config.LoadLockConfig(), rdb)
	coordinator := booking.NewCoordinator(store, locker, roomTypes, clk)

	payCfg := config.LoadPaymentConfig()
	gateway := payment.WithTimeout(payment.Simulator{Latency: payCfg.Latency}, payCfg.Timeout)

	sweepCfg := config.LoadSweepConfig()
	reconciler := reconcile.New(store, clk, sweepCfg.PaymentTTL, reconcile.WithRefunds(gateway, locker))

	waitGroup, ctx := errgroup.WithContext(ctx)

	dispatcher := runCompensation(ctx, waitGroup, cfg, reconciler)
	reservations := service.NewReservations(store, locker, roomTypes, clk, dispatcher)
	orders := service.NewOrders(store, locker, gateway, reconciler, clk, dispatcher)
	stats := service.NewStats(store, cacheRedis, cacheCfg.Prefix, cacheCfg.TTL, clk)

	runScheduler(ctx, waitGroup, sweepCfg, reconciler)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, router.Handlers{
		Health:       handler.Health(db),
		Reservations: handler.NewReservationHandler(coordinator, reservations, orders),
		Orders:       handler.NewOrderHandler(orders),
		Admin:        handler.NewAdminHandler(reconciler, stats),
		BookingLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	}, cfg.JWTSecret)
	runEchoServer(ctx, waitGroup, e, ":"+cfg.Port, cfg.Env)

	if err := waitGroup.Wait(); err != nil {
		log.Fatal().Err(err).Msg("error from wait group")
	}
}

// newLocker picks the Redis lease lock when Redis is reachable and the
// process-local lock otherwise.
func newLocker(cfg config.LockConfig, rdb *redis.Client) lock.Locker {
	if cfg.Backend == "redis" && rdb != nil {
		log.Info().Dur("ttl", cfg.TTL).Dur("wait", cfg.Wait).Msg("room locks held in redis")
		return lock.NewRedisLocker(rdb, lock.Options{TTL: cfg.TTL, Wait: cfg.Wait, Retry: cfg.Retry, Prefix: cfg.Prefix})
	}
	log.Warn().Msg("room locks are process-local; run a single instance")
	return lock.NewLocalLocker(cfg.Wait)
}

// runCompensation starts the compensation worker and returns the
// dispatcher the state machines publish to.
func runCompensation(ctx context.Context, waitGroup *errgroup.Group, cfg config.Config, reconciler *reconcile.Service) service.Dispatcher {
	if cfg.RabbitURL == "" {
		local := queue.NewLocalDispatcher(reconciler, 0)
		waitGroup.Go(func() error {
			log.Info().Msg("start in-process compensation worker")
			return local.Run(ctx)
		})
		return local
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, cfg.Queue)
	consumer := queue.NewConsumer(cfg.RabbitURL, cfg.Queue, reconciler)
	waitGroup.Go(func() error {
		log.Info().Str("queue", cfg.Queue).Msg("start compensation consumer")
		return consumer.Run(ctx)
	})
	waitGroup.Go(func() error {
		<-ctx.Done()
		return publisher.Close()
	})
	return publisher
}

func runScheduler(ctx context.Context, waitGroup *errgroup.Group, cfg config.SweepConfig, reconciler *reconcile.Service) {
	sched, err := scheduler.New(reconciler, scheduler.Config{
		HourlySpec: cfg.HourlySpec,
		DailySpec:  cfg.DailySpec,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create sweep scheduler")
	}
	waitGroup.Go(func() error {
		log.Info().Str("hourly", cfg.HourlySpec).Str("daily", cfg.DailySpec).Msg("start sweep scheduler")
		return sched.Run(ctx)
	})
}

func runEchoServer(ctx context.Context, waitGroup *errgroup.Group, e *echo.Echo, addr, env string) {
	waitGroup.Go(func() error {
		log.Info().Str("addr", addr).Str("env", env).Msg("start HTTP server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed to serve")
			return err
		}
		return nil
	})

	waitGroup.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("graceful shutdown HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server forced to shutdown")
			return err
		}
		log.Info().Msg("HTTP server is stopped")
		return nil
	})
}
