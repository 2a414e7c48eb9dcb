package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/poligrain/inventory-reservation/internal/config"
	"github.com/poligrain/inventory-reservation/internal/database"
	"github.com/poligrain/inventory-reservation/internal/handler"
	"github.com/poligrain/inventory-reservation/internal/queue"
	"github.com/poligrain/inventory-reservation/internal/repository"
	"github.com/poligrain/inventory-reservation/internal/router"
	"github.com/poligrain/inventory-reservation/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables
	// come from the environment and the file simply does not exist.
	_ = godotenv.Load()

	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, rate limiting and caching disabled")
	}

	store := repository.NewStore(db)
	publisher := queue.NewPublisher()
	svc := service.NewReservationService(store, publisher,
		time.Duration(cfg.DefaultHoldMinutes)*time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewSweeper(store, publisher, cfg.SweepInterval, cfg.SweepBatchSize)
	go sweeper.Run(ctx)
	go queue.StartOrderCompletedConsumer(ctx, svc)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Deps{
		Reservations: handler.NewReservationHandler(svc),
		Availability: handler.NewAvailabilityHandler(svc),
		Orders:       handler.NewOrderHandler(svc),
		Sweep:        handler.NewSweepHandler(sweeper),
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("inventory reservation service listening")
	if err := e.Start(addr); err != nil {
		log.Info().Err(err).Msg("server stopped")
	}
}
