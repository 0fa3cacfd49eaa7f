// Package main запускает HTTP-сервер сервиса бронирования парковок.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidbanez/park-angel-v1-sub008/internal/availability"
	"github.com/davidbanez/park-angel-v1-sub008/internal/booking"
	"github.com/davidbanez/park-angel-v1-sub008/internal/config"
	"github.com/davidbanez/park-angel-v1-sub008/internal/handler"
	"github.com/davidbanez/park-angel-v1-sub008/internal/middleware"
	"github.com/davidbanez/park-angel-v1-sub008/internal/notify"
	"github.com/davidbanez/park-angel-v1-sub008/internal/parkingtype"
	"github.com/davidbanez/park-angel-v1-sub008/internal/payment"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
	"github.com/davidbanez/park-angel-v1-sub008/internal/repository"
	"github.com/davidbanez/park-angel-v1-sub008/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var redisClient notify.Client
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		defer rdb.Close()
		redisClient = rdb
	}
	publisher := notify.NewPublisher(redisClient, logger.Named("notify"))

	availMgr := availability.NewManager(repo, publisher, logger.Named("availability"), cfg.ReservationTTL)

	registry := parkingtype.NewRegistry(
		parkingtype.NewHosted(repo),
		parkingtype.NewStreet(repo, cfg.StreetPricing()),
		parkingtype.NewFacility(repo),
	)

	pricingSvc := pricing.NewService(repo, availMgr, registry, cfg.Location)

	var gateway booking.PaymentGateway
	if cfg.PaymentGatewayAddress != "" {
		gateway = payment.NewClient(cfg.PaymentGatewayAddress)
	} else {
		sugar.Warn("payment gateway address is empty, bookings will stay unpaid")
	}

	bookingMgr := booking.NewManager(repo, availMgr, pricingSvc, registry, gateway, publisher,
		logger.Named("booking"), booking.Options{
			PlatformFeeRate: cfg.PlatformFeeRate,
			Location:        cfg.Location,
		})

	svc := service.NewService(repo, bookingMgr, availMgr, pricingSvc, registry)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, handler.Options{
		WebhookSecret:  cfg.WebhookSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Снятие просроченных временных броней
	g.Go(func() error {
		availMgr.StartSweeper(ctx, cfg.SweepInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting parking server", "addr", cfg.RunAddress, "timeZone", cfg.TimeZone)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
