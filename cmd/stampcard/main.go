// Package main запускает HTTP-сервер программы лояльности со штампами.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/stampcard/internal/config"
	"github.com/mmeshcher/stampcard/internal/handler"
	"github.com/mmeshcher/stampcard/internal/middleware"
	"github.com/mmeshcher/stampcard/internal/model"
	"github.com/mmeshcher/stampcard/internal/pubsub"
	"github.com/mmeshcher/stampcard/internal/repository"
	"github.com/mmeshcher/stampcard/internal/service"
	"github.com/mmeshcher/stampcard/internal/token"
)

const demoSlug = "demo"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := newRepository(cfg, logger)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	if cfg.StampQRSecret == "" {
		logger.Warn("STAMP_QR_SECRET is empty, using a random key; issued QR codes stop working after restart")
	}
	signer := token.NewSigner(cfg.StampQRSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []service.Option{
		service.WithConfigTTL(cfg.ConfigCacheTTL),
		service.WithBaseURL(cfg.PublicBaseURL),
	}

	var invalidator *pubsub.Invalidator
	if cfg.RedisAddress != "" {
		invalidator, err = pubsub.New(ctx, cfg.RedisAddress, logger)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer invalidator.Close()
		opts = append(opts, service.WithPublisher(invalidator))
	}

	svc := service.NewService(repo, signer, opts...)
	defer svc.Close()

	pinLimit := middleware.RateLimitByIP(ctx, cfg.PinRateLimit, cfg.PinRateBurst)
	h := handler.NewHandler(svc, logger, pinLimit)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Сброс кэша конфигураций по сигналам других экземпляров
	if invalidator != nil {
		g.Go(func() error {
			return invalidator.Listen(ctx, svc.InvalidateConfig)
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting stampcard server", "addr", cfg.RunAddress)
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

// newRepository открывает PostgreSQL, а без DATABASE_URI поднимает хранилище
// в памяти с демо-заведением.
func newRepository(cfg *config.Config, logger *zap.Logger) (service.Repository, error) {
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	logger.Warn("DATABASE_URI is empty, using in-memory storage",
		zap.String("slug", demoSlug),
	)

	mem := repository.NewMemoryRepository()
	tenant := mem.SeedTenant(model.Tenant{Slug: demoSlug, Name: "Demo"})
	mem.SeedStaff(model.StaffUser{
		TenantID: tenant.ID,
		PinHash:  service.HashPin(cfg.DemoPin),
		Role:     model.RoleAdmin,
	})
	return mem, nil
}
