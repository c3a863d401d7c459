// Package main запускает HTTP-сервер сервиса учёта персонала и ликвидности.
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
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/staffledger/internal/audit"
	"github.com/mmeshcher/staffledger/internal/chain"
	"github.com/mmeshcher/staffledger/internal/config"
	"github.com/mmeshcher/staffledger/internal/handler"
	"github.com/mmeshcher/staffledger/internal/metrics"
	"github.com/mmeshcher/staffledger/internal/middleware"
	"github.com/mmeshcher/staffledger/internal/repository"
	"github.com/mmeshcher/staffledger/internal/service"
)

// auditStreamMaxLen ограничивает длину потока аудита в Redis.
const auditStreamMaxLen = 100000

func main() {
	zapCfg := zap.NewProductionConfig()
	logger, _ := zapCfg.Build()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		sugar.Fatalw("invalid log level", "level", cfg.LogLevel, "error", err.Error())
	}
	zapCfg.Level.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limits := cfg.Limits()

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI, limits.SnapshotRetention)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is empty, state is kept in memory")
		repo = repository.NewMemoryRepository(limits.SnapshotRetention)
	}

	m := metrics.New()

	var publisher audit.Publisher = audit.NewLogPublisher(logger)
	if cfg.RedisURL != "" {
		rdb, err := audit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
		publisher = audit.NewRedisPublisher(rdb, cfg.AuditStream, auditStreamMaxLen)
	}

	var (
		heights chain.Source
		tracker *chain.Tracker
	)
	if cfg.NodeAddress != "" {
		tracker = chain.NewTracker(chain.NewClient(cfg.NodeAddress), cfg.HeightPollInterval, logger, m.SetBlockHeight)
		heights = tracker
	} else {
		sugar.Infow("NODE_ADDRESS is empty, deriving height from clock",
			"genesis", cfg.GenesisTime, "interval", cfg.BlockInterval)
		heights = chain.Clock{Genesis: cfg.GenesisTime, Interval: cfg.BlockInterval}
	}

	svc := service.NewService(repo, heights, limits, logger,
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	)
	defer svc.Close()

	if err := svc.BootstrapAdmins(ctx, cfg.Admins()); err != nil {
		sugar.Fatalw("admin bootstrap error", "error", err.Error())
	}

	secret, err := cfg.Secret()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	authMiddleware := middleware.NewAuthMiddleware(secret)
	h := handler.NewHandler(svc, logger, authMiddleware, m.Handler())

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Опрос узла для получения текущей высоты
	if tracker != nil {
		g.Go(func() error {
			tracker.Run(ctx)
			return nil
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting staffledger server", "addr", cfg.RunAddress)
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
