package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/futureself/internal/api"
	"example.com/futureself/internal/auth"
	"example.com/futureself/internal/bootstrap"
	"example.com/futureself/internal/coach"
	"example.com/futureself/internal/config"
	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/logging"
	"example.com/futureself/internal/outbox"
	httptransport "example.com/futureself/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Must("error", "json").Fatal("invalid configuration", zap.Error(err))
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logging.Must("error", "json").Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("futureself api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, "futureself-api")
		defer func() { _ = producer.Close() }()

		dispatcher = outbox.NewDispatcher(store.Pool, producer, logger.Named("outbox"), cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
		logger.Info("outbox dispatcher started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	service := domain.NewService(store, domain.WithLocation(loc))

	opts := []api.HandlerOption{
		api.WithStoreDriver(cfg.StoreDriver),
		api.WithLogger(logger.Named("api")),
	}
	if cfg.GeminiAPIKey != "" {
		gen, err := coach.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithCoach(coach.NewService(service, gen, coach.Models{
			Text:    cfg.GeminiModel,
			Content: cfg.GeminiContentModel,
		})))
	} else {
		logger.Warn("GEMINI_API_KEY not set, AI endpoints disabled")
	}

	mux := http.NewServeMux()
	api.NewHandler(service, opts...).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []httptransport.Middleware{
		httptransport.AccessLog(logger.Named("http")),
		httptransport.CORS(cfg.CORSOrigin),
	}
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled")
	} else {
		authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Audience: cfg.JWTAudience})
		middlewares = append(middlewares, authMiddleware.Wrap)
	}

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(httptransport.Instrument(mux), middlewares...),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("futureself api listening", zap.String("addr", cfg.HTTPAddress), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info("shutdown requested")
	case err := <-serveErr:
		return err
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}
