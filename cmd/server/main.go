package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-ledger/internal/config"
	"expense-ledger/internal/events"
	"expense-ledger/internal/handlers"
	"expense-ledger/internal/ledger"
	"expense-ledger/internal/logger"
	"expense-ledger/internal/storage"
	"expense-ledger/web"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.LogDevelopment, logger.LogLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	db, err := storage.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	log.Info("Database ready", zap.String("driver", db.Driver()))

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	svc := ledger.NewService(db, publisher)
	h, err := handlers.NewHandlers(svc, web.TemplatesFS)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("static assets: %w", err)
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Port),
		Handler:      setupRouter(h, static),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, srv, cfg.ShutdownTimeout, log)
}

// newPublisher connects to the broker when configured. A broker that cannot be
// reached only disables change events.
func newPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Warn("AMQP unavailable, change events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	log.Info("Publishing change events", zap.String("exchange", cfg.AMQPExchange))
	return p
}

// setupRouter wires the application routes, static assets and middleware.
func setupRouter(h *handlers.Handlers, static fs.FS) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	return logger.Middleware(handlers.SecurityHeaders(mux))
}

// serve runs srv until ctx is cancelled, then drains connections within timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
