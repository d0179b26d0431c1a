// cartsync - Hosts cart sessions in front of the shop backend.
// Serves the reconciliation engine over REST and MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cartsync/internal/backend"
	"cartsync/internal/config"
	"cartsync/internal/handler"
	"cartsync/internal/middleware"
	"cartsync/internal/mirror"
	"cartsync/internal/negotiation"
	"cartsync/internal/session"
	"cartsync/internal/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "v1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("backend", cfg.Backend.URL),
		slog.String("transport", string(cfg.Backend.Transport)),
		slog.Bool("redis", cfg.Mirror.RedisURL != ""),
	)

	var spanOut io.Writer
	if cfg.TraceStdout {
		spanOut = os.Stdout
	}
	shutdownTracer, err := telemetry.SetupTracer(ctx, "cartsync", spanOut)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	client, err := backend.New(backend.Config{
		BaseURL:   cfg.Backend.URL,
		Transport: cfg.Backend.Transport,
		Timeout:   cfg.Backend.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	mirrors, closeMirrors, err := createMirrors(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating mirror store: %w", err)
	}
	defer closeMirrors()

	sessions := session.NewManager(client, mirrors, session.WithLogger(logger))

	negotiator := negotiation.NewNegotiator(version)
	h := handler.New(sessions, negotiator, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → tracing → logging → negotiation → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Tracing("cartsync"),
		middleware.Logging(logger),
		negotiation.Middleware(negotiator, logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	logger.Info("server starting",
		slog.String("port", cfg.Port),
		slog.String("addr", server.Addr),
		slog.String("version", negotiator.ServerVersion()),
	)
	return serve(server, sessions, shutdown, logger)
}

// serve runs server until it fails or a shutdown signal arrives.
// Every session is torn down, purging its mirror, on either path.
func serve(server *http.Server, sessions *session.Manager, shutdown <-chan os.Signal, logger *slog.Logger) error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.Close(ctx)
		logger.Info("sessions closed")
	}()

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// createMirrors returns the per-session mirror factory. Redis when configured,
// the in-process store otherwise.
func createMirrors(ctx context.Context, cfg *config.Config, logger *slog.Logger) (mirror.Factory, func(), error) {
	if cfg.Mirror.RedisURL == "" {
		logger.Warn("REDIS_URL not set, using in-process mirror")
		return mirror.MemoryFactory(), func() {}, nil
	}

	client, err := mirror.Dial(ctx, cfg.Mirror.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing redis client", slog.String("error", err.Error()))
		}
	}
	return mirror.RedisFactory(client, cfg.Mirror.Prefix, cfg.Mirror.TTL), closeFn, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
// Records logged with a span in context carry trace_id and span_id.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if os.Getenv("ENVIRONMENT") == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(telemetry.NewContextHandler(h))
}
