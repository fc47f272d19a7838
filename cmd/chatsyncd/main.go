// Package main is the entry point for the conversation sync daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/api"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/config"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/handler"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/realtime"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/session"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/tracing"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("chatsyncd exited", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.Env == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}

func run(cfg *config.Config, log *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	identity, err := session.FromToken(cfg.SessionToken, cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	log = log.WithSession(identity.UserID, string(identity.Role))
	log.Info("starting chatsyncd", zap.String("transport", cfg.RealtimeTransport))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatsyncd", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	backend := api.New(api.Config{
		BaseURL:   cfg.BackendURL,
		Token:     identity.Token,
		Timeout:   cfg.BackendTimeout,
		RateLimit: cfg.BackendRateLimit,
		Burst:     cfg.BackendBurst,
	}, log)

	bridge := realtime.NewBridge(newDialer(cfg, identity, log), identity.UserID, realtime.Options{
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
	}, log)

	messenger := chatsync.NewMessenger(identity, backend, bridge, chatsync.Options{
		PageSize:            cfg.PageSize,
		DedupWindow:         cfg.DedupWindow,
		SendTimeout:         cfg.SendTimeout,
		MaxAttachmentBytes:  cfg.MaxAttachmentBytes,
		BatchUnreadCounts:   cfg.BatchUnreadCounts,
		UnreadFetchParallel: cfg.UnreadFetchParallel,
	}, log)
	if err := messenger.Start(ctx); err != nil {
		return fmt.Errorf("start messenger: %w", err)
	}
	defer func() {
		if err := messenger.Close(); err != nil {
			log.Warn("messenger close", zap.Error(err))
		}
	}()

	router := handler.NewRouter(messenger, handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		MaxUploadBytes:    cfg.MaxAttachmentBytes,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ServerReadTimeout,
		// Zero keeps SSE streams open.
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	// Open event streams end when their subscription closes.
	server.RegisterOnShutdown(messenger.EndSubscriptions)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func newDialer(cfg *config.Config, identity session.Identity, log *logger.Logger) realtime.Dialer {
	if cfg.RealtimeTransport == config.TransportNATS {
		return &realtime.NATSDialer{
			Config: realtime.NATSConfig{
				URL:           cfg.NATSURL,
				CAFile:        cfg.NATSCAFile,
				CertFile:      cfg.NATSCertFile,
				KeyFile:       cfg.NATSKeyFile,
				Token:         cfg.NATSToken,
				SubjectPrefix: cfg.NATSSubjectPrefix,
			},
			Logger: log,
		}
	}
	return &realtime.WebSocketDialer{
		URL:    cfg.RealtimeURL,
		Token:  identity.Token,
		Logger: log,
	}
}
