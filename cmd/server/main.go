package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/llebout/random-imgur-wall/internal/config"
	"github.com/llebout/random-imgur-wall/internal/imgur"
	"github.com/llebout/random-imgur-wall/internal/logging"
	"github.com/llebout/random-imgur-wall/internal/relay"
	"github.com/llebout/random-imgur-wall/internal/server"
	"github.com/llebout/random-imgur-wall/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runGracefulShutdown(srv *server.Server, hub *websocket.Hub, cancelRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Stop producing broadcasts first, then stop accepting connections,
		// then tear down every live viewer session.
		cancelRelay()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.WithError(err).Error("Server shutdown error")
		}

		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	clock := clockwork.NewRealClock()

	hub := websocket.NewHub(clock, cfg.ViewerQueueSize, cfg.MaxViewers)

	client := imgur.NewClient(
		cfg.ImgurAPIURL,
		cfg.ImgurClientID,
		cfg.RecentSetSize,
		rate.Limit(cfg.SourceRateLimit),
		cfg.SourceRateBurst,
	)

	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()

	loop := relay.NewLoop(client, hub, clock, cfg.PollInterval)
	go loop.Run(relayCtx)

	srv := server.NewServer(cfg, hub)

	done := runGracefulShutdown(srv, hub, cancelRelay)

	slog.Info("Server starting", "port", cfg.Port, "poll_interval", cfg.PollInterval)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
