// Command broker runs the websocket publish/subscribe server described
// in SPEC_FULL.md: accept task, dispatch task, and sync task sharing one
// ExchangeManager.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/meshgate/platform/internal/broker"
	"github.com/meshgate/platform/internal/logging"
)

func main() {
	logging.Initialize("broker", getEnv("LOG_LEVEL", "info"), getEnv("LOG_PRETTY", "true") == "true")
	log := logging.Broker()

	cfg := broker.LoadConfig()

	server, err := broker.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize broker server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("addr", cfg.Host+":"+cfg.Port).
		Str("persistent_dir", cfg.PersistentDir).
		Dur("dispatch_interval", cfg.DispatchInterval).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("starting broker")

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("broker exited with error")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
