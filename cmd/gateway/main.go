// Command gateway runs the declarative reverse-proxy gateway described
// in SPEC_FULL.md: compiled routes, optional OIDC authentication, and a
// single request pipeline in front of every upstream service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meshgate/platform/internal/auth"
	"github.com/meshgate/platform/internal/gateway"
	"github.com/meshgate/platform/internal/logging"
)

func main() {
	logging.Initialize("gateway", getEnv("LOG_LEVEL", "info"), getEnv("LOG_PRETTY", "true") == "true")
	log := logging.Gateway()

	cfg := gateway.LoadConfig()

	routes := gateway.LoadRoutes(cfg.ConfigVolume)
	log.Info().Int("routes", len(routes)).Str("config_volume", cfg.ConfigVolume).Msg("loaded routes")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := gin.New()
	engine.Use(gateway.RequestID(), gateway.StructuredLogger(), gin.Recovery(), gateway.RequestTimeout(cfg.RequestTimeout))

	if cfg.OpenIDEnabled {
		authService, err := auth.NewService(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize oidc service")
		}
		engine.Use(authService.Middleware())
		authService.RegisterRoutes(engine)
		log.Info().Str("issuer", cfg.OpenIDIssuerURL).Bool("demo_account", cfg.DemoAccount).Msg("oidc authentication enabled")
	} else {
		log.Warn().Msg("oidc authentication disabled: no user is resolved, so routes with authorizations refuse every request")
	}

	forwarder := gateway.NewForwarder(routes, http.DefaultTransport)
	engine.NoRoute(func(c *gin.Context) {
		forwarder.ServeHTTP(c.Writer, c.Request)
	})

	httpServer := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.Info().Str("addr", cfg.Host+":"+cfg.Port).Msg("starting gateway")

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == http.ErrServerClosed {
		runErr = nil
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("gateway exited with error")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
