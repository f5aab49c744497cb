package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/hmuro/roomcast/internal/adapters/http"
	"github.com/hmuro/roomcast/internal/config"
	"github.com/hmuro/roomcast/internal/core"
	"github.com/hmuro/roomcast/internal/token"
	"github.com/hmuro/roomcast/internal/transport/control"
	"github.com/hmuro/roomcast/internal/transport/relay"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	registry := core.NewRegistry(token.Issuer{}, cfg.MaxMembers)

	ln, err := net.Listen("tcp", cfg.ControlAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.ControlAddr).Msg("control listener failed")
	}
	pc, err := net.ListenPacket("udp", cfg.RelayAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RelayAddr).Msg("relay socket failed")
	}

	ctrl := control.NewServer(registry, ln, cfg.ReadLimit)
	engine := relay.NewEngine(registry, pc, cfg.ReadLimit)
	monitor := core.NewMonitor(registry, cfg.IdleTimeout, cfg.SweepInterval, engine.NotifyDeparture)

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Error().Err(err).Msg("control server error")
			cancel()
		}
	}()
	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Error().Err(err).Msg("relay engine error")
			cancel()
		}
	}()
	go monitor.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.SetupRouter(cfg, registry),
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("operational api started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("operational api error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("operational api forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
