package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturador/internal/afip"
	"facturador/internal/config"
	"facturador/internal/infra"
	"facturador/internal/router"
	"facturador/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Authorization backend. Production talks to live WSFE with the fiscal
	// certificate; everywhere else the simulator issues CAEs locally,
	// stable per numero, so the full pipeline runs without Authority
	// credentials.
	var firmante afip.Firmante
	var autorizador afip.Autorizador
	if cfg.EsProduccion() {
		certFirmante, err := afip.NewCertFirmante(cfg.CertPath, cfg.KeyPath, cfg.CUITEmisor)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load fiscal certificate")
		}
		firmante = certFirmante
		breaker := infra.NewCircuitBreaker(infra.DefaultCBConfig())
		autorizador = afip.NewClienteWSFE(cfg.URLWSFE, breaker)
		log.Info().Str("endpoint", cfg.URLWSFE).Msg("using live WSFE client")
	} else {
		firmante = afip.NewSimuladorFirmante(cfg.CUITEmisor)
		autorizador = afip.NewSimuladorWSFE(afip.NewRedisAlmacenCAE(rdb), nil)
		log.Info().Msg("using WSFE simulator")
	}

	r, workerHandlers := router.New(cfg, db, rdb, firmante, autorizador)

	// Goroutine worker pool for async emission and email jobs.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, workerHandlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("facturador listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
