// README: Entry point; loads config, wires services and runs the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"lumo/internal/config"
	httptransport "lumo/internal/http"
	"lumo/internal/infra"
	"lumo/internal/modules/pricing"
	"lumo/internal/modules/quote"
	"lumo/internal/modules/trip"
	"lumo/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := infra.NewLogger("json", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := infra.NewLogger(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegister(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer redisClient.Close()

	pricingSvc := pricing.NewService(log)

	quoteStore := quote.NewStore(redisClient)
	quoteSvc := quote.NewService(quoteStore, pricingSvc, cfg.Quote.TTL, log)

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore, quoteSvc, pricingSvc, log)

	server := httptransport.NewServer(cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout, httptransport.RouterDeps{
		Pricing: pricingSvc,
		Quote:   quoteSvc,
		Trip:    tripSvc,
		Log:     log,
	})

	log.Info().
		Strs("countries", pricing.SupportedCountries()).
		Str("default_country", pricing.DefaultCountry).
		Dur("quote_ttl", cfg.Quote.TTL).
		Msg("lumo api starting")

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
		os.Exit(1)
	}
	log.Info().Msg("lumo api exited")
}
