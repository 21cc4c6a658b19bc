package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/config"
	"skoll/internal/engine"
	"skoll/internal/feed"
	skollNet "skoll/internal/net"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	setupLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the matching engine, the market-data hub and the TCP gateway.
	eng := engine.NewWithGate(engine.NewRiskGate(cfg.Risk.DefaultRateCredit))

	var hub *feed.Hub
	if cfg.Feed.Enabled {
		hub = feed.NewHub()
		go hub.Run(ctx)
		go serveFeed(ctx, cfg.Feed, hub)
	}

	var pub skollNet.FeedPublisher
	if hub != nil {
		pub = hub
	}
	srv := skollNet.New(cfg.Server.Address, cfg.Server.Port, eng, pub)
	if hub != nil {
		srv.EnableSnapshots(cfg.Feed.SnapshotInterval, cfg.Feed.SnapshotDepth)
	}

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func serveFeed(ctx context.Context, cfg config.FeedConfig, hub *feed.Hub) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("feed server shutdown")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("market-data feed running")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("feed server error")
	}
}
