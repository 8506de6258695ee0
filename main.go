package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/monitoring"
	"github.com/gencurrent/async-socket-exchange-rate/internal/rpcerr"
	"github.com/gencurrent/async-socket-exchange-rate/internal/store"
	_ "go.uber.org/automaxprocs"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLogger := log.New(os.Stdout, "[boot] ", log.LstdFlags)

	cfg, err := LoadConfig(nil)
	if err != nil {
		bootLogger.Fatalf("failed to load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := monitoring.NewLogger(monitoring.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info().Strs("assets", cfg.Assets()).Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	mongoStore, err := store.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	connectCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer mongoStore.Close(context.Background())

	if err := mongoStore.InitializeAssets(ctx, cfg.Assets()); err != nil {
		if errors.Is(err, rpcerr.ErrAlreadyPopulated) {
			logger.Info().Msg("asset collection already populated, skipping initialization")
		} else {
			logger.Fatal().Err(err).Msg("failed to initialize assets")
		}
	}

	srv := NewServer(*cfg, logger, mongoStore)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
