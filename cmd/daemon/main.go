package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cultivate-vcs/cultivate"
	"github.com/cultivate-vcs/cultivate/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	dataPath := flag.String("data", "", "Path to data directory (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *debug || cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
		logger.Fatal("could not create data directory: ", err)
	}

	backend, err := cultivate.New(cultivate.Config{
		Paths:                     []string{cfg.DataPath},
		MinimumFreeGB:             cfg.MinimumFreeGB,
		Logger:                    logger,
		Concurrency:               cfg.Concurrency,
		GarbageCollectionInterval: time.Duration(cfg.GCIntervalMinutes) * time.Minute,
	})
	if err != nil {
		logger.Fatal("could not open store: ", err)
	}

	logger.WithFields(logrus.Fields{
		"dataPath":    cfg.DataPath,
		"concurrency": backend.Concurrency(),
		"emptyTree":   backend.GetEmptyTreeID(),
	}).Info("store daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("received shutdown signal")

	if err := backend.Close(); err != nil {
		logger.Error("error closing store: ", err)
		os.Exit(1)
	}
}
