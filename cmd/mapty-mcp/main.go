package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/mapty/internal/config"
	"github.com/claude/mapty/internal/events"
	"github.com/claude/mapty/internal/mcp"
	"github.com/claude/mapty/internal/storage"
	"github.com/claude/mapty/internal/tracker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file for local mode (empty for defaults)")
	serverURL := flag.String("server", "", "mapty server URL for remote mode (e.g. https://mapty.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("MAPTY_AUTH_API_KEY"), "API key sent on writes in remote mode")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("mapty-mcp", Version)
		return
	}

	// Logs go to stderr; stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL, *apiKey)
		log.Info("remote mode", "server", *serverURL)
	} else {
		store, closeStore, err := openLocal(*configPath, log)
		if err != nil {
			log.Error("failed to open workouts", "error", err)
			os.Exit(1)
		}
		defer closeStore()
		ds = mcp.NewLocalSource(store)
	}

	if err := server.ServeStdio(mcp.New(ds, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

func openLocal(configPath string, log *slog.Logger) (*tracker.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	blobs, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Target())
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	store := tracker.New(blobs, cfg.Storage.Key, log)
	if _, err := store.Initialize(ctx); err != nil {
		var corrupt *tracker.StorageCorruptError
		if !errors.As(err, &corrupt) {
			blobs.Close()
			return nil, nil, err
		}
		log.Warn("starting with an empty workout list", "error", err)
	}

	if !cfg.Events.Enabled() {
		return store, func() { blobs.Close() }, nil
	}
	pub := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
	store.Subscribe(pub)
	return store, func() {
		pub.Close()
		blobs.Close()
	}, nil
}
