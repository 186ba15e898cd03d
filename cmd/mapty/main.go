package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/claude/mapty/internal/config"
	"github.com/claude/mapty/internal/events"
	"github.com/claude/mapty/internal/mcp"
	"github.com/claude/mapty/internal/server"
	"github.com/claude/mapty/internal/storage"
	"github.com/claude/mapty/internal/tracker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (empty for defaults)")
	migrateOnly := flag.Bool("migrate-only", false, "run postgres migrations and exit")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log.Info("Mapty starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *migrateOnly {
		err = migrate(cfg)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err = serve(ctx, cfg, log)
		stop()
	}
	if err != nil {
		log.Error("mapty stopped", "error", err)
		os.Exit(1)
	}
}

func migrate(cfg *config.Config) error {
	if cfg.Storage.Driver != storage.DriverPostgres {
		return fmt.Errorf("migrate-only needs the postgres driver, have %q", cfg.Storage.Driver)
	}
	return storage.RunMigrations(cfg.Target())
}

// serve runs the API until ctx is cancelled, then drains requests and
// flushes pending events.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	blobs, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Target())
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}
	defer blobs.Close()
	log.Info("storage opened", "driver", cfg.Storage.Driver, "key", cfg.Storage.Key)

	store := tracker.New(blobs, cfg.Storage.Key, log)
	if _, err := store.Initialize(ctx); err != nil {
		var corrupt *tracker.StorageCorruptError
		if !errors.As(err, &corrupt) {
			return err
		}
		log.Warn("starting with an empty workout list", "error", err)
	}

	if cfg.Events.Enabled() {
		pub := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
		defer pub.Close()
		store.Subscribe(pub)
		log.Info("publishing workout events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	api := server.New(store, cfg.Auth.APIKey, cfg.Map.ZoomLevel, log)
	api.MountMCP(mcpserver.NewStreamableHTTPServer(mcp.New(mcp.NewLocalSource(store), Version, log)))
	if cfg.Auth.APIKey == "" {
		log.Warn("auth.api_key is empty, write endpoints are unauthenticated")
	}

	ln, closeListener, err := listen(cfg, log)
	if err != nil {
		return err
	}
	defer closeListener()

	httpSrv := &http.Server{Handler: api, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(ln) }()

	select {
	case err := <-errc:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped", "workouts", store.Len())
	return nil
}

// listen binds on the tailnet when enabled, otherwise on host:port.
func listen(cfg *config.Config, log *slog.Logger) (net.Listener, func(), error) {
	if !cfg.Tailscale.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
		return ln, func() {}, nil
	}

	ts := &tsnet.Server{
		Hostname: cfg.Tailscale.Hostname,
		Dir:      cfg.Tailscale.StateDir,
	}
	if err := ts.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting tsnet: %w", err)
	}
	ln, err := ts.Listen("tcp", ":80")
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("tsnet listen: %w", err)
	}
	log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	return ln, func() { ts.Close() }, nil
}
