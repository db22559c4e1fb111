// Command brickplay runs a play station: it loads a creation's bindings,
// connects the creation's devices through their MQTT gateways, and routes
// controller input to device channels while a session runs.
//
//	brickplay                                      run the station
//	brickplay token --subject ops --role operator  print an API access token
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/brickplay-core/migrations"

	"github.com/nerrad567/brickplay-core/internal/api"
	"github.com/nerrad567/brickplay-core/internal/audit"
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/logging"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// Set with -ldflags "-X main.version=1.0.0 -X main.commit=abc123".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

const (
	// rollbackTimeout bounds the disconnects issued after a failed session
	// start and when a session ends.
	rollbackTimeout = 10 * time.Second

	// shutdownTimeout bounds the teardown of a session still playing at
	// exit. It outlasts rollbackTimeout so disconnects finish before the
	// broker connection closes.
	shutdownTimeout = rollbackTimeout + 5*time.Second
)

func main() {
	// A running session is torn down cleanly on Ctrl+C and SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the station and blocks until ctx is done. Shutdown happens in
// reverse: API, play session, then the infrastructure connections.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Brickplay Core", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("configuration loaded", "path", configPath, "station", cfg.Station.ID)

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	registry := device.NewRegistry(
		device.NewSQLiteRepository(in.db.DB),
		device.RemoteFactory(in.mqtt, device.RemoteOptions{
			QoS:          in.mqtt.QoS(),
			StateTimeout: cfg.GetStateTimeout(),
			OutboxSize:   cfg.Session.OutboxSize,
			Logger:       log,
		}),
	)
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}

	curves, err := creation.CurveSetFromConfig(cfg.Transform.Curves)
	if err != nil {
		return fmt.Errorf("building response curves: %w", err)
	}
	transform := creation.NewTransform(curves, nil)
	creations := creation.NewSQLiteRepository(in.db.DB)
	auditRepo := audit.NewSQLiteRepository(in.db.DB)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := api.NewHub(cfg.WebSocket, log)
	ui := api.NewUISurface(hub, cfg.GetPromptTimeout())

	player := play.NewPlayer(play.PlayerConfig{
		Devices:   registry,
		Transform: transform,
		Input:     play.NewMQTTInputSource(in.mqtt, "", in.mqtt.QoS(), log),
		Surface:   ui,
		Orchestrator: play.OrchestratorOptions{
			Concurrency:     cfg.Session.ConnectConcurrency,
			ConnectTimeout:  cfg.GetConnectTimeout(),
			RollbackTimeout: rollbackTimeout,
		},
		InputQueueSize: cfg.Session.InputQueueSize,
		Logger:         log,
		Metrics:        play.NewMetrics(promRegistry),
		Telemetry:      in.telemetry(),
		Hub:            hub,
		Audit:          auditRepo,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := player.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping play session", "error", err)
		}
	}()

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Registry:   registry,
		Creations:  creations,
		Transform:  transform,
		Player:     player,
		AuditRepo:  auditRepo,
		Hub:        hub,
		UI:         ui,
		DB:         in.db,
		MQTT:       in.mqtt,
		Influx:     in.influx,
		Registerer: promRegistry,
		Gatherer:   promRegistry,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	go hub.Run(ctx)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Error("error closing API server", "error", err)
		}
	}()

	if days := cfg.Database.AuditRetentionDays; days > 0 {
		go pruneAuditLoop(ctx, auditRepo, days, log)
	}

	if err := in.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("station ready",
		"devices", registry.Count(),
		"curves", len(curves.Names()),
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath honours BRICKPLAY_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("BRICKPLAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
