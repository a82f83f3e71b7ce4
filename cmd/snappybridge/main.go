// Snappy Bridge - multi-room audio state bridge
//
// This is the main entry point for the Snappy bridge. The process hosts
// the broadcast hub, listens to a Snapcast server's push notifications,
// polls Yamaha AV receivers for zone changes, and fans all resulting
// change events out to subscribed control surfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iszland/snappy-bridge/internal/bridge"
	"github.com/iszland/snappy-bridge/internal/hub"
	"github.com/iszland/snappy-bridge/internal/hubclient"
	"github.com/iszland/snappy-bridge/internal/infrastructure/config"
	"github.com/iszland/snappy-bridge/internal/infrastructure/influxdb"
	"github.com/iszland/snappy-bridge/internal/infrastructure/logging"
	"github.com/iszland/snappy-bridge/internal/snapcast"
	"github.com/iszland/snappy-bridge/internal/yamaha"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupMessageTimeout bounds how long the startup announcement waits for
// the back-channel to come up before giving up.
const startupMessageTimeout = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Snappy bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Snapcast RPC service, shared by the hub (group resolution, subscriber
	// queries) and the push adapter (client-to-group mapping)
	snapService := snapcast.NewService(cfg.Snapserver, log.With("component", "snapcast"))
	log.Info("snapcast service initialised", "url", cfg.Snapserver.HTTPURL())

	// Broadcast hub and its HTTP server. The metrics interface stays nil when
	// InfluxDB is disabled; a typed nil pointer would defeat the hub's check.
	var metrics hub.MetricsRecorder
	if influxClient != nil {
		metrics = influxClient
	}
	broadcastHub := hub.New(snapService, metrics, log.With("component", "hub"))
	hubServer := hub.NewServer(cfg.Hub, broadcastHub, log.With("component", "hub"))
	if err := hubServer.Start(ctx); err != nil {
		return fmt.Errorf("starting hub server: %w", err)
	}
	defer func() {
		log.Info("stopping hub server")
		if closeErr := hubServer.Close(); closeErr != nil {
			log.Error("error closing hub server", "error", closeErr)
		}
	}()

	// Back-channel from the adapters to the hub
	hubClient := hubclient.New(cfg.HubURL(), cfg.GetHubRetryDelay(), log.With("component", "hubclient"))
	hubClient.Connect(ctx)
	defer func() {
		log.Info("closing hub back-channel")
		if closeErr := hubClient.Close(); closeErr != nil {
			log.Error("error closing hub client", "error", closeErr)
		}
	}()
	log.Info("hub back-channel starting", "url", cfg.HubURL())

	// Announce this bridge instance once the back-channel is up
	go announceStartup(ctx, hubClient, log)

	// Snapcast push adapter
	listener := snapcast.NewListener(cfg.Snapserver, log.With("component", "snapcast"))
	snapcast.NewAdapter(listener, snapService, hubClient, log.With("component", "snapcast"))
	if err := listener.Start(); err != nil {
		return fmt.Errorf("starting snapcast listener: %w", err)
	}
	defer func() {
		log.Info("stopping snapcast listener")
		if closeErr := listener.Close(); closeErr != nil {
			log.Error("error closing snapcast listener", "error", closeErr)
		}
	}()
	log.Info("snapcast listener starting", "url", cfg.Snapserver.WebSocketURL())

	// Yamaha poll adapter
	yamahaService := yamaha.NewService(log.With("component", "yamaha"))
	poller := yamaha.NewPoller(yamahaService, hubClient, log.With("component", "yamaha"))
	scheduler := yamaha.NewScheduler(cfg.Yamaha, poller, log.With("component", "yamaha"))
	go scheduler.Run(ctx)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Snappy bridge stopped")
	return nil
}

// announceStartup publishes a global message naming this bridge host once
// the back-channel connects. Best-effort: gives up after a timeout.
func announceStartup(ctx context.Context, client *hubclient.Client, log *logging.Logger) {
	hostName, err := os.Hostname()
	if err != nil {
		hostName = "snappy-bridge"
	}

	deadline := time.Now().Add(startupMessageTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}

		err := client.Publish(ctx, bridge.ChangeEvent{
			Kind: bridge.KindGlobalMessage,
			Payload: bridge.GlobalMessage{
				HostName: hostName,
				Message:  "bridge online",
			},
		})
		if err == nil {
			log.Info("startup announcement published", "host_name", hostName)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
	log.Warn("startup announcement not published, back-channel never came up")
}

// getConfigPath returns the configuration file path.
// Uses SNAPPY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SNAPPY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
