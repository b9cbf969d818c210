// imbridge - chat-to-IoT message bridge
//
// This is the main entry point for the bridge process. It accepts chat
// messages from platform adapters (LINE, Telegram), turns recognised
// commands into device control envelopes on MQTT, and relays device
// status events back to every chat bound to the device.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tychang/imbridge/migrations"

	"github.com/tychang/imbridge/internal/api"
	"github.com/tychang/imbridge/internal/binding"
	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/dispatch"
	"github.com/tychang/imbridge/internal/history"
	"github.com/tychang/imbridge/internal/infrastructure/config"
	"github.com/tychang/imbridge/internal/infrastructure/database"
	"github.com/tychang/imbridge/internal/infrastructure/influxdb"
	"github.com/tychang/imbridge/internal/infrastructure/logging"
	"github.com/tychang/imbridge/internal/infrastructure/mqtt"
	"github.com/tychang/imbridge/internal/platform"
	"github.com/tychang/imbridge/internal/relay"
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

func main() {
	migrateMode := flag.String("migrate", "",
		"maintenance mode: 'status' prints migration state, 'down' reverts the latest migration")
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if *migrateMode != "" {
		err = runMigrate(ctx, *migrateMode, os.Stdout)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runMigrate handles the -migrate maintenance modes against the
// configured database, without starting the bridge itself.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mode: "status" or "down"
//   - out: Destination for the status report
//
// Returns:
//   - error: Unknown mode, config failure, or migration failure
func runMigrate(ctx context.Context, mode string, out io.Writer) error {
	if mode != "status" && mode != "down" {
		return fmt.Errorf("unknown migrate mode %q (want status or down)", mode)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Maintenance mode, nothing left to flush

	if mode == "down" {
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("reverting migration: %w", err)
		}
		fmt.Fprintln(out, "reverted latest migration")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(out, "no migrations found")
	}
	return nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting imbridge",
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

	// Open the notification history database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	historyRepo := history.NewSQLiteRepository(db.DB)

	// Device catalog from the supported-device allow-list
	catalog, err := device.NewCatalog(cfg.Devices.Supported)
	if err != nil {
		return fmt.Errorf("building device catalog: %w", err)
	}
	log.Info("device catalog loaded", "devices", catalog.Count())

	// Binding registry: file-backed, reloaded on modification
	bindingStore := binding.NewStore(cfg.Bindings.Path)
	bindings := binding.NewRegistry(bindingStore, cfg.GetBindingsPollInterval(), log)
	bindings.Start(ctx)
	log.Info("binding registry loaded",
		"path", cfg.Bindings.Path,
		"devices", bindings.DeviceCount(),
	)

	// Shared MQTT client for the status relay subscription
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Session-keyed publisher pool for outbound command envelopes
	pool := mqtt.NewPool(cfg.MQTT)
	pool.SetLogger(log)
	defer func() {
		log.Info("closing MQTT pool")
		if closeErr := pool.Close(); closeErr != nil {
			log.Error("error closing MQTT pool", "error", closeErr)
		}
	}()

	// Connect to InfluxDB (optional status metrics)
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

	// Platform senders behind a single mux
	notifier := platform.NewMux(map[string]platform.Sender{
		platform.Telegram: platform.NewTelegramClient(
			fmt.Sprintf("http://%s:%d", cfg.Platforms.Telegram.Host, cfg.Platforms.Telegram.Port),
			cfg.Platforms.Telegram.BotToken,
		),
		platform.Line: platform.NewLineClient(
			fmt.Sprintf("http://%s:%d", cfg.Platforms.Line.Host, cfg.Platforms.Line.Port),
			cfg.Platforms.Line.AccessToken,
		),
	})

	// Inbound command dispatcher
	dispatcher := dispatch.NewDispatcher(catalog, bindings, pool, notifier, log)

	// Status relay: broker status events back to bound chats
	consumerOpts := relay.ConsumerOptions{
		Recorder: historyRepo,
		QoS:      byte(cfg.MQTT.QoS),
		Logger:   log,
	}
	if influxClient != nil {
		consumerOpts.Metrics = influxClient
	}
	consumer := relay.NewConsumer(mqttClient, notifier, bindings, consumerOpts)
	if err := consumer.Start(); err != nil {
		return fmt.Errorf("starting status relay: %w", err)
	}
	log.Info("status relay started")

	// HTTP API: webhook intake, device listing, broadcast, history
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Handler:  dispatcher,
		Catalog:  catalog,
		Bindings: bindings,
		Notifier: notifier,
		History:  historyRepo,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT pool
	// 4. MQTT client
	// 5. Database

	log.Info("imbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IMBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
