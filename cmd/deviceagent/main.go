// deviceagent - per-device command agent
//
// The agent subscribes to one device's command topic tree, invokes the
// device executor over HTTP with signed requests, and publishes the
// resulting status event back toward the originating chat. It can also
// serve a built-in executor endpoint for devices that have no external
// controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tychang/imbridge/internal/agent"
	"github.com/tychang/imbridge/internal/device"
	"github.com/tychang/imbridge/internal/executor"
	"github.com/tychang/imbridge/internal/infrastructure/config"
	"github.com/tychang/imbridge/internal/infrastructure/logging"
	"github.com/tychang/imbridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// options holds the parsed command-line flags.
type options struct {
	configPath string
	deviceID   string
	keyPath    string
	pubKeyPath string
	listenAddr string
	endpoint   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := parseFlags()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config.yaml (defaults to IMBRIDGE_CONFIG or configs/config.yaml)")
	flag.StringVar(&opts.deviceID, "device", "", "device ID this agent controls (required)")
	flag.StringVar(&opts.keyPath, "key", "", "ECDSA private key PEM for signing executor requests (omit to send unsigned)")
	flag.StringVar(&opts.pubKeyPath, "pubkey", "", "ECDSA public key PEM for verifying requests to the built-in executor")
	flag.StringVar(&opts.listenAddr, "listen", "", "address for the built-in executor endpoint (e.g. :9000; omit to disable)")
	flag.StringVar(&opts.endpoint, "endpoint", "", "executor base URL override for this device's manufacturer")
	flag.Parse()
	return opts
}

// run wires the agent together and blocks until shutdown.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	if opts.deviceID == "" {
		return errors.New("a device ID is required (-device)")
	}

	log := logging.Default()
	log.Info("starting device agent",
		"version", version,
		"commit", commit,
		"device", opts.deviceID,
	)

	cfg, err := config.Load(resolveConfigPath(opts.configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)

	// Resolve the device against the supported allow-list
	catalog, err := device.NewCatalog(cfg.Devices.Supported)
	if err != nil {
		return fmt.Errorf("building device catalog: %w", err)
	}
	dev, err := catalog.Lookup(opts.deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %q: %w", opts.deviceID, err)
	}
	log.Info("device resolved",
		"device", dev.ID,
		"manufacturer", dev.Manufacturer,
		"type", dev.Type,
	)

	// Each agent needs its own broker identity
	cfg.MQTT.Broker.ClientID = "imbridge_agent_" + dev.ID

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
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Executor endpoint document, with an optional flag override for
	// this device's manufacturer
	defaults := map[string]string{}
	if opts.endpoint != "" {
		defaults[string(dev.Manufacturer)] = opts.endpoint
	}
	endpoints := executor.NewEndpoints(cfg.Devices.EndpointsPath, defaults, cfg.GetEndpointsPollInterval(), log)
	endpoints.Start(ctx)

	// Request signer: private key when provided, unsigned otherwise
	var signer executor.Signer
	if opts.keyPath != "" {
		signer, err = executor.NewECDSASigner(opts.keyPath)
		if err != nil {
			return fmt.Errorf("loading signing key: %w", err)
		}
		log.Info("request signing enabled", "key", opts.keyPath)
	} else {
		signer = executor.NoopSigner{}
		log.Warn("request signing disabled, executor requests are unsigned")
	}

	execClient := executor.NewClient(endpoints, signer)

	// Built-in executor endpoint (optional)
	if opts.listenAddr != "" {
		if err := startDeviceServer(ctx, opts, dev, log); err != nil {
			return err
		}
	}

	deviceAgent := agent.New(mqttClient, execClient, dev, byte(cfg.MQTT.QoS), log)
	if err := deviceAgent.Start(); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	log.Info("agent started, waiting for commands")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("device agent stopped")
	return nil
}

// startDeviceServer launches the built-in executor HTTP endpoint in a
// background goroutine and shuts it down when the context is cancelled.
func startDeviceServer(ctx context.Context, opts options, dev device.Device, log *logging.Logger) error {
	var verifier *executor.Verifier
	if opts.pubKeyPath != "" {
		v, err := executor.NewVerifierFromFile(opts.pubKeyPath)
		if err != nil {
			return fmt.Errorf("loading verification key: %w", err)
		}
		verifier = v
		log.Info("request verification enabled", "key", opts.pubKeyPath)
	} else {
		verifier = executor.NewVerifier(nil)
		log.Warn("request verification disabled, accepting unsigned requests")
	}

	deviceServer := agent.NewDeviceServer(dev, verifier, log)
	httpServer := &http.Server{
		Addr:              opts.listenAddr,
		Handler:           deviceServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("built-in executor listening", "addr", opts.listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("built-in executor failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping built-in executor", "error", err)
		}
	}()

	return nil
}

// resolveConfigPath returns the configuration file path from the flag,
// the IMBRIDGE_CONFIG environment variable, or the default, in that
// order.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv("IMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
