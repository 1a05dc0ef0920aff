// Package main implements the entry point for the RuleGate service.
// RuleGate is a compliance rule engine that validates addresses and
// transfers against an administrator-managed sequence of rules.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/rulegate/config"
	"github.com/c360/rulegate/engine"
	gwhttp "github.com/c360/rulegate/gateway/http"
	"github.com/c360/rulegate/metric"
	"github.com/c360/rulegate/natsclient"
	"github.com/c360/rulegate/notify"
	"github.com/c360/rulegate/registry"
	"github.com/c360/rulegate/rule"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rulegate"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	metricsRegistry, metricsServer := setupMetrics(cfg)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	natsClient, fanout, err := setupNotifications(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close()
	}

	ruleRegistry := registry.NewRegistry()
	if err := registerStockKinds(ruleRegistry); err != nil {
		return fmt.Errorf("register rule kinds: %w", err)
	}

	eng, err := buildEngine(cfg, logger, metricsRegistry, fanout, ruleRegistry)
	if err != nil {
		return err
	}

	gateway, err := setupGateway(ctx, cfg, eng, ruleRegistry, logger, fanout)
	if err != nil {
		return err
	}

	slog.Info("RuleGate started",
		"engine", eng.Name(),
		"rules", eng.RuleCount(),
		"http", cfg.HTTP.Enabled,
		"nats", cfg.NATS.Enabled)

	return waitForShutdown(ctx, gateway, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting RuleGate (compliance rule engine)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// setupMetrics creates the metrics registry and, when enabled, launches the
// Prometheus scrape endpoint.
func setupMetrics(cfg *config.Config) (*metric.Registry, *metric.Server) {
	metricsRegistry := metric.NewRegistry()
	if !cfg.Metrics.Enabled {
		return metricsRegistry, nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Metrics server failed", "port", cfg.Metrics.Port, "error", err)
		}
	}()

	return metricsRegistry, server
}

// setupNotifications builds the RulesDefined fan-out: structured logs
// always, NATS publishing when enabled. The HTTP gateway adds itself to
// the fan-out later.
func setupNotifications(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.Registry,
) (*natsclient.Client, *notify.Multi, error) {
	fanout := notify.NewMulti(notify.NewLogNotifier(logger))

	if !cfg.NATS.Enabled {
		return nil, fanout, nil
	}

	connectTimeout, err := cfg.NATS.ConnectTimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	reconnectWait, err := cfg.NATS.ReconnectWaitDuration()
	if err != nil {
		return nil, nil, err
	}

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(cfg.Service.Name),
		natsclient.WithTimeout(connectTimeout),
		natsclient.WithReconnectWait(reconnectWait),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metricsRegistry.CoreMetrics()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	natsNotifier, err := notify.NewNATSNotifier(client, cfg.NATS.SubjectPrefix,
		notify.WithLogger(logger),
		notify.WithMetrics(metricsRegistry.CoreMetrics()),
	)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("create NATS notifier: %w", err)
	}
	fanout.Add(natsNotifier)

	return client, fanout, nil
}

// registerStockKinds registers the rule kinds that ship with the service.
// Deployment-specific kinds are registered by embedding programs.
func registerStockKinds(reg *registry.Registry) error {
	registrations := []*registry.Registration{
		{
			Name:        "allow-all",
			Description: "Permits every address and transfer",
			Version:     Version,
			Factory: func(json.RawMessage) (rule.Rule, error) {
				return rule.AllowAll(), nil
			},
		},
		{
			Name:        "deny-all",
			Description: "Rejects every address and transfer",
			Version:     Version,
			Factory: func(json.RawMessage) (rule.Rule, error) {
				return rule.DenyAll(), nil
			},
		},
	}

	for _, r := range registrations {
		if err := reg.RegisterFactory(r); err != nil {
			return err
		}
	}

	slog.Info("Rule kinds registered", "kinds", reg.Kinds())
	return nil
}

// buildEngine constructs the rule engine from configuration, including the
// initial rule sequence built through the registry.
func buildEngine(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.Registry,
	fanout *notify.Multi,
	ruleRegistry *registry.Registry,
) (*engine.Engine, error) {
	initial, err := ruleRegistry.BuildSet(cfg.Engine.Rules)
	if err != nil {
		return nil, fmt.Errorf("build initial rule set: %w", err)
	}

	opts := []engine.Option{
		engine.WithRules(initial...),
		engine.WithNotifier(fanout),
		engine.WithLogger(logger),
		engine.WithMetrics(metricsRegistry),
	}
	if cfg.Engine.Admin != "" {
		opts = append(opts, engine.WithAdmin(engine.Principal(cfg.Engine.Admin)))
	}
	if cfg.Engine.PermissiveFailures {
		opts = append(opts, engine.WithPermissiveFailures())
	}

	return engine.New(cfg.Engine.Name, opts...), nil
}

// setupGateway starts the HTTP gateway when enabled and wires it into the
// notification fan-out so websocket observers see RulesDefined events.
func setupGateway(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	ruleRegistry *registry.Registry,
	logger *slog.Logger,
	fanout *notify.Multi,
) (*gwhttp.Gateway, error) {
	if !cfg.HTTP.Enabled {
		return nil, nil
	}

	gateway, err := gwhttp.NewGateway(gwhttp.Config{
		Addr:           cfg.HTTP.Addr,
		AdminToken:     cfg.HTTP.AdminToken,
		AdminPrincipal: engine.Principal(cfg.Engine.Admin),
	}, eng, ruleRegistry, logger)
	if err != nil {
		return nil, fmt.Errorf("create HTTP gateway: %w", err)
	}
	fanout.Add(gateway)

	if err := gateway.Start(ctx); err != nil {
		return nil, fmt.Errorf("start HTTP gateway: %w", err)
	}

	return gateway, nil
}

// waitForShutdown blocks until a termination signal arrives, then shuts the
// gateway down within the configured timeout.
func waitForShutdown(ctx context.Context, gateway *gwhttp.Gateway, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if gateway != nil {
		if err := gateway.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	slog.Info("RuleGate shutdown complete")
	return nil
}
