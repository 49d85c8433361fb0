// Package main implements the entry point for the vector log processing
// service: it connects components that detect and merge multi-line
// exception traces in log streams flowing over NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/xperimental/vector/component"
	"github.com/xperimental/vector/config"
	"github.com/xperimental/vector/metric"
	"github.com/xperimental/vector/natsclient"
	detectexceptions "github.com/xperimental/vector/processor/detect_exceptions"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vector"
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

	ensureDefaultComponents(cfg)

	ctx := context.Background()

	metricsRegistry := metric.NewMetricsRegistry()
	coreMetrics := metricsRegistry.CoreMetrics()

	natsClient, err := createNATSClient(cfg, logger, metricsRegistry, coreMetrics)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	defer func() {
		if err := natsClient.Close(ctx); err != nil {
			slog.Error("Error closing NATS client", "error", err)
		}
	}()

	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}
	coreMetrics.RecordNATSStatus(true)
	if rtt, err := natsClient.RTT(); err == nil {
		coreMetrics.RecordNATSRTT(rtt)
	}

	metricsServer := startMetricsServer(cfg, metricsRegistry)
	if metricsServer != nil {
		defer func() {
			if err := metricsServer.Stop(); err != nil {
				slog.Error("Error stopping metrics server", "error", err)
			}
		}()
	}

	registry := component.NewRegistry()
	if err := detectexceptions.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	components, err := createComponents(cfg, registry, deps)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, components, coreMetrics, cliCfg.ShutdownTimeout)
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

	slog.Info("Starting vector (exception trace detection)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// ensureDefaultComponents adds the default exception detection processor
// when the configuration names no components at all.
func ensureDefaultComponents(cfg *config.Config) {
	if cfg.Components == nil {
		cfg.Components = config.ComponentConfigs{}
	}

	if len(cfg.Components) == 0 {
		slog.Debug("No components configured, adding default detect_exceptions instance")
		cfg.Components["detect-exceptions-main"] = component.ComponentConfig{
			Name: "detect_exceptions",
			Type: "processor",
		}
	}
}

// createNATSClient builds the NATS client from configuration
func createNATSClient(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	coreMetrics *metric.Metrics,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(slogAdapter{logger: logger}),
		natsclient.WithMetrics(metricsRegistry),
		natsclient.WithReconnectCallback(func() {
			coreMetrics.RecordNATSReconnect()
		}),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			coreMetrics.RecordNATSStatus(healthy)
			coreMetrics.RecordHealthStatus(appName, healthy)
		}),
	}

	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	return natsclient.NewClient(cfg.NATS.URL(), opts...)
}

// connectToNATS establishes NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS")
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// startMetricsServer starts the Prometheus endpoint when enabled
func startMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry) *metric.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		slog.Info("Starting metrics server", "address", server.Address())
		if err := server.Start(); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	return server
}

// instance pairs a configured instance name with its managed component.
type instance struct {
	name    string
	managed *component.ManagedComponent
}

// createComponents instantiates every configured component in sorted
// instance-name order and initializes the ones with a lifecycle.
func createComponents(
	cfg *config.Config,
	registry *component.Registry,
	deps component.Dependencies,
) ([]*instance, error) {
	names := make([]string, 0, len(cfg.Components))
	for name := range cfg.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var components []*instance
	for _, instanceName := range names {
		cc := cfg.Components[instanceName]

		slog.Debug("Creating component",
			"instance", instanceName,
			"factory", cc.Name,
			"type", cc.Type)

		comp, err := registry.CreateComponent(instanceName, cc, deps)
		if err != nil {
			return nil, fmt.Errorf("create component %s: %w", instanceName, err)
		}

		if !component.IsLifecycleComponent(comp) {
			slog.Warn("Component has no lifecycle, skipping", "instance", instanceName)
			continue
		}

		mc := &component.ManagedComponent{
			Component: comp,
			State:     component.StateCreated,
		}

		lifecycle, _ := component.AsLifecycleComponent(comp)
		if err := lifecycle.Initialize(); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			return nil, fmt.Errorf("initialize component %s: %w", instanceName, err)
		}
		mc.State = component.StateInitialized

		components = append(components, &instance{name: instanceName, managed: mc})
	}

	return components, nil
}

// runWithSignalHandling starts components and handles shutdown signals
func runWithSignalHandling(
	ctx context.Context,
	components []*instance,
	coreMetrics *metric.Metrics,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	coreMetrics.RecordServiceStatus(appName, 1)

	started := make([]*instance, 0, len(components))
	for order, inst := range components {
		mc := inst.managed
		mc.Context, mc.Cancel = context.WithCancel(signalCtx)
		mc.StartOrder = order

		lifecycle, _ := component.AsLifecycleComponent(mc.Component)
		if err := lifecycle.Start(mc.Context); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			mc.Cancel()
			coreMetrics.RecordServiceStatus(appName, 4)
			stopAll(started, shutdownTimeout)
			return fmt.Errorf("start component %s: %w", inst.name, err)
		}
		mc.State = component.StateStarted
		slog.Info("Component started", "instance", inst.name, "state", mc.State.String())
		started = append(started, inst)
	}

	coreMetrics.RecordServiceStatus(appName, 2)
	coreMetrics.RecordHealthStatus(appName, true)
	slog.Info("Vector started successfully (exception trace detection ready)")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	coreMetrics.RecordServiceStatus(appName, 3)
	stopAll(started, shutdownTimeout)
	coreMetrics.RecordServiceStatus(appName, 0)
	slog.Info("Vector shutdown complete")
	return nil
}

// stopAll stops components in reverse start order
func stopAll(components []*instance, timeout time.Duration) {
	for i := len(components) - 1; i >= 0; i-- {
		inst := components[i]
		mc := inst.managed

		lifecycle, _ := component.AsLifecycleComponent(mc.Component)
		if err := lifecycle.Stop(timeout); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			slog.Error("Error stopping component", "instance", inst.name, "error", err)
			continue
		}
		mc.State = component.StateStopped
		if mc.Cancel != nil {
			mc.Cancel()
		}
		slog.Info("Component stopped", "instance", inst.name)
	}
}

// slogAdapter bridges slog to the natsclient logger interface
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
