// Package main is the entry point for the prediction market AMM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/prediction-amm/business/amm"
	ammDI "github.com/fd1az/prediction-amm/business/amm/di"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/business/market"
	marketDI "github.com/fd1az/prediction-amm/business/market/di"
	"github.com/fd1az/prediction-amm/business/oracle"
	oracleDI "github.com/fd1az/prediction-amm/business/oracle/di"
	"github.com/fd1az/prediction-amm/internal/apm"
	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/config"
	"github.com/fd1az/prediction-amm/internal/health"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/metrics"
	"github.com/fd1az/prediction-amm/internal/monolith"
	"github.com/fd1az/prediction-amm/internal/server"
	"github.com/fd1az/prediction-amm/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const (
	tuiBuffer        = 512
	snapshotInterval = 2 * time.Second
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	watchURL := flag.String("watch", "", "Attach to a running engine's event stream, e.g. ws://localhost:8080/ws")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("amm %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if *watchURL != "" {
		err = watch(ctx, *watchURL, tuiMode)
	} else {
		err = run(ctx, *configPath, tuiMode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// In TUI mode, suppress logs (discard output)
	var out io.Writer = os.Stderr
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting prediction market AMM",
		"version", version,
		"environment", cfg.App.Environment,
	)

	shutdownTelemetry, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&market.Module{}, // registry and collateral allow-list
		&amm.Module{},    // engine, subscribes to market creation
		&oracle.Module{}, // resolves markets through the engine
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	services := mono.Services()
	engine := ammDI.GetEngine(services)

	healthServer := health.NewServer(cfg.Server.Port, version, log)
	if pg := mono.Postgres(); pg != nil {
		healthServer.RegisterCheck("postgres", health.PingCheck(pg))
	}
	if rc := mono.Redis(); rc != nil {
		healthServer.RegisterCheck("redis", health.PingCheck(rc))
	}

	srvCfg := server.Config{
		Port:                    cfg.Server.Port,
		RateLimitRPM:            cfg.Server.RateLimitRPM,
		Faucet:                  cfg.Server.Faucet,
		ShutdownTimeout:         cfg.Server.ShutdownTimeout,
		DefaultPeriod:           cfg.AMM.DefaultPeriod,
		DefaultVirtualLiquidity: cfg.AMM.DefaultVirtualLiquidityUnits(),
		DefaultCollateral:       asset.AddrUSDC,
	}
	if len(cfg.AMM.Collateral) > 0 {
		srvCfg.DefaultCollateral = cfg.AMM.Collateral[0].AddressHex()
	}
	deps := server.Deps{
		Engine:  engine,
		Markets: marketDI.GetRegistry(services),
		Oracle:  oracleDI.GetService(services),
		Ledger:  ammDI.GetLedger(services),
		Stream:  ammDI.GetHub(services),
		Health:  healthServer,
		Clock:   mono.Clock(),
		Logger:  log,
	}
	if cfg.Telemetry.Enabled {
		deps.Metrics = metrics.Handler()
	}
	srv, err := server.New(srvCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serve := func(ctx context.Context) error {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(gctx) })
		if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusPort > 0 {
			port := strconv.Itoa(cfg.Telemetry.PrometheusPort)
			g.Go(func() error { return metrics.ServePrometheusMetrics(gctx, metrics.WithPort(port)) })
			log.Info(ctx, "prometheus metrics server started", "port", port)
		}
		return g.Wait()
	}

	source := fmt.Sprintf("engine on :%d", cfg.Server.Port)
	events := ammDI.GetEvents(services)

	if !tuiMode {
		printer := ui.NewConsolePrinter(os.Stdout)
		events.Add(printer)
		printer.Start(source)
		defer printer.Stop()
		return serve(ctx)
	}

	pub := ui.NewPublisher(tuiBuffer)
	events.Add(pub)
	return runTUI(ctx, source, func(ctx context.Context) error {
		go pub.Run(ctx, ui.Send)
		go ui.PollSnapshots(ctx, engine, snapshotInterval, mono.Clock().Now, ui.Send)
		ui.Send(ui.ConnectionStatusMsg{Name: "engine", State: "connected"})
		return serve(ctx)
	})
}

// setupTelemetry installs tracing and metrics when enabled and returns
// their shutdown.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
	if err != nil {
		return nil, err
	}

	traceProvider, err := apm.NewTraceProvider(cfg.Telemetry.ServiceName,
		apm.WithProvider(apm.Provider(cfg.Telemetry.TraceProvider), apm.Endpoint{
			URL:     cfg.Telemetry.OTLPEndpoint,
			Headers: headers,
		}, log))
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	log.Info(ctx, "tracing initialized", "provider", cfg.Telemetry.TraceProvider, "endpoint", cfg.Telemetry.OTLPEndpoint)

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
	}
	if cfg.Telemetry.TraceProvider == string(metrics.OTLPGRPCProvider) && cfg.Telemetry.OTLPEndpoint != "" {
		opts = append(opts, metrics.WithOTLP(cfg.Telemetry.OTLPEndpoint, headers, false))
	}
	meterProvider, err := metrics.NewMetricProvider(ctx, opts...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to start metrics: %w", err)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics shutdown failed", "error", err)
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(shutdownCtx, "tracing shutdown failed", "error", err)
		}
	}, nil
}

// watch attaches the dashboard, or the console printer, to a remote engine.
func watch(ctx context.Context, url string, tuiMode bool) error {
	if !tuiMode {
		printer := ui.NewConsolePrinter(os.Stdout)
		printer.Start(url)
		defer printer.Stop()

		log := logger.New(os.Stderr, logger.LevelInfo, "amm-watch", nil)
		return ui.Watch(ctx, url,
			func(e domain.Event) { _ = printer.Publish(ctx, e) },
			func(state, detail string) { printer.Status("engine", state, detail) },
			log)
	}

	base, err := ui.HTTPBase(url)
	if err != nil {
		return err
	}
	remote, err := ui.NewRemoteMarkets(base)
	if err != nil {
		return err
	}

	return runTUI(ctx, url, func(ctx context.Context) error {
		go ui.PollRemote(ctx, remote, snapshotInterval, time.Now, ui.Send)
		return ui.Watch(ctx, url,
			func(e domain.Event) { ui.Send(ui.EventMsg{Event: e}) },
			func(state, detail string) {
				ui.Send(ui.ConnectionStatusMsg{Name: "engine", State: state, Detail: detail})
			},
			nil)
	})
}

// runTUI shows the dashboard immediately and starts work once the welcome
// screen is done. It returns after the dashboard quits and work has stopped.
func runTUI(ctx context.Context, source string, work func(context.Context) error) error {
	// Channel to receive the welcome-complete signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.New(source), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		err := work(ctx)
		if err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
		}
		errCh <- err
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-errCh
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	return <-errCh
}
