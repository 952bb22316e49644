// Package main is the entry point for the marketfeed demo service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/marketfeed/business/marketdata"
	"github.com/fd1az/marketfeed/business/marketdata/app"
	marketdataDI "github.com/fd1az/marketfeed/business/marketdata/di"
	"github.com/fd1az/marketfeed/business/marketdata/domain"
	"github.com/fd1az/marketfeed/internal/apm"
	"github.com/fd1az/marketfeed/internal/config"
	"github.com/fd1az/marketfeed/internal/di"
	"github.com/fd1az/marketfeed/internal/health"
	"github.com/fd1az/marketfeed/internal/logger"
	"github.com/fd1az/marketfeed/internal/metrics"
	"github.com/fd1az/marketfeed/internal/monolith"
	"github.com/fd1az/marketfeed/internal/transport"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("marketfeed %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting marketfeed", "version", version, "environment", cfg.App.Environment)

	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			_ = traceProvider.Stop()
		}
	}()

	healthServer := health.NewServer(8081, version)

	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&marketdata.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Force-build the Foundation (and the venue sessions it creates on the
	// shared transport host) before the health server starts, so every
	// session has a registered check from the first health probe.
	foundation := di.GetToken[*app.Foundation](mono.Services(), marketdataDI.Foundation)
	host := di.GetToken[*transport.Host](mono.Services(), marketdataDI.TransportHost)
	registerTransportHealthChecks(healthServer, host)

	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	for _, symbol := range cfg.OKX.Symbols {
		foundation.Listen(symbol, logPriceUpdate(log))
	}
	for _, symbol := range cfg.Binance.Symbols {
		foundation.Listen(symbol, logPriceUpdate(log))
	}

	log.Info(ctx, "all venues subscribed, streaming price updates")

	<-ctx.Done()

	log.Info(ctx, "shutting down")
	if err := foundation.Close(); err != nil {
		log.Error(ctx, "error closing foundation", "error", err)
	}
	return nil
}

// registerTransportHealthChecks registers one health check per venue
// transport session, reporting healthy only once the session has reached
// StateOpen.
func registerTransportHealthChecks(hs *health.Server, host *transport.Host) {
	for _, sess := range host.Sessions() {
		sess := sess
		hs.RegisterCheck(sess.Name(), func(context.Context) (bool, string) {
			st := sess.State()
			return st == transport.StateOpen, string(st)
		})
	}
}

func logPriceUpdate(log logger.LoggerInterface) domain.Callback {
	return func(u domain.PriceUpdate) {
		log.Info(context.Background(), "price update",
			"symbol", u.Symbol, "price", u.Price, "ts", u.Timestamp)
	}
}
