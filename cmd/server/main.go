package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/pizzaparty/slices/internal/application"
	"github.com/pizzaparty/slices/internal/config"
	"github.com/pizzaparty/slices/internal/logging"
)

var signalNotify = signal.Notify

// stopper is satisfied by *http.Server and *application.App.
type stopper interface {
	Shutdown(ctx context.Context) error
	Close() error
}

func main() {
	kingpinApp := kingpin.New("pizza-party", "Pizza party order service - packs everyone's topping wishes into whole pies")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	slicesPerPart := kingpinApp.Flag("slices-per-part", "Slices in one part of a pie").Default("0").Int()
	partsPerPie := kingpinApp.Flag("parts-per-pie", "Parts in one pie").Default("0").Int()
	toppingsStr := kingpinApp.Flag("toppings", "Comma-separated base toppings on the menu").String()
	stateFile := kingpinApp.Flag("state-file", "YAML file the order is loaded from and saved to").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *slicesPerPart != 0 {
		overrides.SlicesPerPart = slicesPerPart
	}

	if *partsPerPie != 0 {
		overrides.PartsPerPie = partsPerPie
	}

	if *toppingsStr != "" {
		overrides.ToppingsStr = toppingsStr
	}

	if *stateFile != "" {
		overrides.StateFile = stateFile
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
}

func shutdown(server stopper, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
