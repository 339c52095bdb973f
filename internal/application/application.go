package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pizzaparty/slices/internal/api"
	"github.com/pizzaparty/slices/internal/config"
	"github.com/pizzaparty/slices/internal/metrics"
	"github.com/pizzaparty/slices/internal/planner"
	"github.com/pizzaparty/slices/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage   *storage.MemoryStorage
	logger    *zap.Logger
	server    *http.Server
	stateFile string
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if err := store.SetToppings(cfg.Toppings); err != nil {
		return nil, fmt.Errorf("failed to apply toppings: %w", err)
	}

	if cfg.StateFile != "" {
		if err := store.LoadFile(cfg.StateFile); err != nil {
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
		logger.Info("order state loaded",
			zap.String("path", cfg.StateFile),
			zap.Int("participants", len(store.Participants())),
		)
	}

	collector := metrics.New()
	collector.Participants(len(store.Participants()))
	reportUndecodable(store, collector, logger)

	plan, err := planner.New(cfg.Pie,
		planner.WithRadius(cfg.DiagramRadius),
		planner.WithCacheSize(cfg.PlanCacheSize),
		planner.WithRecorder(collector),
		planner.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}

	handler := api.NewHandler(store, plan, cfg.Pie,
		api.WithRecorder(collector),
		api.WithHandlerLogger(logger),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler := BuildRootHandler(apiRouter, collector.Handler(), handler.Index())

	return &App{
		storage:   store,
		logger:    logger,
		server:    NewServer(cfg, rootHandler),
		stateFile: cfg.StateFile,
	}, nil
}

// BuildRootHandler constructs the root HTTP handler that routes API requests,
// exposes metrics and serves the diagram page.
func BuildRootHandler(apiHandler, metricsHandler, index http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", index)
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// persists the order state.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if saveErr := a.SaveState(); saveErr != nil {
		err = errors.Join(err, saveErr)
	}
	return err
}

// Close stops the server immediately.
func (a *App) Close() error {
	return a.server.Close()
}

// SaveState writes the order to the configured state file, if any.
func (a *App) SaveState() error {
	if a.stateFile == "" {
		return nil
	}
	if err := a.storage.SaveFile(a.stateFile); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	a.logger.Info("order state saved",
		zap.String("path", a.stateFile),
		zap.Int("participants", len(a.storage.Participants())),
	)
	return nil
}

func reportUndecodable(store *storage.MemoryStorage, collector *metrics.Collector, logger *zap.Logger) {
	collector.Undecodable(store.Undecodable())

	var keys []string
	for _, p := range store.Participants() {
		for _, k := range p.Toppings.Undecodable() {
			keys = append(keys, string(k))
		}
	}
	if len(keys) > 0 {
		logger.Warn("excluding undecodable topping keys from the order", zap.Strings("keys", keys))
	}
}
