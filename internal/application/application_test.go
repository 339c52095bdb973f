package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pizzaparty/slices/internal/config"
	"github.com/pizzaparty/slices/internal/division"
	"github.com/pizzaparty/slices/internal/topping"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.Toppings = []string{"basil", "pepperoni"}
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got := app.storage.Toppings()
	if want := []topping.Base{"basil", "pepperoni"}; !slices.Equal(got, want) {
		t.Fatalf("expected toppings %v, got %v", want, got)
	}
	if app.server == nil || app.server.Handler == nil {
		t.Fatalf("expected server and root handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewReturnsErrorForInvalidToppings(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Toppings = nil

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid toppings")
	}
}

func TestNewReturnsErrorForInvalidPieConfig(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Pie.PartsPerPie = 0

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid pie config")
	}
}

func TestStatePersistsAcrossRestarts(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.StateFile = filepath.Join(t.TempDir(), "state.yaml")
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := app.storage.Set("alice", topping.FromBase("ham"), 5); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	restarted, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error on restart: %v", err)
	}
	if got := restarted.storage.Aggregate().Order.Get(topping.FromBase("ham")); got != 5 {
		t.Fatalf("expected 5 ham slices after restart, got %d", got)
	}
}

func TestNewRejectsCorruptStateFile(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.StateFile = filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(cfg.StateFile, []byte("participants: ["), 0o600); err != nil {
		t.Fatalf("write state: %v", err)
	}

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for corrupt state file")
	}
}

func TestRootHandlerRoutes(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	root := app.server.Handler

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{path: "/api/health", status: http.StatusOK, contains: `"status":"ok"`},
		{path: "/metrics", status: http.StatusOK, contains: "pizzaparty_plan_cache_requests_total"},
		{path: "/", status: http.StatusOK, contains: "<h1>Pizza party</h1>"},
		{path: "/missing", status: http.StatusNotFound},
	}

	// Plan once so the cache counter has a sample to expose.
	warm := httptest.NewRecorder()
	root.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/api/pies", nil))

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			root.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Fatalf("expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		LogLevel:             "info",
		Pie:                  division.PieConfig{SlicesPerPart: 2, PartsPerPie: 4},
		Toppings:             []string{"pepperoni", "ham"},
		DiagramRadius:        100,
		PlanCacheSize:        8,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}
