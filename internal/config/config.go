package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pizzaparty/slices/internal/division"
	"github.com/pizzaparty/slices/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultSlicesPerPart  = 2
	defaultPartsPerPie    = 4
	defaultDiagramRadius  = 100.0
	defaultPlanCacheSize  = 128
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	Pie                  division.PieConfig
	Toppings             []string
	DiagramRadius        float64
	StateFile            string
	PlanCacheSize        int
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	SlicesPerPart        *int          `yaml:"slices_per_part"`
	PartsPerPie          *int          `yaml:"parts_per_pie"`
	Toppings             []string      `yaml:"toppings"`
	DiagramRadius        *float64      `yaml:"diagram_radius"`
	StateFile            string        `yaml:"state_file"`
	PlanCacheSize        *int          `yaml:"plan_cache_size"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	SlicesPerPart  *int
	PartsPerPie    *int
	ToppingsStr    *string
	StateFile      *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, err
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:     defaultPort,
		LogLevel: defaultLogLevel,
		Pie: division.PieConfig{
			SlicesPerPart: defaultSlicesPerPart,
			PartsPerPie:   defaultPartsPerPie,
		},
		Toppings:             storage.DefaultToppings(),
		DiagramRadius:        defaultDiagramRadius,
		PlanCacheSize:        defaultPlanCacheSize,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.SlicesPerPart != nil {
		cfg.Pie.SlicesPerPart = *yamlCfg.SlicesPerPart
	}

	if yamlCfg.PartsPerPie != nil {
		cfg.Pie.PartsPerPie = *yamlCfg.PartsPerPie
	}

	if len(yamlCfg.Toppings) > 0 {
		cfg.Toppings = yamlCfg.Toppings
	}

	if yamlCfg.DiagramRadius != nil {
		cfg.DiagramRadius = *yamlCfg.DiagramRadius
	}

	if yamlCfg.StateFile != "" {
		cfg.StateFile = yamlCfg.StateFile
	}

	if yamlCfg.PlanCacheSize != nil {
		cfg.PlanCacheSize = *yamlCfg.PlanCacheSize
	}

	durations := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.target = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if raw := strings.TrimSpace(os.Getenv("SLICES_PER_PART")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse SLICES_PER_PART: %w", err)
		}
		cfg.Pie.SlicesPerPart = value
	}

	if raw := strings.TrimSpace(os.Getenv("PARTS_PER_PIE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse PARTS_PER_PIE: %w", err)
		}
		cfg.Pie.PartsPerPie = value
	}

	if raw := strings.TrimSpace(os.Getenv("TOPPINGS")); raw != "" {
		names, err := parseToppings(raw)
		if err == nil {
			cfg.Toppings = names
		}
	}

	if raw := strings.TrimSpace(os.Getenv("DIAGRAM_RADIUS")); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.DiagramRadius = value
		}
	}

	if path := strings.TrimSpace(os.Getenv("STATE_FILE")); path != "" {
		cfg.StateFile = path
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.SlicesPerPart != nil {
		cfg.Pie.SlicesPerPart = *overrides.SlicesPerPart
	}

	if overrides.PartsPerPie != nil {
		cfg.Pie.PartsPerPie = *overrides.PartsPerPie
	}

	if overrides.ToppingsStr != nil && *overrides.ToppingsStr != "" {
		names, err := parseToppings(*overrides.ToppingsStr)
		if err != nil {
			return fmt.Errorf("parse toppings: %w", err)
		}
		cfg.Toppings = names
	}

	if overrides.StateFile != nil && *overrides.StateFile != "" {
		cfg.StateFile = *overrides.StateFile
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if err := cfg.Pie.Validate(); err != nil {
		return err
	}
	if _, err := storage.NormalizeToppings(cfg.Toppings); err != nil {
		return err
	}
	if cfg.DiagramRadius <= 0 {
		return fmt.Errorf("DIAGRAM_RADIUS must be > 0")
	}
	if cfg.PlanCacheSize < 0 {
		return fmt.Errorf("plan cache size must be >= 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// parseToppings parses a comma-separated list of base topping names.
func parseToppings(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, part)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no toppings provided")
	}
	return names, nil
}
