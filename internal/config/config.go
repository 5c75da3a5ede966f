package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		Signifyd   Signifyd   `yaml:"signifyd"`
		RateLimit  RateLimit  `yaml:"rate_limit"`
		SMTP       SMTP       `yaml:"smtp"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb"`
		MaxBackups int `yaml:"max_backups"`
		MaxAgeDays int `yaml:"max_age_days"`
	}
	// Config for JWT service tokens guarding internal endpoints.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}
	// Config for the webhook endpoint rate limiter.
	RateLimit struct {
		// Minimum interval between requests.
		Interval time.Duration `yaml:"interval" env-default:"10ms"`
		// Burst size.
		Burst int `yaml:"burst" env-default:"100"`
	}
	// Config for the invoice confirmation email sender.
	SMTP struct {
		Enabled bool   `yaml:"enabled" env:"SMTP_ENABLED"`
		Host    string `yaml:"host" env:"SMTP_HOST"`
		Port    int    `yaml:"port" env:"SMTP_PORT" env-default:"25"`
		From    string `yaml:"from" env:"SMTP_FROM"`
	}
	// Signifyd integration settings. The top level values apply to every
	// store; entries in Stores override them for a single store scope.
	Signifyd struct {
		Enabled bool `yaml:"enabled" env:"SIGNIFYD_ENABLED" env-default:"true"`
		// Shared secret used to verify webhook signatures.
		WebhookSecret string `yaml:"webhook_secret" env:"SIGNIFYD_WEBHOOK_SECRET"`
		// Order action applied on an approved guarantee.
		GuaranteePositiveAction string `yaml:"guarantee_positive_action" env-default:"unhold"`
		// Order action applied on a declined guarantee.
		GuaranteeNegativeAction string `yaml:"guarantee_negative_action" env-default:"hold"`
		// Payment methods whose confirmation arrives after placement.
		// Orders on these methods are parked without contacting Signifyd.
		AsyncPaymentMethods string `yaml:"async_payment_methods"`
		// Payment methods excluded from case creation.
		RestrictPaymentMethods string `yaml:"restrict_payment_methods"`
		// Order states excluded from case creation, per action with
		// a default fallback.
		RestrictStatesCreate  string `yaml:"restrict_states_create"`
		RestrictStatesDefault string `yaml:"restrict_states_default"`
		// Per store scope overrides.
		Stores []StoreScope `yaml:"stores"`
	}
	// StoreScope overrides integration settings for a single store.
	StoreScope struct {
		Code                    string  `yaml:"code"`
		Enabled                 *bool   `yaml:"enabled"`
		WebhookSecret           *string `yaml:"webhook_secret"`
		GuaranteePositiveAction *string `yaml:"guarantee_positive_action"`
		GuaranteeNegativeAction *string `yaml:"guarantee_negative_action"`
	}
	// Scope is the effective integration configuration for one store.
	Scope struct {
		Enabled                 bool
		WebhookSecret           string
		GuaranteePositiveAction string
		GuaranteeNegativeAction string
	}
)

// ForStore resolves the effective integration settings for the given
// store code. An unknown code resolves to the global defaults.
func (s Signifyd) ForStore(code string) Scope {
	scope := Scope{
		Enabled:                 s.Enabled,
		WebhookSecret:           s.WebhookSecret,
		GuaranteePositiveAction: s.GuaranteePositiveAction,
		GuaranteeNegativeAction: s.GuaranteeNegativeAction,
	}

	for _, store := range s.Stores {
		if store.Code != code {
			continue
		}
		if store.Enabled != nil {
			scope.Enabled = *store.Enabled
		}
		if store.WebhookSecret != nil {
			scope.WebhookSecret = *store.WebhookSecret
		}
		if store.GuaranteePositiveAction != nil {
			scope.GuaranteePositiveAction = *store.GuaranteePositiveAction
		}
		if store.GuaranteeNegativeAction != nil {
			scope.GuaranteeNegativeAction = *store.GuaranteeNegativeAction
		}
		break
	}

	return scope
}

// AsyncPaymentMethodList returns the configured async payment methods.
func (s Signifyd) AsyncPaymentMethodList() []string {
	return splitCSV(s.AsyncPaymentMethods)
}

// RestrictedPaymentMethodList returns the payment methods excluded from
// case creation.
func (s Signifyd) RestrictedPaymentMethodList() []string {
	return splitCSV(s.RestrictPaymentMethods)
}

// RestrictedStates returns the order states excluded from the given action.
// An action with no dedicated list falls back to the default list.
func (s Signifyd) RestrictedStates(action string) []string {
	var states []string

	switch action {
	case "create":
		states = splitCSV(s.RestrictStatesCreate)
	}

	if len(states) == 0 {
		states = splitCSV(s.RestrictStatesDefault)
	}

	return states
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")

	var cfg Config

	// Read given flags.
	flag.StringVar(&cfg.HTTPServer.Address, "a", "127.0.0.1:8080", "server startup address")
	flag.StringVar(&cfg.DSN, "d", "", "server data source name")
	flag.Parse()

	// Check if file exists.
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", *configPath)
	}

	// Load from YAML cfg file.
	bytes, err := os.Open(*configPath)
	if err != nil {
		log.Fatalf("failed to open config file: %s", *configPath)
	}
	if err = cleanenv.ParseYAML(bytes, &cfg); err != nil {
		log.Fatalf("failed to parse config file: %s", *configPath)
	}

	// Read environment variables.
	if err = cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	return &cfg
}
