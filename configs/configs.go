// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/KevanReatha/flight-price-tracker/internal/models"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Provider contains settings for the flight-search API client.
	Provider ProviderConfig

	// Routes controls which (origin, destination) pairs are collected.
	Routes RoutesConfig

	// HorizonDays is how many future days of departures to quote (1..N).
	HorizonDays int

	// StoreRaw enables the raw request/response audit side-channel.
	StoreRaw bool

	// SourceName tags every quote with the provider it came from.
	SourceName string

	// Warehouse contains Postgres connection and error-classification settings.
	Warehouse WarehouseConfig

	// Ingest contains orchestrator-level retry settings.
	Ingest IngestConfig

	// Transform contains dbt settings for the downstream transform step.
	Transform TransformConfig

	// BreakerPath is where the circuit-breaker marker file lives.
	BreakerPath string

	// Notifier contains optional Telegram reporting settings.
	Notifier NotifierConfig

	// ScheduleCron, when set, runs the pipeline on a cron schedule instead
	// of once per invocation.
	ScheduleCron string
}

// ProviderConfig holds flight-search API client settings.
type ProviderConfig struct {
	// BaseURL is the search API root.
	BaseURL string

	// APIKey authenticates provider calls. Empty means every cell is
	// skipped without error and the run produces an empty batch.
	APIKey string

	// Currency is the single reporting currency for all quotes.
	Currency string

	// Timeout bounds each outbound search call.
	Timeout time.Duration

	// MaxAttempts caps retries of one cell on transient provider failures.
	MaxAttempts int

	// RetryDelay is the base delay of the linear backoff (attempt * delay).
	RetryDelay time.Duration

	// RequestsPerSecond bounds the outbound request rate.
	RequestsPerSecond float64
}

// RoutesConfig holds the route list, resolved in priority order:
// explicit pairs, then origin + destination list, then the warehouse
// supported_routes reference table.
type RoutesConfig struct {
	// Pairs are explicit "MEL-SYD" style routes from ROUTES.
	Pairs []models.Route

	// Origin plus Destinations expand to origin->each destination.
	Origin       string
	Destinations []string
}

// WarehouseConfig holds Postgres settings.
type WarehouseConfig struct {
	// DSN is the Postgres connection string built from PG_* variables.
	DSN string

	// TransientSQLStates are the SQLSTATE codes treated as retryable.
	// Provider-specific, so kept as configuration rather than code.
	TransientSQLStates []string
}

// IngestConfig holds orchestrator retry settings for the ingestion task.
type IngestConfig struct {
	// RetryDelays are the waits between ingestion attempts. Its length is
	// the retry budget (default two retries: 60s then 180s).
	RetryDelays []time.Duration
}

// TransformConfig holds settings for the dbt transform step.
// An empty ProjectDir disables the step.
type TransformConfig struct {
	ProjectDir  string
	ProfilesDir string
	Target      string
}

// NotifierConfig holds optional Telegram run-report settings.
type NotifierConfig struct {
	BotToken string
	ChatID   string
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() (*AppConfig, error) {
	_ = godotenv.Load() // Ignore error - .env is optional

	routes, err := getRoutes()
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Provider: ProviderConfig{
			BaseURL:           getEnv("TEQUILA_BASE_URL", "https://tequila-api.kiwi.com"),
			APIKey:            getEnv("TEQUILA_API_KEY", ""),
			Currency:          getEnv("QUOTE_CURRENCY", "AUD"),
			Timeout:           time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 25)) * time.Second,
			MaxAttempts:       getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
			RetryDelay:        time.Duration(getEnvInt("PROVIDER_RETRY_DELAY_SECONDS", 2)) * time.Second,
			RequestsPerSecond: getEnvFloat("PROVIDER_REQUESTS_PER_SECOND", 2.0),
		},
		Routes:      routes,
		HorizonDays: getEnvInt("HORIZON_DAYS", 30),
		StoreRaw:    getEnvBool("STORE_JSON", false),
		SourceName:  getEnv("SOURCE_NAME", "tequila"),
		Warehouse: WarehouseConfig{
			DSN:                getDatabaseDSN(),
			TransientSQLStates: getEnvList("WAREHOUSE_TRANSIENT_SQLSTATES", nil),
		},
		Ingest: IngestConfig{
			RetryDelays: getRetryDelays(),
		},
		Transform: TransformConfig{
			ProjectDir:  getEnv("DBT_PROJECT_DIR", ""),
			ProfilesDir: getEnv("DBT_PROFILES_DIR", ""),
			Target:      getEnv("DBT_TARGET", "dev"),
		},
		BreakerPath: getEnv("BREAKER_PATH", ".wh_circuit_open"),
		Notifier: NotifierConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		ScheduleCron: getEnv("SCHEDULE_CRON", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on unusable configuration, before any network activity.
func (c *AppConfig) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("HORIZON_DAYS must be >= 1, got %d", c.HorizonDays)
	}
	if c.Provider.MaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be >= 1, got %d", c.Provider.MaxAttempts)
	}
	if c.SourceName == "" {
		return fmt.Errorf("SOURCE_NAME must not be empty")
	}
	if c.Routes.Origin != "" && len(c.Routes.Destinations) == 0 {
		return fmt.Errorf("ORIGIN is set but DESTINATIONS is empty")
	}
	return nil
}

// StaticRoutes resolves the configured route list without touching the
// warehouse. An empty result means the caller should fall back to the
// supported_routes reference table.
func (c *AppConfig) StaticRoutes() []models.Route {
	if len(c.Routes.Pairs) > 0 {
		return c.Routes.Pairs
	}
	if c.Routes.Origin != "" {
		routes := make([]models.Route, 0, len(c.Routes.Destinations))
		for _, dest := range c.Routes.Destinations {
			routes = append(routes, models.Route{Origin: c.Routes.Origin, Destination: dest})
		}
		return routes
	}
	return nil
}

// getDatabaseDSN constructs the Postgres DSN from environment variables.
func getDatabaseDSN() string {
	if dsn := getEnv("PG_DSN", ""); dsn != "" {
		return dsn
	}

	dbUser := getEnv("PG_USER", "postgres")
	dbPassword := getEnv("PG_PASSWORD", "postgres")
	dbHost := getEnv("PG_HOST", "localhost")
	dbPort := getEnv("PG_PORT", "5432")
	dbName := getEnv("PG_DATABASE", "flight_db")
	sslMode := getEnv("PG_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPassword, dbHost, dbPort, dbName, sslMode,
	)
}

// getRoutes loads the static route configuration.
func getRoutes() (RoutesConfig, error) {
	pairs, err := models.ParseRoutes(getEnv("ROUTES", ""))
	if err != nil {
		return RoutesConfig{}, err
	}

	origin := strings.ToUpper(strings.TrimSpace(getEnv("ORIGIN", "")))
	var destinations []string
	for _, dest := range getEnvList("DESTINATIONS", nil) {
		destinations = append(destinations, strings.ToUpper(dest))
	}

	return RoutesConfig{
		Pairs:        pairs,
		Origin:       origin,
		Destinations: destinations,
	}, nil
}

// getRetryDelays parses INGEST_RETRY_DELAY_SECONDS ("60,180") into delays.
func getRetryDelays() []time.Duration {
	raw := getEnvList("INGEST_RETRY_DELAY_SECONDS", []string{"60", "180"})
	var delays []time.Duration
	for _, s := range raw {
		secs, err := strconv.Atoi(s)
		if err != nil || secs < 0 {
			continue
		}
		delays = append(delays, time.Duration(secs)*time.Second)
	}
	return delays
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool returns true when the variable is "1" or "true".
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "1" || strings.EqualFold(valueStr, "true")
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
