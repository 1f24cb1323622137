package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string

	// Storage
	DatabaseURL  string // Postgres for conversations/favorites/pending; SQLite when empty
	DBName       string // SQLite accounting ledger (holded.db)
	PendingStore string // "memory" or "postgres"

	// Holded API
	HoldedAPIKey  string
	HoldedBaseURL string
	SafeMode      bool // Simulate mutating Holded calls

	// LLM Configuration
	Provider        string // "openai", "anthropic" or "lorem" (mock, no API key)
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	Model           string

	// Agent loop
	MaxRounds      int
	RequestTimeout time.Duration
	PendingTTL     time.Duration
	HistoryLimit   int

	// Rate limiting (per client IP)
	RateLimitMax    int
	RateLimitWindow time.Duration
	TrustProxy      bool // Key limits on X-Forwarded-For

	// Auth is enabled when a JWKS URL is configured
	AuthJWKSURL string

	// Files
	UploadsDir string
	ReportsDir string
	LogDir     string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	provider := getEnv("AI_PROVIDER", "openai")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBName:       getEnv("DB_NAME", "holded.db"),
		PendingStore: getEnv("PENDING_STORE", "memory"),

		HoldedAPIKey:  getEnv("HOLDED_API_KEY", ""),
		HoldedBaseURL: getEnv("HOLDED_BASE_URL", "https://api.holded.com/api"),
		// Safe by default: writes are simulated unless explicitly disabled
		SafeMode: getBool("HOLDED_SAFE_MODE", true),

		Provider:        provider,
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		Model:           getEnv("AI_MODEL", defaultModel(provider)),

		MaxRounds:      getInt("AGENT_MAX_ROUNDS", 10),
		RequestTimeout: getDuration("AGENT_REQUEST_TIMEOUT", 120*time.Second),
		PendingTTL:     getDuration("PENDING_TTL", 5*time.Minute),
		HistoryLimit:   getInt("AGENT_HISTORY_LIMIT", 20),

		RateLimitMax:    getInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		TrustProxy:      getBool("TRUST_PROXY", false),

		AuthJWKSURL: getEnv("AUTH_JWKS_URL", ""),

		UploadsDir: getEnv("UPLOADS_DIR", "uploads"),
		ReportsDir: getEnv("REPORTS_DIR", "reports"),
		LogDir:     getEnv("LOG_DIR", ""),
	}
}

// UsePostgres reports whether conversation data lives in Postgres.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// defaultModel returns the model used when AI_MODEL is unset.
func defaultModel(provider string) string {
	if provider == "anthropic" {
		return "claude-sonnet-4-5"
	}
	return "gpt-4o-mini"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getDuration accepts Go durations ("90s") or bare seconds ("90").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
