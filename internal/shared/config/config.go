package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for checklist snapshots.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	LLMProvider        string
	LLMModel           string
	OpenAIAPIKey       string
	GeminiAPIKey       string
	LLMNoTempModels    string
	LLMTimeout         time.Duration
	AnalysisTimeout    time.Duration
	FollowupTimeout    time.Duration
	LLMRateLimitPerMin int

	ChecklistStore string
	LocalStoreDir  string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string
	RedisTTL       time.Duration

	SessionIdleTTL     time.Duration
	SessionSweepPeriod time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	store := normalizeStoreType(getEnv("CHECKLIST_STORE", StoreFile))
	dbURL := os.Getenv("DATABASE_URL")

	if store == StorePostgres && dbURL == "" {
		log.Printf("DATABASE_URL is required when CHECKLIST_STORE=postgres")
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		LLMProvider:        normalizeProvider(getEnv("LLM_PROVIDER", ProviderGemini)),
		LLMModel:           getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:       firstEnv("GEMINI_API_KEY", "API_KEY"),
		LLMNoTempModels:    os.Getenv("LLM_NO_TEMP0_MODELS"),
		LLMTimeout:         getSeconds("OPENAI_TIMEOUT_SECONDS", 60*time.Second),
		AnalysisTimeout:    getSeconds("ANALYSIS_TIMEOUT_SECONDS", 90*time.Second),
		FollowupTimeout:    getSeconds("FOLLOWUP_TIMEOUT_SECONDS", 60*time.Second),
		LLMRateLimitPerMin: getInt("LLM_RATE_LIMIT_PER_MIN", 20),

		ChecklistStore: store,
		LocalStoreDir:  getEnv("LOCAL_STORE_DIR", "./data"),
		SQLitePath:     getEnv("SQLITE_PATH", "./data/visadoc.db"),
		DatabaseURL:    dbURL,
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL:       getDuration("REDIS_TTL", 0),

		SessionIdleTTL:     getDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SessionSweepPeriod: getDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
	}

	if cfg.LLMProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "" {
		log.Printf("OPENAI_API_KEY is not set; analysis requests will fail")
	}
	if cfg.LLMProvider == ProviderGemini && cfg.GeminiAPIKey == "" {
		log.Printf("GEMINI_API_KEY is not set; analysis requests will fail")
	}
	return cfg
}

// IsProduction reports whether ENV resolved to production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func getSeconds(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return time.Duration(v) * time.Second
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreSQLite:
		return StoreSQLite
	case StorePostgres, "postgresql", "pg":
		return StorePostgres
	case StoreRedis:
		return StoreRedis
	case StoreMemory, "mem":
		return StoreMemory
	default:
		return StoreFile
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderOpenAI:
		return ProviderOpenAI
	case ProviderNone, "placeholder", "off":
		return ProviderNone
	default:
		return ProviderGemini
	}
}
