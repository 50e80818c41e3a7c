package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Provider selectors accepted in AI_PROVIDER.
const (
	ProviderOpenAI       = "openai"
	ProviderOpenAILegacy = "openai-legacy"
	ProviderGemini       = "gemini"
	ProviderArk          = "ark"
)

// Catalog strategies accepted in CATALOG_SOURCE.
const (
	CatalogLive   = "live"
	CatalogCached = "cached"
	CatalogFile   = "file"
	CatalogSQL    = "sql"
)

// Config aggregates every setting of the service. It is built once in main and
// passed down; handlers never read the environment themselves.
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	AI      AIConfig
	Session SessionConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalogConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Catalog: catalog, AI: ai, Session: session}, nil
}

// ServerConfig describes the HTTP listener and its middleware.
type ServerConfig struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitWindow    time.Duration
	RateLimitMax       int
	RateLimitRedisURL  string
	ExposeErrorDetails bool
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(strings.TrimSpace(os.Getenv("PORT")))
	if err != nil {
		return ServerConfig{}, err
	}

	window, err := parseDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute)
	if err != nil {
		return ServerConfig{}, err
	}

	limit := 100
	if override, err := parseOptionalIntEnv("RATE_LIMIT_MAX"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		limit = *override
	}

	expose, err := parseBoolEnv("EXPOSE_ERROR_DETAILS", false)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:               addr,
		AllowedOrigins:     splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitWindow:    window,
		RateLimitMax:       limit,
		RateLimitRedisURL:  strings.TrimSpace(os.Getenv("RATE_LIMIT_REDIS_URL")),
		ExposeErrorDetails: expose,
	}, nil
}

func parseAddr(port string) (string, error) {
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// Accept ":3000" or "127.0.0.1:3000" as-is.
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// CatalogConfig describes where the product catalog comes from.
type CatalogConfig struct {
	Strategy       string
	StoreURL       string
	APIVersion     string
	AccessToken    string
	PageLimit      int
	FetchTimeout   time.Duration
	FetchAttempts  int
	// RefreshTimeout bounds a snapshot refresh independently of the request that started it.
	RefreshTimeout time.Duration
	SnapshotPath   string
	RedisURL       string
	RedisKey       string
	SQLDriver      string
	SQLDSN         string
}

// LiveEnabled reports whether the commerce platform can be queried directly.
func (c CatalogConfig) LiveEnabled() bool {
	return c.StoreURL != "" && c.AccessToken != ""
}

// NewRedisClient connects to the snapshot document store and verifies it answers.
func (c CatalogConfig) NewRedisClient(ctx context.Context) (*redis.Client, error) {
	return NewRedisClient(ctx, c.RedisURL)
}

// OpenDB opens the SQL snapshot database with gorm.
func (c CatalogConfig) OpenDB() (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.SQLDriver {
	case "postgres":
		dialector = postgres.Open(c.SQLDSN)
	case "sqlite":
		dialector = sqlite.Open(c.SQLDSN)
	default:
		return nil, fmt.Errorf("unsupported CATALOG_SQL_DRIVER %q", c.SQLDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	return db, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func loadCatalogConfig() (CatalogConfig, error) {
	strategy := strings.ToLower(getEnvOrDefault("CATALOG_SOURCE", CatalogLive))

	pageLimit := 50
	if override, err := parseOptionalIntEnv("SHOPIFY_PAGE_LIMIT"); err != nil {
		return CatalogConfig{}, err
	} else if override != nil {
		pageLimit = clampInt(*override, 1, 250)
	}

	attempts := 2
	if override, err := parseOptionalIntEnv("CATALOG_FETCH_ATTEMPTS"); err != nil {
		return CatalogConfig{}, err
	} else if override != nil {
		attempts = clampInt(*override, 1, 5)
	}

	timeout, err := parseDurationEnv("CATALOG_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return CatalogConfig{}, err
	}

	refreshTimeout, err := parseDurationEnv("CATALOG_REFRESH_TIMEOUT", time.Minute)
	if err != nil {
		return CatalogConfig{}, err
	}

	cfg := CatalogConfig{
		Strategy:       strategy,
		StoreURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("SHOPIFY_STORE_URL")), "/"),
		APIVersion:     getEnvOrDefault("SHOPIFY_API_VERSION", "2024-01"),
		AccessToken:    strings.TrimSpace(os.Getenv("SHOPIFY_ACCESS_TOKEN")),
		PageLimit:      pageLimit,
		FetchTimeout:   timeout,
		FetchAttempts:  attempts,
		RefreshTimeout: refreshTimeout,
		SnapshotPath:   getEnvOrDefault("CATALOG_FILE", "data/products.json"),
		RedisURL:       strings.TrimSpace(os.Getenv("CATALOG_REDIS_URL")),
		RedisKey:       getEnvOrDefault("CATALOG_REDIS_KEY", "catalog:products"),
		SQLDriver:      strings.ToLower(getEnvOrDefault("CATALOG_SQL_DRIVER", "postgres")),
		SQLDSN:         strings.TrimSpace(os.Getenv("CATALOG_SQL_DSN")),
	}

	switch strategy {
	case CatalogLive:
		if !cfg.LiveEnabled() {
			return CatalogConfig{}, fmt.Errorf("CATALOG_SOURCE=live requires SHOPIFY_STORE_URL and SHOPIFY_ACCESS_TOKEN")
		}
	case CatalogCached:
		if cfg.RedisURL == "" {
			return CatalogConfig{}, fmt.Errorf("CATALOG_SOURCE=cached requires CATALOG_REDIS_URL")
		}
	case CatalogFile:
	case CatalogSQL:
		if cfg.SQLDSN == "" {
			return CatalogConfig{}, fmt.Errorf("CATALOG_SOURCE=sql requires CATALOG_SQL_DSN")
		}
	default:
		return CatalogConfig{}, fmt.Errorf("invalid CATALOG_SOURCE value %q", strategy)
	}

	return cfg, nil
}

// AIConfig describes the LLM provider.
type AIConfig struct {
	Provider        string
	APIKey          string
	Organization    string
	Model           string
	BaseURL         string
	Timeout         time.Duration
	Temperature     *float64
	MaxTokens       *int
	Role            string
	MaxPromptTokens int
	RetryAttempts   int

	// Ark authenticates either with APIKey or with an AK/SK pair.
	AccessKey string
	SecretKey string
	Region    string
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderArk {
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	}
	return c.APIKey != "" && c.Model != ""
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY together with ARK_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

var providerDefaults = map[string]struct {
	keyEnv, modelEnv, baseURLEnv string
	model, baseURL               string
}{
	ProviderOpenAI:       {"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "gpt-4o-mini", "https://api.openai.com/v1"},
	ProviderOpenAILegacy: {"OPENAI_API_KEY", "OPENAI_COMPLETION_MODEL", "OPENAI_BASE_URL", "gpt-3.5-turbo-instruct", "https://api.openai.com/v1"},
	ProviderGemini:       {"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "gemini-1.5-flash", "https://generativelanguage.googleapis.com/v1beta"},
	ProviderArk:          {"ARK_API_KEY", "ARK_MODEL", "ARK_BASE_URL", "", "https://ark.cn-beijing.volces.com/api/v3"},
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	defaults, ok := providerDefaults[provider]
	if !ok {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 30*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	budget := 0
	if override, err := parseOptionalIntEnv("AI_MAX_PROMPT_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		budget = *override
	}

	// Provider calls are not idempotent; retrying is opt-in.
	attempts := 1
	if override, err := parseOptionalIntEnv("AI_RETRY_ATTEMPTS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		attempts = clampInt(*override, 1, 3)
	}

	cfg := AIConfig{
		Provider:        provider,
		APIKey:          strings.TrimSpace(os.Getenv(defaults.keyEnv)),
		Model:           getEnvOrDefault(defaults.modelEnv, defaults.model),
		BaseURL:         strings.TrimRight(getEnvOrDefault(defaults.baseURLEnv, defaults.baseURL), "/"),
		Timeout:         timeout,
		Temperature:     temperature,
		MaxTokens:       maxTokens,
		Role:            strings.TrimSpace(os.Getenv("ASSISTANT_ROLE")),
		MaxPromptTokens: budget,
		RetryAttempts:   attempts,
	}

	switch provider {
	case ProviderOpenAI, ProviderOpenAILegacy:
		cfg.Organization = strings.TrimSpace(os.Getenv("OPENAI_ORGANIZATION"))
	case ProviderArk:
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	}

	if !cfg.Enabled() {
		return AIConfig{}, fmt.Errorf("AI_PROVIDER=%s requires %s and a model name", provider, defaults.keyEnv)
	}

	return cfg, nil
}

// SessionConfig bounds in-memory conversation state.
type SessionConfig struct {
	MaxMessages   int
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	maxMessages := 20
	if override, err := parseOptionalIntEnv("SESSION_MAX_MESSAGES"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		if *override < 2 {
			maxMessages = 2
		} else {
			maxMessages = *override
		}
	}

	ttl, err := parseDurationEnv("SESSION_IDLE_TTL", 6*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	interval, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{MaxMessages: maxMessages, IdleTTL: ttl, SweepInterval: interval}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
