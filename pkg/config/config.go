package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: all environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers
	Tushare   TushareConfig
	Eastmoney EastmoneyConfig

	// ProviderPriority resolves field conflicts between sources.
	// Earlier entries win. Default: paid first, free fallback.
	ProviderPriority []string

	// AI reasoning
	LLM LLMConfig

	// Scanning
	Scan ScanConfig

	// Risk / position sizing
	Risk RiskConfig

	// Scheduling
	Scheduler SchedulerConfig

	// Notification
	WebhookURLs []string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration for the market data archive
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// TushareConfig holds Tushare Pro API configuration (paid source)
type TushareConfig struct {
	Token   string
	BaseURL string
}

// Configured reports whether the paid source can be used at all.
func (c TushareConfig) Configured() bool {
	return c.Token != ""
}

// EastmoneyConfig holds Eastmoney configuration (free default source)
type EastmoneyConfig struct {
	BaseURL       string
	PushBaseURL   string
	NoticeBaseURL string
	RatePerSec    int
}

// LLMConfig holds AI reasoning backend configuration
type LLMConfig struct {
	// Provider selects the active backend: openai, gemini, qwen, rules
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	QwenAPIKey  string
	QwenBaseURL string
	QwenModel   string

	// Timeout is the per-candidate reasoning budget. The single retry
	// after a timeout or error runs with RetryTimeout.
	Timeout      time.Duration
	RetryTimeout time.Duration
	TopK         int
}

// ScanConfig holds pipeline parameters for the scan cycle
type ScanConfig struct {
	// Universe is the symbol list to scan (comma separated env var).
	Universe []string

	PerSourceTimeout time.Duration
	GlobalDeadline   time.Duration
	Workers          int

	// Composite score weights. Must sum to ~1.0.
	WeightTechnical float64
	WeightPattern   float64
	WeightFlow      float64
	WeightValuation float64
	WeightSentiment float64

	// Normalization: minmax or percentile
	Normalization string

	// Classification cutoffs on the 0-100 composite score.
	BuyThreshold  float64
	HoldThreshold float64

	// Money flow abnormality threshold (z-score).
	FlowZScoreThreshold float64

	// Result cache TTL for the redis mirror.
	ResultTTL time.Duration
}

// RiskConfig holds risk profile selection and capital
type RiskConfig struct {
	Profile          string // aggressive, balanced, conservative
	AvailableCapital float64
}

// SchedulerConfig holds deadline scheduler configuration
type SchedulerConfig struct {
	// PremarketCron fires the preprocessing pass (cron with seconds).
	PremarketCron      string
	PreprocessDeadline time.Duration
	RefreshInterval    time.Duration
	PollInterval       time.Duration

	// MarketMIC selects the trading calendar (ISO 10383).
	MarketMIC string
	Timezone  string
}

// Load reads configuration from environment variables
// SSOT: this is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DATABASE_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Providers
		Tushare: TushareConfig{
			Token:   getEnv("TUSHARE_TOKEN", ""),
			BaseURL: getEnv("TUSHARE_BASE_URL", "https://api.tushare.pro"),
		},
		Eastmoney: EastmoneyConfig{
			BaseURL:       getEnv("EASTMONEY_BASE_URL", "https://datacenter-web.eastmoney.com"),
			PushBaseURL:   getEnv("EASTMONEY_PUSH_BASE_URL", "https://push2his.eastmoney.com"),
			NoticeBaseURL: getEnv("EASTMONEY_NOTICE_BASE_URL", "https://np-anotice-stock.eastmoney.com"),
			RatePerSec:    getEnvAsInt("EASTMONEY_RATE_PER_SEC", 5),
		},
		ProviderPriority: getEnvAsList("PROVIDER_PRIORITY", "tushare,eastmoney"),

		// AI reasoning
		LLM: LLMConfig{
			Provider:      getEnv("LLM_PROVIDER", "qwen"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiAPIKey:  getEnv("GOOGLE_API_KEY", ""),
			GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			QwenAPIKey:    getEnv("QWEN_API_KEY", ""),
			QwenBaseURL:   getEnv("QWEN_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			QwenModel:     getEnv("QWEN_MODEL", "qwen-plus"),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", "45s"),
			RetryTimeout:  getEnvAsDuration("LLM_RETRY_TIMEOUT", "20s"),
			TopK:          getEnvAsInt("LLM_TOP_K", 5),
		},

		// Scan
		Scan: ScanConfig{
			Universe:            getEnvAsList("SCAN_UNIVERSE", ""),
			PerSourceTimeout:    getEnvAsDuration("SCAN_SOURCE_TIMEOUT", "10s"),
			GlobalDeadline:      getEnvAsDuration("SCAN_GLOBAL_DEADLINE", "3m"),
			Workers:             getEnvAsInt("SCAN_WORKERS", 8),
			WeightTechnical:     getEnvAsFloat("WEIGHT_TECHNICAL", 0.30),
			WeightPattern:       getEnvAsFloat("WEIGHT_PATTERN", 0.15),
			WeightFlow:          getEnvAsFloat("WEIGHT_FLOW", 0.25),
			WeightValuation:     getEnvAsFloat("WEIGHT_VALUATION", 0.15),
			WeightSentiment:     getEnvAsFloat("WEIGHT_SENTIMENT", 0.15),
			Normalization:       getEnv("SCORE_NORMALIZATION", "minmax"),
			BuyThreshold:        getEnvAsFloat("BUY_THRESHOLD", 80),
			HoldThreshold:       getEnvAsFloat("HOLD_THRESHOLD", 60),
			FlowZScoreThreshold: getEnvAsFloat("FLOW_ZSCORE_THRESHOLD", 2.0),
			ResultTTL:           getEnvAsDuration("RESULT_TTL", "4h"),
		},

		// Risk
		Risk: RiskConfig{
			Profile:          getEnv("RISK_PROFILE", "balanced"),
			AvailableCapital: getEnvAsFloat("AVAILABLE_CAPITAL", 100000),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			PremarketCron:      getEnv("PREMARKET_CRON", "0 0 9 * * 1-5"),
			PreprocessDeadline: getEnvAsDuration("PREPROCESS_DEADLINE", "25m"),
			RefreshInterval:    getEnvAsDuration("REFRESH_INTERVAL", "5m"),
			PollInterval:       getEnvAsDuration("SCHEDULER_POLL_INTERVAL", "5s"),
			MarketMIC:          getEnv("MARKET_MIC", "xshg"),
			Timezone:           getEnv("MARKET_TIMEZONE", "Asia/Shanghai"),
		},

		// Notification
		WebhookURLs: getEnvAsList("WEBHOOK_URLS", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DATABASE_ENABLED=true")
	}

	switch c.Risk.Profile {
	case "aggressive", "balanced", "conservative":
	default:
		return fmt.Errorf("RISK_PROFILE must be one of: aggressive, balanced, conservative")
	}

	sum := c.Scan.WeightTechnical + c.Scan.WeightPattern + c.Scan.WeightFlow +
		c.Scan.WeightValuation + c.Scan.WeightSentiment
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("score weights must sum to 1.0, got %.3f", sum)
	}

	if c.Scan.BuyThreshold <= c.Scan.HoldThreshold {
		return fmt.Errorf("BUY_THRESHOLD (%.0f) must be above HOLD_THRESHOLD (%.0f)",
			c.Scan.BuyThreshold, c.Scan.HoldThreshold)
	}

	if len(c.ProviderPriority) == 0 {
		return fmt.Errorf("PROVIDER_PRIORITY must name at least one source")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	if valueStr == "" {
		return nil
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
