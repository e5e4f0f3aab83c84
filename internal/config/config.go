package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Executor   ExecutorConfig   `yaml:"executor" mapstructure:"executor"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer" mapstructure:"analyzer"`
	Identity   IdentityConfig   `yaml:"identity" mapstructure:"identity"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the result store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LLMConfig selects the generative backend.
type LLMConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// Temperature is nil when the backend default should apply; 0 is a
	// valid deterministic setting.
	Temperature *float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int      `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OllamaConfig holds Ollama cloud credentials.
type OllamaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SearchConfig selects the web search backend and its guard settings.
type SearchConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl settings for the page fetch fallback.
type FirecrawlConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures direct page fetches.
type FetchConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes     int64   `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerHost  float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	BurstPerHost int     `yaml:"burst_per_host" mapstructure:"burst_per_host"`
}

// ExecutorConfig configures the per-task retry loop.
type ExecutorConfig struct {
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// AnalyzerConfig configures task dispatch.
type AnalyzerConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// IdentityConfig configures product code resolution.
type IdentityConfig struct {
	CacheSize      int     `yaml:"cache_size" mapstructure:"cache_size"`
	MinScore       float64 `yaml:"min_score" mapstructure:"min_score"`
	TopN           int     `yaml:"top_n" mapstructure:"top_n"`
	MaxConcurrency int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// MonitoringConfig configures task quality alerts raised by serve.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	ErrorRateThreshold    float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	MinTasks              int     `yaml:"min_tasks" mapstructure:"min_tasks"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "product-analyzer.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "gpt-oss:20b-cloud")
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("ollama.key", "")
	v.SetDefault("ollama.base_url", "https://ollama.com/api")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("search.provider", "ollama")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.failure_threshold", 5)
	v.SetDefault("search.reset_timeout_secs", 30)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.enabled", false)
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.max_bytes", 2*1024*1024)
	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.rate_per_host", 2.0)
	v.SetDefault("fetch.burst_per_host", 2)
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.initial_backoff_ms", 2000)
	v.SetDefault("executor.max_backoff_ms", 30000)
	v.SetDefault("analyzer.max_concurrency", 9)
	v.SetDefault("identity.cache_size", 1024)
	v.SetDefault("identity.min_score", 0.6)
	v.SetDefault("identity.top_n", 3)
	v.SetDefault("identity.max_concurrency", 3)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.5)
	v.SetDefault("monitoring.error_rate_threshold", 0.1)
	v.SetDefault("monitoring.min_tasks", 18)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is one of "analyze",
// "resolve", "chat" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	llmChecks := func() {
		switch c.LLM.Provider {
		case "ollama":
			require(c.Ollama.Key != "", "ollama.key is required")
		case "anthropic":
			require(c.Anthropic.Key != "", "anthropic.key is required")
		case "gemini":
			require(c.Gemini.Key != "", "gemini.key is required")
		case "perplexity":
			require(c.Perplexity.Key != "", "perplexity.key is required")
		default:
			problems = append(problems, "llm.provider must be one of ollama, anthropic, gemini, perplexity")
		}
		require(c.LLM.TimeoutSecs > 0, "llm.timeout_secs must be > 0")
	}
	searchChecks := func() {
		switch c.Search.Provider {
		case "ollama":
			require(c.Ollama.Key != "", "ollama.key is required for search")
		case "jina":
			require(c.Jina.Key != "", "jina.key is required")
		default:
			problems = append(problems, "search.provider must be one of ollama, jina")
		}
		if c.Firecrawl.Enabled {
			require(c.Firecrawl.Key != "", "firecrawl.key is required when firecrawl.enabled")
		}
	}
	storeChecks := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	}

	switch mode {
	case "analyze":
		llmChecks()
		searchChecks()
		storeChecks()
		require(c.Executor.MaxRetries > 0, "executor.max_retries must be > 0")
		require(c.Analyzer.MaxConcurrency > 0, "analyzer.max_concurrency must be > 0")
	case "resolve":
		searchChecks()
	case "chat":
		llmChecks()
	case "serve":
		llmChecks()
		searchChecks()
		storeChecks()
		require(c.Server.Port > 0, "server.port must be > 0")
		if c.Monitoring.Enabled {
			require(c.Monitoring.WebhookURL != "", "monitoring.webhook_url is required when monitoring.enabled")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
