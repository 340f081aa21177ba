package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the prospector service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Research  ResearchConfig  `mapstructure:"research"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Profile   ProfileConfig   `mapstructure:"profile_site"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the completion provider configuration
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// SearchConfig selects and configures the web search provider
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // brave, serper
	APIKey     string        `mapstructure:"api_key"`
	MaxResults int           `mapstructure:"max_results"`
	RateDelay  time.Duration `mapstructure:"rate_delay"` // pause between searches
}

// BrowserConfig controls the headless browsing session
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	QuiesceTimeout  time.Duration `mapstructure:"quiesce_timeout"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"` // per cookie-banner attempt
	MaxContentChars int           `mapstructure:"max_content_chars"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// ResearchConfig bounds the orchestration loop
type ResearchConfig struct {
	MaxIterations       int     `mapstructure:"max_iterations"`
	MaxNavFailures      int     `mapstructure:"max_nav_failures"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxFindings         int     `mapstructure:"max_findings"`
	MinFindings         int     `mapstructure:"min_findings"`
}

// SchedulerConfig controls job lifecycle handling
type SchedulerConfig struct {
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Backoff            time.Duration `mapstructure:"backoff"`
	ExponentialBackoff bool          `mapstructure:"exponential_backoff"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	Retention          time.Duration `mapstructure:"retention"`
	HeartbeatWindow    time.Duration `mapstructure:"heartbeat_window"`
	SweepCron          string        `mapstructure:"sweep_cron"`
}

// CacheConfig controls the result cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // memory, redis
	Size      int           `mapstructure:"size"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisPass string        `mapstructure:"redis_pass"`
	RedisDB   int           `mapstructure:"redis_db"`
}

// ProfileConfig describes the recognized profile site and its credentials
type ProfileConfig struct {
	Domain   string `mapstructure:"domain"`
	LoginURL string `mapstructure:"login_url"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoadConfig reads configuration from file and environment (PROSPECTOR_*).
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", time.Second)
	viper.SetDefault("search.provider", "brave")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.rate_delay", time.Second)
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.nav_timeout", 30*time.Second)
	viper.SetDefault("browser.quiesce_timeout", 10*time.Second)
	viper.SetDefault("browser.action_timeout", 3*time.Second)
	viper.SetDefault("browser.max_content_chars", 20000)
	viper.SetDefault("browser.user_agent", "Prospector/1.0 (+contact@example.com)")
	viper.SetDefault("research.max_iterations", 15)
	viper.SetDefault("research.max_nav_failures", 3)
	viper.SetDefault("research.confidence_threshold", 0.6)
	viper.SetDefault("research.max_findings", 5)
	viper.SetDefault("research.min_findings", 3)
	viper.SetDefault("scheduler.workers", 1)
	viper.SetDefault("scheduler.queue_size", 64)
	viper.SetDefault("scheduler.max_attempts", 2)
	viper.SetDefault("scheduler.backoff", 5*time.Second)
	viper.SetDefault("scheduler.exponential_backoff", true)
	viper.SetDefault("scheduler.job_timeout", 10*time.Minute)
	viper.SetDefault("scheduler.retention", time.Hour)
	viper.SetDefault("scheduler.heartbeat_window", 2*time.Minute)
	viper.SetDefault("scheduler.sweep_cron", "@hourly")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.size", 256)
	viper.SetDefault("cache.ttl", time.Hour)
	viper.SetDefault("profile_site.domain", "linkedin.com")
	viper.SetDefault("profile_site.login_url", "https://www.linkedin.com/login")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PROSPECTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// config file is optional; env and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Research.MaxIterations <= 0 {
		return fmt.Errorf("research.max_iterations must be > 0")
	}
	if c.Research.MaxNavFailures <= 0 {
		return fmt.Errorf("research.max_nav_failures must be > 0")
	}
	if c.Research.ConfidenceThreshold < 0 || c.Research.ConfidenceThreshold > 1 {
		return fmt.Errorf("research.confidence_threshold must be within [0,1]")
	}
	if c.Scheduler.MaxAttempts < 1 {
		return fmt.Errorf("scheduler.max_attempts must be >= 1")
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be >= 1")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be memory or redis")
	}
	return nil
}
