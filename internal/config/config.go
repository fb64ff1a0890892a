package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix     = "NETPULSE"
	publicAPIEnv  = "NEXT_PUBLIC_API_URL"
	defaultAPIURL = "http://localhost:8080"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	CORS    CORSConfig    `mapstructure:"cors"`
	API     APIConfig     `mapstructure:"api"`
	Search  SearchConfig  `mapstructure:"search"`
	Ads     AdsConfig     `mapstructure:"ads"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type SearchConfig struct {
	DebounceDelay  time.Duration `mapstructure:"debounce_delay"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	SuggestLimit   int           `mapstructure:"suggest_limit"`
	SearchLimit    int           `mapstructure:"search_limit"`
}

type AdsConfig struct {
	TTL               time.Duration `mapstructure:"ttl"`
	ArticleAdInterval int           `mapstructure:"article_ad_interval"`
	DisableFallbacks  bool          `mapstructure:"disable_fallbacks"`
	WarmOnStart       bool          `mapstructure:"warm_on_start"`
	WarmTimeout       time.Duration `mapstructure:"warm_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Key      string `mapstructure:"key"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allow_credentials", false)

	v.SetDefault("api.base_url", defaultAPIURL)
	v.SetDefault("api.timeout", 5*time.Second)
	v.SetDefault("api.breaker.failure_threshold", 5)
	v.SetDefault("api.breaker.success_threshold", 2)
	v.SetDefault("api.breaker.open_timeout", 30*time.Second)

	v.SetDefault("search.debounce_delay", 250*time.Millisecond)
	v.SetDefault("search.min_query_length", 2)
	v.SetDefault("search.suggest_limit", 6)
	v.SetDefault("search.search_limit", 8)

	v.SetDefault("ads.ttl", 5*time.Minute)
	v.SetDefault("ads.article_ad_interval", 4)
	v.SetDefault("ads.disable_fallbacks", false)
	v.SetDefault("ads.warm_on_start", true)
	v.SetDefault("ads.warm_timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key", "netpulse:ads:active")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads configPath when it exists, then applies NETPULSE_* environment
// overrides. NEXT_PUBLIC_API_URL overrides api.base_url. An empty configPath
// loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("api.base_url", envPrefix+"_API_BASE_URL", publicAPIEnv); err != nil {
		return nil, fmt.Errorf("failed to bind api url env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaultAPIURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.MinQueryLength < 1 {
		return fmt.Errorf("search.min_query_length must be at least 1")
	}
	if c.Search.SuggestLimit <= 0 || c.Search.SearchLimit <= 0 {
		return fmt.Errorf("search limits must be greater than 0")
	}
	if c.Search.DebounceDelay < 0 {
		return fmt.Errorf("search.debounce_delay cannot be negative")
	}
	if c.Ads.TTL <= 0 {
		return fmt.Errorf("ads.ttl must be greater than 0")
	}
	if c.Ads.ArticleAdInterval <= 0 {
		return fmt.Errorf("ads.article_ad_interval must be greater than 0")
	}
	if c.Redis.Enabled && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		return fmt.Errorf("redis port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
