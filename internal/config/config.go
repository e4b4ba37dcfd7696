package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration loaded from floyd.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Search        SearchConfig        `mapstructure:"search"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Prompts       PromptsConfig       `mapstructure:"prompts"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	AdminPort    int           `mapstructure:"admin_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SearchConfig describes the external ranked-search service.
type SearchConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Index          string        `mapstructure:"index"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MinScore       float64       `mapstructure:"min_score"`
	DefaultTop     int           `mapstructure:"default_top"`
	SourceField    string        `mapstructure:"source_field"`
	ContentField   string        `mapstructure:"content_field"`
	SemanticConfig string        `mapstructure:"semantic_config"`
}

// LLMConfig describes the external completion service and the call policy
// applied to it.
type LLMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// ChatConfig holds the per-stage knobs of the answering pipeline.
type ChatConfig struct {
	RewriteTimeout   time.Duration `mapstructure:"rewrite_timeout"`
	SynthesisTimeout time.Duration `mapstructure:"synthesis_timeout"`
	HistoryBudget    int           `mapstructure:"history_budget"`
	Workers          int           `mapstructure:"workers"`
}

type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
	MaxLocal  int           `mapstructure:"max_local"`
}

type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
}

type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing struct {
		Enabled      bool   `mapstructure:"enabled"`
		ServiceName  string `mapstructure:"service_name"`
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"tracing"`
}

// PromptsConfig points at the directory watched for prompt overrides.
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads the configuration file from CONFIG_PATH (default
// config/floyd.yaml), applies environment overrides, then defaults.
func Load() (*Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/floyd.yaml"
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	return &c, nil
}

// Default returns a configuration with every default applied and no file
// read. Used by tests and by callers that configure everything through env.
func Default() *Config {
	c := &Config{}
	c.applyEnvOverrides()
	c.applyDefaults()
	return c
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEARCH_SERVICE_URL"); v != "" {
		c.Search.BaseURL = v
	}
	if v := os.Getenv("LLM_SERVICE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		c.Auth.SigningKey = v
	}
	if v := os.Getenv("PROMPTS_DIR"); v != "" {
		c.Prompts.Dir = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AdminPort == 0 {
		c.Server.AdminPort = 8081
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}

	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "http://search-service:8100"
	}
	if c.Search.Index == "" {
		c.Search.Index = "insurance-docs"
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 10 * time.Second
	}
	if c.Search.MinScore == 0 {
		c.Search.MinScore = 1.0
	}
	if c.Search.DefaultTop == 0 {
		c.Search.DefaultTop = 6
	}
	if c.Search.SourceField == "" {
		c.Search.SourceField = "sourcepage"
	}
	if c.Search.ContentField == "" {
		c.Search.ContentField = "content"
	}
	if c.Search.SemanticConfig == "" {
		c.Search.SemanticConfig = "default"
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://llm-service:8000"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-35-turbo"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.MaxAttempts == 0 {
		c.LLM.MaxAttempts = 3
	}
	if c.LLM.RetryBackoff == 0 {
		c.LLM.RetryBackoff = 2 * time.Second
	}
	if c.LLM.RateLimit == 0 {
		c.LLM.RateLimit = 10
	}
	if c.LLM.RateBurst == 0 {
		c.LLM.RateBurst = 5
	}

	if c.Chat.RewriteTimeout == 0 {
		c.Chat.RewriteTimeout = 60 * time.Second
	}
	if c.Chat.SynthesisTimeout == 0 {
		c.Chat.SynthesisTimeout = 30 * time.Second
	}
	if c.Chat.HistoryBudget == 0 {
		c.Chat.HistoryBudget = 4000
	}
	if c.Chat.Workers == 0 {
		c.Chat.Workers = 16
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Cache.MaxLocal == 0 {
		c.Cache.MaxLocal = 2048
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "floyd-orchestrator"
	}

	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = 2112
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = "floyd-orchestrator"
	}

	if c.Prompts.Dir == "" {
		c.Prompts.Dir = "config/prompts"
	}
}
