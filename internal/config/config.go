// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOpenAIBaseURL = "http://localhost:5000/v1"
	DefaultOpenAIModel   = "turboderp_Llama-3-70B-Instruct-exl2_5.0bpw"
	GroqBaseURL          = "https://api.groq.com/openai/v1"
	GroqModel            = "llama3-70b-8192"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token           string        `yaml:"token"`
	Workers         int           `yaml:"workers"` // polling workers
	Language        string        `yaml:"language"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	RateBurst       int           `yaml:"rate_burst"`
	TypingInterval  time.Duration `yaml:"typing_interval"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int           `yaml:"port"` // 0 disables the admin server
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai | gemini | noop
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	APIToken        string        `yaml:"api_token"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Breaker         BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

type StorageConfig struct {
	Driver           string        `yaml:"driver"` // file | redis | postgres
	Path             string        `yaml:"path"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, then validates. A missing file is not an error; everything can
// come from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Bot.Token, "TG_BOT_TOKEN")
	set(&cfg.AI.BaseURL, "LLM_BASE_URL")
	set(&cfg.AI.Model, "LLM_MODEL")
	set(&cfg.AI.APIToken, "LLM_API_TOKEN")
	set(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")

	// A Groq token switches the backend to Groq's OpenAI-compatible endpoint.
	if v, ok := lookup("GROQ_TOKEN"); ok && strings.TrimSpace(v) != "" {
		cfg.AI.Provider = "openai"
		cfg.AI.BaseURL = GroqBaseURL
		cfg.AI.Model = GroqModel
		cfg.AI.APIToken = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Bot.RateLimitPerMin <= 0 {
		cfg.Bot.RateLimitPerMin = 20
	}
	if cfg.Bot.RateBurst <= 0 {
		cfg.Bot.RateBurst = 5
	}
	if cfg.Bot.TypingInterval <= 0 {
		cfg.Bot.TypingInterval = 4 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		if cfg.AI.GeminiKey != "" && cfg.AI.BaseURL == "" {
			cfg.AI.Provider = "gemini"
		} else {
			cfg.AI.Provider = "openai"
		}
	}
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.BaseURL == "" {
			cfg.AI.BaseURL = DefaultOpenAIBaseURL
		}
		if cfg.AI.Model == "" {
			cfg.AI.Model = DefaultOpenAIModel
		}
	case "gemini":
		if cfg.AI.Model == "" {
			cfg.AI.Model = DefaultGeminiModel
		}
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 2 * time.Minute
	}
	if cfg.AI.MaxRetries < 0 {
		cfg.AI.MaxRetries = 0
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "chats.json"
	}
	if cfg.Storage.AutosaveInterval <= 0 {
		cfg.Storage.AutosaveInterval = 5 * time.Minute
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = "chat_states"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
}

// Validate reports the first configuration problem that prevents startup.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (or set TG_BOT_TOKEN)")
	}
	switch c.AI.Provider {
	case "openai", "noop":
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for the gemini provider (or set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Storage.Driver {
	case "file":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis storage driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	if c.Admin.Port > 0 && c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.port is set")
	}
	return nil
}
