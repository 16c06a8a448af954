package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	ViewCacheTTL   time.Duration `mapstructure:"VIEW_CACHE_TTL"`
	AuthURL        string        `mapstructure:"AUTH_URL"`
	AuthAPIKey     string        `mapstructure:"AUTH_API_KEY"`
	AuthJWTSecret  string        `mapstructure:"AUTH_JWT_SECRET"`
	SessionSecret  string        `mapstructure:"SESSION_SECRET"`
	SessionSecure  bool          `mapstructure:"SESSION_SECURE"`
	LLMBaseURL     string        `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey      string        `mapstructure:"LLM_API_KEY"`
	LLMModel       string        `mapstructure:"LLM_MODEL"`
	LLMTemperature float32       `mapstructure:"LLM_TEMPERATURE"`
	LLMMaxTokens   int           `mapstructure:"LLM_MAX_TOKENS"`
	LLMTimeout     time.Duration `mapstructure:"LLM_TIMEOUT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	PublicBaseURL  string        `mapstructure:"PUBLIC_BASE_URL"`
	TrustedProxies []string      `mapstructure:"TRUSTED_PROXIES"`
	MetricsToken   string        `mapstructure:"METRICS_TOKEN"`
}

// devSessionSecret is only accepted when ENV=development.
const devSessionSecret = "helix-development-session-secret-change-me"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("VIEW_CACHE_TTL", "5m")
	v.SetDefault("SESSION_SECURE", false)
	v.SetDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("LLM_TEMPERATURE", 0.3)
	v.SetDefault("LLM_MAX_TOKENS", 2000)
	v.SetDefault("LLM_TIMEOUT", "60s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("BODY_LIMIT", "1M")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"REDIS_URL", "VIEW_CACHE_TTL",
		"AUTH_URL", "AUTH_API_KEY", "AUTH_JWT_SECRET",
		"SESSION_SECRET", "SESSION_SECURE",
		"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_TIMEOUT",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
		"PUBLIC_BASE_URL", "TRUSTED_PROXIES", "METRICS_TOKEN",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.TrustedProxies = splitList(cfg.TrustedProxies, v.GetString("TRUSTED_PROXIES"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.SessionSecret == "" {
		log.Println("WARNING: SESSION_SECRET is not set, using the development session secret.")
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

// splitList normalizes a comma-separated list whether viper decoded it as one
// element or not at all. Entries are trimmed and empties dropped.
func splitList(decoded []string, raw string) []string {
	if len(decoded) == 0 && raw != "" {
		decoded = []string{raw}
	}
	var out []string
	for _, item := range decoded {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to serve traffic with.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"test\" or \"production\", got %q", c.Env)
	}
	if c.AuthURL == "" {
		return fmt.Errorf("AUTH_URL is required")
	}
	if c.IsProduction() {
		if c.AuthJWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
		if c.SessionSecret == devSessionSecret {
			return fmt.Errorf("SESSION_SECRET must not use the development default in production")
		}
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes, got %d", len(c.SessionSecret))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2, got %v", c.LLMTemperature)
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
		}
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLMMaxTokens)
	}
	return nil
}
