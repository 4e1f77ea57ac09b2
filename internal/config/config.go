package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DBDSN       string `mapstructure:"DB_DSN"`

	// Идентификация
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	DevAllowUnverified bool          `mapstructure:"DEV_ALLOW_UNVERIFIED"`
	AuthCacheTTL       time.Duration `mapstructure:"AUTH_CACHE_TTL"`

	// Redis для кэша токенов, без адреса кэш в памяти
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`

	// Пустой токен - бот не запускается
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitPerMin int           `mapstructure:"RATE_LIMIT_PER_MIN"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	AggregatesCron  string        `mapstructure:"AGGREGATES_CRON"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("DEV_ALLOW_UNVERIFIED", false)
	v.SetDefault("AUTH_CACHE_TTL", 5*time.Minute)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_AUTH_DB", 1)
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("AGGREGATES_CRON", "*/10 * * * *")
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList "a, b" из окружения приходит одной строкой
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %s or %s, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	if c.JWTSecret == "" && !c.DevAllowUnverified {
		return fmt.Errorf("JWT_SECRET is required unless DEV_ALLOW_UNVERIFIED is set")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
