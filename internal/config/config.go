package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Environment string
	LogLevel    string
	HTTPPort    string

	SnowflakeNode int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// Explorer is the external ledger API the pollers read from.
	ExplorerBaseURL   string
	ExplorerAPIKey    string
	ExplorerPageLimit int

	// ReceivingAddresses are the wallet addresses watched for incoming
	// transfers; the first one is handed out to buyers at order intake.
	ReceivingAddresses []string

	// BaseRateNano is the price of one post per day per channel, in
	// nano-units of the settlement currency.
	BaseRateNano       int64
	MaxDiscountBps     int64
	AmountToleranceBps int64

	OrderTTL      time.Duration
	PollInterval  time.Duration
	PollLookback  time.Duration
	SweepInterval time.Duration

	// RedisAddr enables the order-intake rate limiter when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OrderRatePerMin is the sustained intake rate per client; OrderBurst is
	// the bucket capacity.
	OrderRatePerMin float64
	OrderBurst      int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_SERVICE", "promocast")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SNOWFLAKE_NODE", 1)

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "promocast")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 50)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)

	v.SetDefault("EXPLORER_BASE_URL", "")
	v.SetDefault("EXPLORER_API_KEY", "")
	v.SetDefault("EXPLORER_PAGE_LIMIT", 100)
	v.SetDefault("RECEIVING_ADDRESSES", "")

	v.SetDefault("BASE_RATE_NANO", int64(290_000_000))
	v.SetDefault("MAX_DISCOUNT_BPS", int64(2500))
	v.SetDefault("AMOUNT_TOLERANCE_BPS", int64(200))
	v.SetDefault("ORDER_TTL_SECONDS", 1200)
	v.SetDefault("POLL_INTERVAL_SECONDS", 30)
	v.SetDefault("POLL_LOOKBACK_SECONDS", 120)
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 60)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ORDER_RATE_PER_MIN", 10.0)
	v.SetDefault("ORDER_BURST", 5)

	return Config{
		AppName:     v.GetString("APP_SERVICE"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTPPort:    v.GetString("HTTP_PORT"),

		SnowflakeNode: v.GetInt64("SNOWFLAKE_NODE"),

		DBType:            v.GetString("DATABASE_TYPE"),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),

		ExplorerBaseURL:   strings.TrimSpace(v.GetString("EXPLORER_BASE_URL")),
		ExplorerAPIKey:    strings.TrimSpace(v.GetString("EXPLORER_API_KEY")),
		ExplorerPageLimit: v.GetInt("EXPLORER_PAGE_LIMIT"),

		ReceivingAddresses: splitAddresses(v.GetString("RECEIVING_ADDRESSES")),

		BaseRateNano:       v.GetInt64("BASE_RATE_NANO"),
		MaxDiscountBps:     v.GetInt64("MAX_DISCOUNT_BPS"),
		AmountToleranceBps: v.GetInt64("AMOUNT_TOLERANCE_BPS"),

		OrderTTL:      time.Duration(v.GetInt("ORDER_TTL_SECONDS")) * time.Second,
		PollInterval:  time.Duration(v.GetInt("POLL_INTERVAL_SECONDS")) * time.Second,
		PollLookback:  time.Duration(v.GetInt("POLL_LOOKBACK_SECONDS")) * time.Second,
		SweepInterval: time.Duration(v.GetInt("SWEEP_INTERVAL_SECONDS")) * time.Second,

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		OrderRatePerMin: v.GetFloat64("ORDER_RATE_PER_MIN"),
		OrderBurst:      v.GetInt("ORDER_BURST"),
	}
}

// PrimaryReceivingAddress is the address printed on new orders.
func (c Config) PrimaryReceivingAddress() string {
	if len(c.ReceivingAddresses) == 0 {
		return ""
	}
	return c.ReceivingAddresses[0]
}

func splitAddresses(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
