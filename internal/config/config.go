package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string        `mapstructure:"PORT"`
	GRPCPort                string        `mapstructure:"GRPC_PORT"`
	Env                     string        `mapstructure:"ENV"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	DatabaseDSN             string        `mapstructure:"DB_DSN"`
	DBMaxOpenConns          int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	AMQPURL                 string        `mapstructure:"AMQP_URL"`
	AMQPExchange            string        `mapstructure:"AMQP_EXCHANGE"`
	OTLPEndpoint            string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	FirebaseCredentialsFile string        `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	ImageMaxWidth           int           `mapstructure:"IMAGE_MAX_WIDTH"`
	ImageJPEGQuality        int           `mapstructure:"IMAGE_JPEG_QUALITY"`
	PushCleanupTimeout      time.Duration `mapstructure:"PUSH_CLEANUP_TIMEOUT"`
	WSWriteTimeout          time.Duration `mapstructure:"WS_WRITE_TIMEOUT"`
}

var keys = []string{
	"PORT",
	"GRPC_PORT",
	"ENV",
	"LOG_LEVEL",
	"DB_DSN",
	"DB_MAX_OPEN_CONNS",
	"AMQP_URL",
	"AMQP_EXCHANGE",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"FIREBASE_CREDENTIALS_FILE",
	"IMAGE_MAX_WIDTH",
	"IMAGE_JPEG_QUALITY",
	"PUSH_CLEANUP_TIMEOUT",
	"WS_WRITE_TIMEOUT",
}

// Load reads configuration from the environment, falling back to a .env file
// in the working directory when present.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "9090")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("AMQP_EXCHANGE", "clinic.events")
	v.SetDefault("IMAGE_MAX_WIDTH", 800)
	v.SetDefault("IMAGE_JPEG_QUALITY", 70)
	v.SetDefault("PUSH_CLEANUP_TIMEOUT", "10s")
	v.SetDefault("WS_WRITE_TIMEOUT", "10s")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.ImageMaxWidth <= 0 {
		return fmt.Errorf("IMAGE_MAX_WIDTH must be positive, got %d", c.ImageMaxWidth)
	}
	if c.ImageJPEGQuality < 1 || c.ImageJPEGQuality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY must be within 1..100, got %d", c.ImageJPEGQuality)
	}
	if c.PushCleanupTimeout <= 0 {
		return fmt.Errorf("PUSH_CLEANUP_TIMEOUT must be positive")
	}
	if c.WSWriteTimeout <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT must be positive")
	}
	return nil
}
