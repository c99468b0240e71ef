package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved application configuration. It is loaded once at
// startup and injected as a value; no package reads the environment after that.
type Config struct {
	Env string `mapstructure:"env"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Database struct {
		// Driver is one of "postgres", "mysql", "sqlite".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Stripe struct {
		APIKey        string `mapstructure:"api_key"`
		WebhookSecret string `mapstructure:"webhook_secret"`
	} `mapstructure:"stripe"`

	Mailer struct {
		BaseURL     string `mapstructure:"base_url"`
		APIKey      string `mapstructure:"api_key"`
		FromAddress string `mapstructure:"from_address"`
	} `mapstructure:"mailer"`

	App struct {
		// BaseURL is the public URL setup links are built against.
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"app"`

	License struct {
		DefaultTier      string `mapstructure:"default_tier"`
		DefaultAllowance int    `mapstructure:"default_allowance"`
		DefaultGrace     int    `mapstructure:"default_grace"`
	} `mapstructure:"license"`

	RateLimit struct {
		Enabled           bool `mapstructure:"enabled"`
		RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	} `mapstructure:"rate_limit"`

	Scheduler struct {
		IntervalSeconds      int `mapstructure:"interval_seconds"`
		RewardSweepBatchSize int `mapstructure:"reward_sweep_batch_size"`
		WebhookRetentionDays int `mapstructure:"webhook_retention_days"`
	} `mapstructure:"scheduler"`

	Observability struct {
		OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"observability"`
}

// Load reads configuration from CHECKLANE_* environment variables and, when
// present, a checklane.yaml file in the working directory or /etc/checklane.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHECKLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("checklane")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/checklane")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("stripe.api_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("mailer.base_url", "https://api.resend.com")
	v.SetDefault("mailer.api_key", "")
	v.SetDefault("mailer.from_address", "Checklane <onboarding@checklane.io>")
	v.SetDefault("app.base_url", "https://app.checklane.io")
	v.SetDefault("license.default_tier", "starter")
	v.SetDefault("license.default_allowance", 5)
	v.SetDefault("license.default_grace", 3)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("scheduler.interval_seconds", 300)
	v.SetDefault("scheduler.reward_sweep_batch_size", 100)
	v.SetDefault("scheduler.webhook_retention_days", 90)
	v.SetDefault("observability.otlp_endpoint", "")
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %d", c.Scheduler.IntervalSeconds)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
