package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/amorokk/bee/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Market      MarketConfig      `mapstructure:"market"`
	Scan        ScanConfig        `mapstructure:"scan"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// TelegramConfig 描述 Telegram Bot 接入参数。
type TelegramConfig struct {
	BotToken     string   `mapstructure:"bot_token"`
	APIBase      string   `mapstructure:"api_base"`
	AdminChatIDs []string `mapstructure:"admin_chat_ids"`
}

// MarketConfig captures Gate Earn market connectivity and request pacing.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LimitPerPage   int           `mapstructure:"limit_per_page"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	MinJitter      time.Duration `mapstructure:"min_jitter"`
	MaxJitter      time.Duration `mapstructure:"max_jitter"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	RetryCooldown  time.Duration `mapstructure:"retry_cooldown"`
}

// ScanConfig governs the full threshold sweep.
type ScanConfig struct {
	TotalPages int           `mapstructure:"total_pages"`
	Workers    int           `mapstructure:"workers"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// MonitorConfig governs the periodic watch loop.
type MonitorConfig struct {
	Interval              time.Duration `mapstructure:"interval"`
	StartupDelay          time.Duration `mapstructure:"startup_delay"`
	AssetFailureThreshold int           `mapstructure:"asset_failure_threshold"`
}

// MaintenanceConfig sets background housekeeping behaviour.
type MaintenanceConfig struct {
	CleanupCron      string `mapstructure:"cleanup_cron"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bee")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("market.base_url", "https://www.gate.com/apiw/v2/uni-loan/earn/market/list")
	v.SetDefault("market.request_timeout", "30s")
	v.SetDefault("market.limit_per_page", 7)
	v.SetDefault("market.min_interval", "2s")
	v.SetDefault("market.min_jitter", "2s")
	v.SetDefault("market.max_jitter", "4s")
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.retry_base_delay", "2s")
	v.SetDefault("market.retry_max_delay", "60s")
	v.SetDefault("market.retry_cooldown", "60s")

	v.SetDefault("scan.total_pages", 112)
	v.SetDefault("scan.workers", 2)
	v.SetDefault("scan.cache_ttl", "5m")

	v.SetDefault("monitor.interval", "60s")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.asset_failure_threshold", 3)

	v.SetDefault("maintenance.cleanup_cron", "0 0 4 * * *")
	v.SetDefault("maintenance.log_retention_days", 30)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Market.BaseURL, "https://") {
		return fmt.Errorf("market.base_url must start with https:// (got %q)", c.Market.BaseURL)
	}
	if c.Market.MinInterval <= 0 {
		return fmt.Errorf("market.min_interval must be greater than zero")
	}
	if c.Market.MaxJitter < c.Market.MinJitter {
		return fmt.Errorf("market.max_jitter must not be less than market.min_jitter")
	}
	if c.Market.MaxRetries < 1 {
		return fmt.Errorf("market.max_retries must be at least 1")
	}
	if c.Scan.TotalPages <= 0 {
		return fmt.Errorf("scan.total_pages must be greater than zero")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be greater than zero")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.AssetFailureThreshold < 1 {
		return fmt.Errorf("monitor.asset_failure_threshold must be at least 1")
	}
	if c.Maintenance.LogRetentionDays < 1 {
		return fmt.Errorf("maintenance.log_retention_days must be at least 1")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// IsAdmin reports whether a chat id is configured as an admin chat.
func (c *Config) IsAdmin(chatID string) bool {
	for _, id := range c.Telegram.AdminChatIDs {
		if strings.TrimSpace(id) == chatID {
			return true
		}
	}
	return false
}
