package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type ServerConfig struct {
	HTTPAddr     string        `mapstructure:"http_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CalendarName string        `mapstructure:"calendar_name"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// StorageConfig selects the key-value backend behind the local store.
// Backend is one of "file", "memory", "redis", "postgres".
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	RedisPrefix string `mapstructure:"redis_prefix"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// SheetsConfig describes the spreadsheet the importer reads.
// Mode "gviz" uses the public visualization endpoint, "api" the Sheets API.
type SheetsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	SpreadsheetID   string        `mapstructure:"id"`
	SheetName       string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	APIKey          string        `mapstructure:"api_key"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheBackend    string        `mapstructure:"cache_backend"`
}

type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// NotifyConfig picks where user-facing sync messages go besides Telegram.
type NotifyConfig struct {
	Provider      string `mapstructure:"provider"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AdminIDsRaw string `mapstructure:"admin_ids"`

	AdminIDs map[int64]bool `mapstructure:"-"`
}

// Load reads an optional YAML file and EVENTS_* environment variables.
// An empty path means environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	c.Telegram.AdminIDs = parseAdminIDs(c.Telegram.AdminIDsRaw)

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.calendar_name", "Taizé events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "taize:")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("sheets.enabled", true)
	v.SetDefault("sheets.id", "")
	v.SetDefault("sheets.name", "Події")
	v.SetDefault("sheets.mode", "gviz")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.api_key", "")
	v.SetDefault("sheets.cache_ttl", "5m")
	v.SetDefault("sheets.cache_backend", "memory")

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", "6h")

	v.SetDefault("notify.provider", "log")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", "")
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "file", "memory":
	case "redis":
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr is empty")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is empty")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	switch c.Sheets.Mode {
	case "gviz":
	case "api":
		if c.Sheets.CredentialsFile == "" && c.Sheets.APIKey == "" {
			return errors.New("sheets.mode=api needs credentials_file or api_key")
		}
	default:
		return fmt.Errorf("unknown sheets mode: %s", c.Sheets.Mode)
	}
	if c.Sheets.Enabled && c.Sheets.SpreadsheetID == "" {
		return errors.New("sheets.id is empty")
	}
	if c.Sheets.CacheTTL <= 0 {
		return errors.New("sheets.cache_ttl must be positive")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	switch c.Notify.Provider {
	case "log", "none", "":
	case "webhook":
		if c.Notify.WebhookURL == "" {
			return errors.New("notify.webhook_url is empty")
		}
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	return nil
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
