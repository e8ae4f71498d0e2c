// Package config loads runtime settings from an optional YAML file, the
// environment and a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joshsymonds/mailrelay/internal/format"
)

const EnvPrefix = "MAILRELAY"

type Config struct {
	WebhookURL string         `mapstructure:"webhook_url"`
	Location   string         `mapstructure:"location"`
	Mailbox    MailboxConfig  `mapstructure:"mailbox"`
	Gmail      GmailConfig    `mapstructure:"gmail"`
	IMAP       IMAPConfig     `mapstructure:"imap"`
	Store      StoreConfig    `mapstructure:"store"`
	Delivery   DeliveryConfig `mapstructure:"delivery"`
	Server     ServerConfig   `mapstructure:"server"`
	Log        LogConfig      `mapstructure:"log"`

	loc *time.Location
}

type MailboxConfig struct {
	Backend string `mapstructure:"backend"` // gmail | imap
}

type GmailConfig struct {
	Credentials string `mapstructure:"credentials"`
	Token       string `mapstructure:"token"`
	User        string `mapstructure:"user"`
}

type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	Mailbox  string `mapstructure:"mailbox"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite | postgres | keyring
	DSN        string `mapstructure:"dsn"`
	KeyringDir string `mapstructure:"keyring_dir"`
}

type DeliveryConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Wait     string        `mapstructure:"wait"` // "", "true" or "false"
	ThreadID string        `mapstructure:"thread_id"`
	Format   string        `mapstructure:"format"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]any{
	"webhook_url":        "",
	"location":           "Local",
	"mailbox.backend":    "gmail",
	"gmail.credentials":  "credentials.json",
	"gmail.token":        "token.json",
	"gmail.user":         "me",
	"imap.host":          "",
	"imap.port":          993,
	"imap.username":      "",
	"imap.password":      "",
	"imap.tls":           true,
	"imap.mailbox":       "INBOX",
	"store.driver":       "sqlite",
	"store.dsn":          "",
	"store.keyring_dir":  "",
	"delivery.interval":  time.Second,
	"delivery.timeout":   30 * time.Second,
	"delivery.wait":      "",
	"delivery.thread_id": "",
	"delivery.format":    "default",
	"server.listen":      ":8080",
	"log.level":          "info",
}

// Load reads .env (if present), then path (if non-empty and present), then
// MAILRELAY_* environment variables, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook_url must be an absolute http(s) url")
		}
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return fmt.Errorf("location %q: %w", c.Location, err)
	}
	c.loc = loc

	switch c.Mailbox.Backend {
	case "gmail":
		if c.Gmail.Credentials == "" || c.Gmail.Token == "" {
			return fmt.Errorf("gmail.credentials and gmail.token are required")
		}
	case "imap":
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			return fmt.Errorf("imap.host and imap.username are required")
		}
		if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
			return fmt.Errorf("imap.port %d out of range", c.IMAP.Port)
		}
	default:
		return fmt.Errorf("unknown mailbox.backend %q", c.Mailbox.Backend)
	}

	switch c.Store.Driver {
	case "sqlite", "keyring":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Delivery.Interval < 0 {
		return fmt.Errorf("delivery.interval must not be negative")
	}
	if c.Delivery.Timeout <= 0 {
		return fmt.Errorf("delivery.timeout must be positive")
	}
	switch c.Delivery.Wait {
	case "", "true", "false":
	default:
		return fmt.Errorf("delivery.wait must be true, false or empty")
	}
	if _, err := format.Lookup(c.Delivery.Format); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// TimeZone is the zone used for day-granular mailbox queries.
func (c *Config) TimeZone() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// WaitParam maps delivery.wait onto the webhook's optional wait flag.
func (c *Config) WaitParam() *bool {
	if c.Delivery.Wait == "" {
		return nil
	}
	wait := c.Delivery.Wait == "true"
	return &wait
}

func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return lvl, nil
}
