package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Runtime  RuntimeConfig  `yaml:"runtime"`
	IntelX   IntelXConfig   `yaml:"intelx"`
	Parser   ParserConfig   `yaml:"parser"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Source   SourceConfig   `yaml:"source"`
	Notify   NotifyConfig   `yaml:"notify"`
	Slack    SlackConfig    `yaml:"slack"`
	Dingding DingdingConfig `yaml:"dingding"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type RuntimeConfig struct {
	EmailDelayMS          int `yaml:"email_delay_ms"`
	WatchIntervalSeconds  int `yaml:"watch_interval_seconds"`
	ReloadIntervalSeconds int `yaml:"reload_interval_seconds"`
}

type IntelXConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	KeyringAccount string `yaml:"keyring_account"`
	Limit          int64  `yaml:"limit"`
	TimeoutMS      int    `yaml:"timeout_ms"`
}

type ParserConfig struct {
	Fields FieldsConfig `yaml:"fields"`
}

// FieldsConfig holds dotted paths into a raw search record.
type FieldsConfig struct {
	Content string `yaml:"content"`
	Added   string `yaml:"added"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	KeyMode string `yaml:"key_mode"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	KeyPrefix  string `yaml:"key_prefix"`
	LockTTLSec int    `yaml:"lock_ttl_seconds"`
}

type SourceConfig struct {
	Type   string            `yaml:"type"`
	Sheets SheetsSourceConfig `yaml:"sheets"`
	File   FileSourceConfig   `yaml:"file"`
}

type SheetsSourceConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	Endpoint        string `yaml:"endpoint"`
}

type FileSourceConfig struct {
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	Provider     string `yaml:"provider"`
	MaxPerMinute int    `yaml:"max_per_minute"`
	Template     string `yaml:"template"`
}

type SlackConfig struct {
	Token          string `yaml:"token"`
	KeyringAccount string `yaml:"keyring_account"`
	ChannelID      string `yaml:"channel_id"`
	APIURL         string `yaml:"api_url"`
}

type DingdingConfig struct {
	Webhook   string `yaml:"webhook"`
	Secret    string `yaml:"secret"`
	MsgType   string `yaml:"msg_type"`
	Title     string `yaml:"title"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	DefaultBaseURL  = "https://4.intelx.io/"
	DefaultLimit    = 2000000000
	DefaultTemplate = "New leak found for email ${email}: ${content} (added ${added})"
)

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

// Parse expands ${ENV} references, applies defaults and validates.
// Notification placeholders (${email}, ${content}, ${added}) are not
// environment references and are left as written.
func Parse(raw []byte) (Config, error) {
	expanded := os.Expand(string(raw), func(name string) string {
		switch name {
		case "email", "content", "added":
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Runtime.EmailDelayMS == 0 {
		c.Runtime.EmailDelayMS = 3000
	}
	if c.Runtime.WatchIntervalSeconds <= 0 {
		c.Runtime.WatchIntervalSeconds = 3600
	}
	if c.IntelX.BaseURL == "" {
		c.IntelX.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.IntelX.BaseURL, "/") {
		c.IntelX.BaseURL += "/"
	}
	if c.IntelX.Limit <= 0 {
		c.IntelX.Limit = DefaultLimit
	}
	if c.IntelX.TimeoutMS <= 0 {
		c.IntelX.TimeoutMS = 30000
	}
	if c.Parser.Fields.Content == "" {
		c.Parser.Fields.Content = "linea"
	}
	if c.Parser.Fields.Added == "" {
		c.Parser.Fields.Added = "item.added"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.KeyMode == "" {
		c.Storage.KeyMode = "literal"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "intelxscan:"
	}
	if c.Redis.LockTTLSec <= 0 {
		c.Redis.LockTTLSec = 3600
	}
	if c.Source.Type == "" {
		c.Source.Type = "sheets"
	}
	if c.Source.Sheets.Range == "" {
		c.Source.Sheets.Range = "Sheet1!A:D"
	}
	if c.Notify.Provider == "" {
		c.Notify.Provider = "slack"
	}
	if c.Notify.Template == "" {
		c.Notify.Template = DefaultTemplate
	}
	if c.Dingding.MsgType == "" {
		c.Dingding.MsgType = "text"
	}
	if c.Dingding.Title == "" {
		c.Dingding.Title = "IntelX leak"
	}
	if c.Dingding.TimeoutMS <= 0 {
		c.Dingding.TimeoutMS = 5000
	}
}

func (c Config) Validate() error {
	if c.Runtime.EmailDelayMS < 0 {
		return errors.New("runtime.email_delay_ms must be >= 0")
	}
	if _, err := url.ParseRequestURI(c.IntelX.BaseURL); err != nil {
		return fmt.Errorf("intelx.base_url invalid: %w", err)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path required for file backend")
		}
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr required for redis backend")
		}
	default:
		return fmt.Errorf("storage.backend %q not supported", c.Storage.Backend)
	}
	switch strings.ToLower(c.Storage.KeyMode) {
	case "literal", "hashed":
	default:
		return fmt.Errorf("storage.key_mode %q not supported", c.Storage.KeyMode)
	}
	switch strings.ToLower(c.Source.Type) {
	case "sheets":
		if strings.TrimSpace(c.Source.Sheets.SpreadsheetID) == "" {
			return errors.New("source.sheets.spreadsheet_id required")
		}
		if strings.TrimSpace(c.Source.Sheets.CredentialsFile) == "" {
			return errors.New("source.sheets.credentials_file required")
		}
	case "file":
		if strings.TrimSpace(c.Source.File.Path) == "" {
			return errors.New("source.file.path required")
		}
	default:
		return fmt.Errorf("source.type %q not supported", c.Source.Type)
	}
	switch strings.ToLower(c.Notify.Provider) {
	case "slack":
		if strings.TrimSpace(c.Slack.ChannelID) == "" {
			return errors.New("slack.channel_id required")
		}
	case "dingding":
		if strings.TrimSpace(c.Dingding.Webhook) == "" {
			return errors.New("dingding.webhook required")
		}
	default:
		return fmt.Errorf("notify.provider %q not supported", c.Notify.Provider)
	}
	if c.Notify.MaxPerMinute < 0 {
		return errors.New("notify.max_per_minute must be >= 0")
	}
	return nil
}
