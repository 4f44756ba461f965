package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Notestore NotestoreConfig   `yaml:"notestore"`
	WordPress WordPressConfig   `yaml:"wordpress"`
	Journal   JournalConfig     `yaml:"journal"`
	Sync      SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Notestore.Validate(); err != nil {
		return err
	}
	if err := c.WordPress.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// NotestoreConfig holds the note-service connection settings.
type NotestoreConfig struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	PageSize int    `yaml:"page_size"`
}

// Validate validates the note-store configuration.
func (c *NotestoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.PageSize, validation.Min(0), validation.Max(250)),
	)
}

// WordPressConfig holds the publish-target connection settings.
type WordPressConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Validate validates the publish-target configuration.
func (c *WordPressConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// JournalConfig holds the sync journal database settings.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SyncConfig holds sync-run behavior settings.
//
// Query is the default note search selecting the records to sync. DryRun
// skips every state-modifying call while still resolving and rendering.
type SyncConfig struct {
	Query  string `yaml:"query"`
	DryRun bool   `yaml:"dry_run"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Notestore: NotestoreConfig{
			PageSize: 100,
		},
		Journal: JournalConfig{
			Path: "./notepress.db",
		},
		Sync: SyncConfig{
			DryRun: true,
		},
	}
}
