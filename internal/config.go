package internal

import (
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/readwise2anki/internal/ankiconnect"
	"github.com/starford/readwise2anki/internal/cache"
	"github.com/starford/readwise2anki/internal/readwise"
	"github.com/starford/readwise2anki/internal/reconcile"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// DefaultDeck is the deck notes are synced into.
const DefaultDeck = "Readwise::imports"

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Readwise ReadwiseConfig    `yaml:"readwise"`
	Anki     AnkiConfig        `yaml:"anki"`
	Cache    CacheConfig       `yaml:"cache"`
	Sync     SyncConfig        `yaml:"sync"`
	Ledger   LedgerConfig      `yaml:"ledger"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Readwise.Validate(); err != nil {
		return err
	}
	if err := c.Anki.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Ledger.Validate()
}

// ApplicationConfig holds logging configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	// LogFile, when set, receives a copy of the log in size-rotated files.
	LogFile string `yaml:"log_file"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// ReadwiseConfig holds the export API settings.
type ReadwiseConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Validate validates the Readwise configuration. The token is checked at
// run time because flags may still supply it.
func (c *ReadwiseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.RequestsPerMinute, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AnkiConfig holds the AnkiConnect settings.
type AnkiConfig struct {
	URL      string        `yaml:"url"`
	Deck     string        `yaml:"deck"`
	NoteType string        `yaml:"note_type"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the Anki configuration.
func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Deck, validation.Required),
		validation.Field(&c.NoteType, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// CacheConfig controls reading the export from a local snapshot.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// SyncConfig controls which part of the export is reconciled and what
// happens to orphaned notes.
type SyncConfig struct {
	Orphans      reconcile.OrphanPolicy `yaml:"orphans"`
	Incremental  bool                   `yaml:"incremental"`
	UpdatedAfter string                 `yaml:"updated_after"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.Orphans == "" {
		c.Orphans = reconcile.OrphansReport
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Orphans, validation.In(reconcile.OrphansReport, reconcile.OrphansDelete)),
		validation.Field(&c.UpdatedAfter, validation.Date(time.RFC3339)),
	); err != nil {
		return err
	}
	if c.Incremental && c.UpdatedAfter != "" {
		return errors.New("sync: incremental and updated_after are mutually exclusive")
	}
	return nil
}

// LedgerConfig holds the run history database location.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Readwise: ReadwiseConfig{
			BaseURL:           readwise.DefaultBaseURL,
			RequestsPerMinute: readwise.DefaultRequestsPerMinute,
			Timeout:           60 * time.Second,
		},
		Anki: AnkiConfig{
			URL:      ankiconnect.DefaultURL,
			Deck:     DefaultDeck,
			NoteType: ankiconnect.DefaultNoteType,
			Timeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			Path: cache.DefaultPath,
		},
		Sync: SyncConfig{
			Orphans: reconcile.OrphansReport,
		},
		Ledger: LedgerConfig{
			Path: "./readwise2anki.db",
		},
	}
}
