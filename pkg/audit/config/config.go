// Package config holds the audit trail configuration: defaults, compliance
// presets and a file/env loader. A Config is resolved once per logger
// instance; live reconfiguration goes through audit.Logger.SetConfig.
package config

import (
	"context"
	"time"

	"github.com/spounge-ai/audittrail/pkg/audit/chain"
	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// StoreType selects the persistence backend.
type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreFile     StoreType = "file"
	StorePostgres StoreType = "postgres"
)

// SinkType identifies one of the closed set of sink variants.
type SinkType string

const (
	SinkConsole SinkType = "console"
	SinkFile    SinkType = "file"
	SinkWebhook SinkType = "webhook"
	SinkS3      SinkType = "s3"
	SinkCustom  SinkType = "custom"
)

// SinkConfig describes a single output destination. Only the fields for the
// selected Type are consulted.
type SinkConfig struct {
	Type SinkType `mapstructure:"type" validate:"required,oneof=console file webhook s3 custom"`

	// File sink.
	Path string `mapstructure:"path"`

	// Webhook sink. Headers are merged into the request but never override
	// Content-Type.
	URL     string            `mapstructure:"url" validate:"omitempty,url"`
	Headers map[string]string `mapstructure:"headers"`

	// S3 sink.
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`

	// Custom sink: an opaque caller-supplied handler. Not loadable from a
	// config file.
	Handler func(ctx context.Context, entry *domain.AuditEntry) error `mapstructure:"-"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Type StoreType `mapstructure:"type" validate:"omitempty,oneof=memory file postgres"`

	// Memory store capacity; oldest entries are evicted beyond this.
	MaxSize int `mapstructure:"max_size" validate:"gte=0"`

	// File store.
	FilePath      string        `mapstructure:"file_path"`
	BufferSize    int           `mapstructure:"buffer_size" validate:"gte=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`

	// Postgres store.
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Config is the full audit trail configuration. Zero values are filled by
// WithDefaults; use Default or ForPreset to start from a resolved base.
type Config struct {
	// Structured switches console output between JSON lines and a
	// human-readable form. Nil means the default (on).
	Structured *bool `mapstructure:"structured"`

	HashChaining  bool            `mapstructure:"hash_chaining"`
	HashAlgorithm chain.Algorithm `mapstructure:"hash_algorithm" validate:"omitempty,oneof=sha256 sha512"`

	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	RetentionDays int  `mapstructure:"retention_days" validate:"gte=0"`
	AutoDelete    bool `mapstructure:"auto_delete"`
	// PurgeInterval is how often the auto-delete loop runs.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`

	SignLogs   bool   `mapstructure:"sign_logs"`
	SigningKey string `mapstructure:"signing_key"`

	// IncludeStackTraces controls whether Failure records a stack. Nil means
	// the default: on everywhere except the production environment.
	IncludeStackTraces *bool `mapstructure:"include_stack_traces"`

	BufferSize    int           `mapstructure:"buffer_size" validate:"gte=0"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`

	Store StoreConfig  `mapstructure:"store"`
	Sinks []SinkConfig `mapstructure:"sinks" validate:"dive"`
}

const (
	defaultRetentionDays = 365
	defaultBufferSize    = 100
	defaultFlushInterval = time.Second
	defaultPurgeInterval = time.Hour
	defaultMemoryMax     = 10000
)

// Default returns the base configuration: structured logging on, chaining
// off, sha256, 365 day retention, memory store, a single console sink.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of c with every unset field resolved to its
// documented default. It is idempotent. IncludeStackTraces is left nil here:
// its default depends on Environment, which options may still change, so
// StackTracesEnabled resolves it at read time.
func (c Config) WithDefaults() Config {
	if c.Structured == nil {
		c.Structured = boolPtr(true)
	}
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = chain.SHA256
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = defaultRetentionDays
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = defaultPurgeInterval
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}
	if c.Store.MaxSize == 0 {
		c.Store.MaxSize = defaultMemoryMax
	}
	if c.Store.BufferSize == 0 {
		c.Store.BufferSize = c.BufferSize
	}
	if c.Store.FlushInterval == 0 {
		c.Store.FlushInterval = c.FlushInterval
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: SinkConsole}}
	}
	return c
}

// StructuredEnabled reports the resolved structured-logging toggle.
func (c Config) StructuredEnabled() bool {
	return c.Structured == nil || *c.Structured
}

// StackTracesEnabled reports the resolved stack trace toggle.
func (c Config) StackTracesEnabled() bool {
	if c.IncludeStackTraces == nil {
		return c.Environment != "production"
	}
	return *c.IncludeStackTraces
}

func boolPtr(b bool) *bool { return &b }

// Option mutates a Config during construction.
type Option func(*Config)

// WithService sets the service identity snapshot stamped onto entries.
func WithService(name, version, environment string) Option {
	return func(c *Config) {
		c.ServiceName = name
		c.ServiceVersion = version
		c.Environment = environment
	}
}

// WithChaining toggles hash chaining.
func WithChaining(enabled bool) Option {
	return func(c *Config) { c.HashChaining = enabled }
}

// WithAlgorithm selects the chain digest algorithm.
func WithAlgorithm(a chain.Algorithm) Option {
	return func(c *Config) { c.HashAlgorithm = a }
}

// WithRetention sets the retention window in days.
func WithRetention(days int) Option {
	return func(c *Config) { c.RetentionDays = days }
}

// WithSigning enables HMAC signing of entries with the given key.
func WithSigning(key string) Option {
	return func(c *Config) {
		c.SignLogs = true
		c.SigningKey = key
	}
}

// WithSinks replaces the sink list.
func WithSinks(sinks ...SinkConfig) Option {
	return func(c *Config) { c.Sinks = sinks }
}

// WithStore selects the persistence backend.
func WithStore(store StoreConfig) Option {
	return func(c *Config) { c.Store = store }
}

// WithStackTraces toggles stack capture on Failure.
func WithStackTraces(enabled bool) Option {
	return func(c *Config) { c.IncludeStackTraces = boolPtr(enabled) }
}

// WithStructured toggles structured console output.
func WithStructured(enabled bool) Option {
	return func(c *Config) { c.Structured = boolPtr(enabled) }
}
