package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/identity"
	"github.com/starford/arbor/internal/persist"
	"github.com/starford/arbor/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Storage  StorageConfig     `yaml:"storage"`
	Index    IndexConfig       `yaml:"index"`
	Persist  PersistConfig     `yaml:"persist"`
	Identity IdentityConfig    `yaml:"identity"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Storage, &c.Index, &c.Persist, &c.Identity, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.CORSOrigins, validation.Each(validation.Required)),
	)
}

// StorageConfig selects the persistence medium for the forest.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is a directory for the fs driver and a database file for sqlite.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
	Key string `yaml:"key"`
}

// Location returns the driver-specific address passed to storage.Open.
func (c *StorageConfig) Location() string {
	if c.Driver == storage.DriverPostgres {
		return c.DSN
	}
	return c.Path
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Key == "" {
		c.Key = persist.DefaultKey
	}
	isPostgres := c.Driver == storage.DriverPostgres
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(storage.DriverFS, storage.DriverSQLite, storage.DriverPostgres)),
		validation.Field(&c.Path, validation.When(!isPostgres, validation.Required)),
		validation.Field(&c.DSN, validation.When(isPostgres, validation.Required)),
	)
}

// IndexConfig controls the optional SQLite search index.
type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// PersistConfig tunes the background saver.
type PersistConfig struct {
	// Debounce delays a write so bursts of edits (typing) coalesce into one.
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the persist configuration.
func (c *PersistConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(time.Minute)),
	)
}

// IdentityConfig selects how fresh node ids are issued.
type IdentityConfig struct {
	Strategy string `yaml:"strategy"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	if c.Strategy == "" {
		c.Strategy = identity.StrategyClock
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Strategy,
			validation.In(identity.StrategyClock, identity.StrategyUUID, identity.StrategyXID)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: storage.DriverFS,
			Path:   "./data",
			Key:    persist.DefaultKey,
		},
		Index: IndexConfig{
			Enabled: true,
			Path:    "./arbor-index.db",
		},
		Persist: PersistConfig{
			Debounce: 250 * time.Millisecond,
		},
		Identity: IdentityConfig{
			Strategy: identity.StrategyClock,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
