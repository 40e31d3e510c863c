package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/weave"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Auth        AuthConfig        `yaml:"auth"`
	Provider    ProviderConfig    `yaml:"provider"`
	Limiter     LimiterConfig     `yaml:"limiter"`
	Connections ConnectionsConfig `yaml:"connections"`
	Tags        TagsConfig        `yaml:"tags"`
	Concepts    ConceptsConfig    `yaml:"concepts"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Limiter.Validate(); err != nil {
		return err
	}
	if err := c.Connections.Validate(); err != nil {
		return err
	}
	return c.Concepts.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory and the folders
// excluded from connection discovery. Exclusion is a prefix match on the
// relative path ("Folder/") or an exact path match ("Folder").
type VaultConfig struct {
	Path            string   `yaml:"path"`
	ExcludedFolders []string `yaml:"excluded_folders"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// ProviderConfig selects the model provider and how to reach it. APIKey may
// stay empty for local providers; the pipeline itself enforces the credential
// requirement for cloud providers before any network call.
type ProviderConfig struct {
	Kind     string `yaml:"kind"`
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// Validate validates the provider configuration.
func (c *ProviderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(
			llm.KindOpenAI, llm.KindAnthropic, llm.KindHosted, llm.KindOllama, llm.KindLocal,
		)),
		validation.Field(&c.Model, validation.Required),
	)
}

// Profile converts the configuration into an llm.Profile.
func (c *ProviderConfig) Profile() llm.Profile {
	return llm.Profile{
		Kind:     c.Kind,
		Model:    c.Model,
		Endpoint: c.Endpoint,
		APIKey:   c.APIKey,
	}
}

// LimiterConfig bounds the process-wide model-call throttle.
type LimiterConfig struct {
	MinIntervalMS int `yaml:"min_interval_ms"`
	PerMinuteCap  int `yaml:"per_minute_cap"`
}

// Validate validates the limiter configuration.
func (c *LimiterConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinIntervalMS, validation.Required, validation.Min(1)),
		validation.Field(&c.PerMinuteCap, validation.Required, validation.Min(1)),
	)
}

// MinInterval returns the minimum spacing between permitted calls.
func (c *LimiterConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// ConnectionsConfig controls the connection-discovery pipeline output.
type ConnectionsConfig struct {
	Strength            string `yaml:"strength"`
	Format              string `yaml:"format"`
	ShowHeader          bool   `yaml:"show_header"`
	HeaderLevel         int    `yaml:"header_level"`
	HeaderText          string `yaml:"header_text"`
	SpecialInstructions string `yaml:"special_instructions"`
}

// Validate validates the connections configuration.
func (c *ConnectionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Strength, validation.Required, validation.In(
			weave.StrengthStrict, weave.StrengthBalanced, weave.StrengthRelaxed,
		)),
		validation.Field(&c.Format, validation.Required, validation.In(
			weave.FormatComma, weave.FormatBullet, weave.FormatNumbered, weave.FormatLine,
		)),
		validation.Field(&c.HeaderLevel, validation.Min(1), validation.Max(6)),
	)
}

// TagsConfig controls the tag-weaving vocabulary. Custom tags are always part
// of the vocabulary; vault-observed tags are included unless CustomOnly is set.
type TagsConfig struct {
	Custom     []string `yaml:"custom"`
	CustomOnly bool     `yaml:"custom_only"`
}

// ConceptsConfig controls the concepts index acceleration layer.
type ConceptsConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// Validate validates the concepts configuration.
func (c *ConceptsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTLHours, validation.Required, validation.Min(1)),
	)
}

// TTL returns the concepts staleness threshold.
func (c *ConceptsConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./mindweaver.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Provider: ProviderConfig{
			Kind:   llm.KindOpenAI,
			Model:  "gpt-4o-mini",
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Limiter: LimiterConfig{
			MinIntervalMS: 500,
			PerMinuteCap:  150,
		},
		Connections: ConnectionsConfig{
			Strength:    weave.StrengthBalanced,
			Format:      weave.FormatComma,
			ShowHeader:  true,
			HeaderLevel: 3,
			HeaderText:  "Related notes",
		},
		Concepts: ConceptsConfig{
			TTLHours: 24,
		},
	}
}
