package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/processor"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Highlight engines. The build always renders with the shiki pipeline;
// the engine tells page templates which markup to use.
const (
	EngineBasic = "basic"
	EngineShiki = "shiki"
)

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	Build         build.Config        `yaml:"build"`
	CodeHighlight CodeHighlightConfig `yaml:"code_highlight"`
	Serve         ServeConfig         `yaml:"serve"`
	History       HistoryConfig       `yaml:"history"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := c.CodeHighlight.Validate(); err != nil {
		return fmt.Errorf("code_highlight: %w", err)
	}
	if err := c.Serve.Validate(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// CodeHighlightConfig holds the page-level highlighting options and the
// shiki pipeline options.
type CodeHighlightConfig struct {
	Engine          string           `yaml:"engine"`
	ShowCopyButton  bool             `yaml:"show_copy_button"`
	ShowLineNumbers bool             `yaml:"show_line_numbers"`
	Basic           BasicConfig      `yaml:"basic"`
	Shiki           processor.Config `yaml:"shiki"`
}

// Validate validates the code highlight configuration.
func (c *CodeHighlightConfig) Validate() error {
	if c.Engine == "" {
		c.Engine = EngineBasic
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.In(EngineBasic, EngineShiki)),
	); err != nil {
		return err
	}
	if err := c.Shiki.Validate(); err != nil {
		return fmt.Errorf("shiki: %w", err)
	}
	return nil
}

// BasicConfig holds the options of the basic (chroma-in-templates) engine.
type BasicConfig struct {
	ShowFileName bool   `yaml:"show_file_name"`
	ShowDiff     bool   `yaml:"show_diff"`
	Theme        string `yaml:"theme"`
}

// ServeConfig holds the HTTP server configuration.
type ServeConfig struct {
	Port  int        `yaml:"port"`
	Watch bool       `yaml:"watch"`
	Auth  AuthConfig `yaml:"auth"`

	// PruneInterval schedules deletion of expired cache entries; zero
	// disables it.
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// Address returns HTTP server address.
func (c *ServeConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.PruneInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// HistoryConfig holds the build history database configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DBPath returns the history database path, defaulting to a file inside the
// cache dir.
func (c *HistoryConfig) DBPath(cacheDir string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(cacheDir, "history.db")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Build: build.DefaultConfig(),
		CodeHighlight: CodeHighlightConfig{
			Engine:         EngineBasic,
			ShowCopyButton: true,
			Basic: BasicConfig{
				ShowFileName: true,
				ShowDiff:     true,
				Theme:        "github",
			},
			Shiki: processor.DefaultConfig(),
		},
		Serve: ServeConfig{
			Port: 8080,
			Auth: AuthConfig{
				Mode: AuthModeDisabled,
			},
			PruneInterval: time.Hour,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}
