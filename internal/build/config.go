package build

import (
	"errors"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/shikibuild/internal/scanner"
)

// Config holds the build pipeline options.
type Config struct {
	ContentDir  string        `yaml:"content_dir"`
	OutputDir   string        `yaml:"output_dir"`
	CacheDir    string        `yaml:"cache_dir"`
	Pattern     string        `yaml:"pattern"`
	Incremental bool          `yaml:"incremental"`
	Parallel    bool          `yaml:"parallel"`
	Concurrency int           `yaml:"concurrency"`
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
}

// DefaultConfig returns the default build options.
func DefaultConfig() Config {
	return Config{
		ContentDir:  "content",
		OutputDir:   ".shiki-output",
		CacheDir:    ".shiki-cache",
		Pattern:     scanner.DefaultPattern,
		Incremental: true,
		Parallel:    true,
		Concurrency: 4,
		CacheMaxAge: time.Hour,
	}
}

// Validate validates the build configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ContentDir, validation.Required),
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.Pattern, validation.By(validPattern)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.CacheMaxAge, validation.Min(time.Duration(0))),
	)
}

func validPattern(value any) error {
	p, _ := value.(string)
	if _, err := path.Match(strings.TrimPrefix(p, "**/"), ""); err != nil {
		return errors.New("malformed glob pattern")
	}
	return nil
}
