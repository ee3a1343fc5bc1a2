package processor

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/shikibuild/internal/highlight"
	"github.com/starford/shikibuild/internal/lang"
	"github.com/starford/shikibuild/internal/transform"
)

// Default theme pair.
const (
	DefaultLightTheme = "github"
	DefaultDarkTheme  = "github-dark"
)

// Config holds the highlighting options.
type Config struct {
	Themes          highlight.Themes   `yaml:"themes"`
	DefaultColor    bool               `yaml:"default_color"`
	Wrap            bool               `yaml:"wrap"`
	Transformers    TransformersConfig `yaml:"transformers"`
	FileNameOptions FileNameConfig     `yaml:"file_name_options"`
	DiffOptions     DiffConfig         `yaml:"diff_options"`
}

// TransformersConfig toggles individual transformers.
type TransformersConfig struct {
	FileName      bool `yaml:"file_name"`
	Diff          bool `yaml:"diff"`
	Highlight     bool `yaml:"highlight"`
	WordHighlight bool `yaml:"word_highlight"`
}

// FileNameConfig configures the file-name label.
type FileNameConfig struct {
	Style   string `yaml:"style"`
	HideDot bool   `yaml:"hide_dot"`
}

// DiffConfig configures diff notation matching.
type DiffConfig struct {
	MatchAlgorithm string `yaml:"match_algorithm"`
}

// DefaultConfig returns the default highlighting options.
func DefaultConfig() Config {
	return Config{
		Themes: highlight.Themes{Light: DefaultLightTheme, Dark: DefaultDarkTheme},
		Transformers: TransformersConfig{
			FileName:  true,
			Diff:      true,
			Highlight: true,
		},
		FileNameOptions: FileNameConfig{Style: transform.StyleV2},
		DiffOptions:     DiffConfig{MatchAlgorithm: transform.MatchV3},
	}
}

// Validate checks theme names and option enums.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Themes,
		validation.Field(&c.Themes.Light, validation.Required, validation.By(themeExists)),
		validation.Field(&c.Themes.Dark, validation.Required, validation.By(themeExists)),
	); err != nil {
		return fmt.Errorf("themes: %w", err)
	}
	if err := validation.ValidateStruct(&c.FileNameOptions,
		validation.Field(&c.FileNameOptions.Style, validation.In(transform.StyleV1, transform.StyleV2)),
	); err != nil {
		return fmt.Errorf("file_name_options: %w", err)
	}
	if err := validation.ValidateStruct(&c.DiffOptions,
		validation.Field(&c.DiffOptions.MatchAlgorithm, validation.In(transform.MatchV1, transform.MatchV2, transform.MatchV3)),
	); err != nil {
		return fmt.Errorf("diff_options: %w", err)
	}
	return nil
}

func themeExists(value any) error {
	name, _ := value.(string)
	if name == "" || highlight.HasTheme(name) {
		return nil
	}
	msg := fmt.Sprintf("theme %q not found", name)
	if similar := lang.Rank(name, highlight.ThemeNames(), 3); len(similar) > 0 {
		msg += "; did you mean: " + strings.Join(similar, ", ")
	}
	return errors.New(msg)
}
