package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/shikibuild/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Serve.Auth.Mode = "token"
	cfg.Serve.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.CodeHighlight.Shiki.Themes.Light != "github" || cfg.Build.Concurrency != 4 || !cfg.History.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestCodeHighlight_EmptyEngineDefaultsBasic(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CodeHighlight.Engine = ""
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.CodeHighlight.Engine != EngineBasic {
		t.Errorf("engine = %q", cfg.CodeHighlight.Engine)
	}
}

func TestConfig_Invalid(t *testing.T) {
	cases := map[string]func(*Config){
		"engine":         func(c *Config) { c.CodeHighlight.Engine = "prism" },
		"theme":          func(c *Config) { c.CodeHighlight.Shiki.Themes.Dark = "night-owl" },
		"style":          func(c *Config) { c.CodeHighlight.Shiki.FileNameOptions.Style = "v3" },
		"algorithm":      func(c *Config) { c.CodeHighlight.Shiki.DiffOptions.MatchAlgorithm = "v4" },
		"concurrency":    func(c *Config) { c.Build.Concurrency = 0 },
		"content dir":    func(c *Config) { c.Build.ContentDir = "" },
		"port":           func(c *Config) { c.Serve.Port = 70000 },
		"pattern glob":   func(c *Config) { c.Build.Pattern = "[" },
		"prune interval": func(c *Config) { c.Serve.PruneInterval = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Build.CacheMaxAge = 90 * time.Minute
	cfg.App.LogLevel = slog.LevelDebug

	out, err := pkgconfig.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "shikibuild.yaml")
	if err := os.WriteFile(p, out, 0o644); err != nil {
		t.Fatal(err)
	}

	loaded := &Config{}
	if err := pkgconfig.Load(p, loaded); err != nil {
		t.Fatalf("Load: %v\n%s", err, out)
	}
	if loaded.Build != cfg.Build || loaded.CodeHighlight != cfg.CodeHighlight || loaded.App != cfg.App {
		t.Errorf("round trip mismatch:\n%+v\n%+v", loaded, cfg)
	}
}

func TestHistoryConfig_DBPath(t *testing.T) {
	h := HistoryConfig{}
	if got := h.DBPath(".cache"); got != filepath.Join(".cache", "history.db") {
		t.Errorf("DBPath = %q", got)
	}
	h.Path = "/tmp/h.db"
	if got := h.DBPath(".cache"); got != "/tmp/h.db" {
		t.Errorf("DBPath = %q", got)
	}
}
