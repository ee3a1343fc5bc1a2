package highlight

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/starford/shikibuild/internal/lang"
	"github.com/starford/shikibuild/internal/models"
)

// Chroma is a Highlighter backed by the chroma lexer and style registries.
type Chroma struct {
	lexers map[string]chroma.Lexer
	langs  []lang.Info
}

// NewChroma indexes every registered chroma lexer by canonical id.
func NewChroma() *Chroma {
	c := &Chroma{lexers: make(map[string]chroma.Lexer)}
	for _, l := range lexers.GlobalLexerRegistry.Lexers {
		cfg := l.Config()
		id := CanonicalID(cfg.Name)
		if id == "" {
			continue
		}
		if _, dup := c.lexers[id]; dup {
			continue
		}
		c.lexers[id] = chroma.Coalesce(l)

		var aliases []string
		for _, a := range cfg.Aliases {
			if a = strings.ToLower(a); a != id {
				aliases = append(aliases, a)
			}
		}
		c.langs = append(c.langs, lang.Info{ID: id, Name: cfg.Name, Aliases: aliases})
	}
	if _, ok := c.lexers[models.PlaintextLang]; !ok {
		c.lexers[models.PlaintextLang] = chroma.Coalesce(lexers.Fallback)
		c.langs = append(c.langs, lang.Info{ID: models.PlaintextLang, Name: "Plain Text", Aliases: []string{"text", "plain"}})
	}
	sort.Slice(c.langs, func(i, j int) bool { return c.langs[i].ID < c.langs[j].ID })
	return c
}

// CanonicalID derives a language id from a chroma lexer name.
func CanonicalID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// Languages implements Highlighter.
func (c *Chroma) Languages() []lang.Info {
	return append([]lang.Info(nil), c.langs...)
}

// ThemeNames lists the bundled themes in lexical order.
func ThemeNames() []string {
	return styles.Names()
}

// HasTheme reports whether name is a bundled theme.
func HasTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

// Highlight implements Highlighter.
func (c *Chroma) Highlight(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	light, ok := styles.Registry[req.Themes.Light]
	if !ok {
		return "", &RenderError{Reason: ReasonTheme, Err: fmt.Errorf("theme %q not found", req.Themes.Light)}
	}
	dark, ok := styles.Registry[req.Themes.Dark]
	if !ok {
		return "", &RenderError{Reason: ReasonTheme, Err: fmt.Errorf("theme %q not found", req.Themes.Dark)}
	}
	lexer, ok := c.lexers[req.Lang]
	if !ok {
		return "", &RenderError{Reason: ReasonLanguage, Err: fmt.Errorf("language %q not loaded", req.Lang)}
	}

	doc, err := tokenize(lexer, req, light, dark)
	if err != nil {
		return "", &RenderError{Reason: ReasonRender, Err: err}
	}
	for _, t := range req.Transformers {
		if err := t.Transform(doc); err != nil {
			return "", &RenderError{Reason: ReasonTransform, Err: fmt.Errorf("%s: %w", t.Name(), err)}
		}
	}
	return Render(doc, RenderOptions{
		Themes:       req.Themes,
		Light:        themeColors(light),
		Dark:         themeColors(dark),
		DefaultColor: req.DefaultColor,
		Wrap:         req.Wrap,
	}), nil
}

func tokenize(lexer chroma.Lexer, req Request, light, dark *chroma.Style) (*Document, error) {
	code := strings.ReplaceAll(req.Code, "\r\n", "\n")
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil, err
	}

	want := strings.Count(code, "\n") + 1
	doc := &Document{Lang: req.Lang, Meta: req.Meta}
	for _, toks := range chroma.SplitTokensIntoLines(it.Tokens()) {
		if len(doc.Lines) == want {
			break
		}
		var line Line
		for _, tok := range toks {
			text := strings.TrimSuffix(tok.Value, "\n")
			if text == "" {
				continue
			}
			line.Tokens = append(line.Tokens, Token{
				Text:  text,
				Light: tokenStyle(light, tok.Type),
				Dark:  tokenStyle(dark, tok.Type),
			})
		}
		doc.Lines = append(doc.Lines, line)
	}
	for len(doc.Lines) < want {
		doc.Lines = append(doc.Lines, Line{})
	}
	return doc, nil
}

func tokenStyle(s *chroma.Style, tt chroma.TokenType) Style {
	e := s.Get(tt)
	st := Style{
		Bold:      e.Bold == chroma.Yes,
		Italic:    e.Italic == chroma.Yes,
		Underline: e.Underline == chroma.Yes,
	}
	if e.Colour.IsSet() {
		st.Color = e.Colour.String()
	}
	return st
}

// ThemeColors is the base foreground/background of a theme.
type ThemeColors struct {
	Fg string
	Bg string
}

func themeColors(s *chroma.Style) ThemeColors {
	e := s.Get(chroma.Background)
	var tc ThemeColors
	if e.Colour.IsSet() {
		tc.Fg = e.Colour.String()
	}
	if e.Background.IsSet() {
		tc.Bg = e.Background.String()
	}
	return tc
}
