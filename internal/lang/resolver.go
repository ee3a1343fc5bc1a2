// Package lang resolves fenced-block language tags to canonical language ids.
//
// Resolution consults two layers: a base table generated from the
// highlighter's bundled languages (every id and alias maps to its id) and a
// fixed override table of common shorthand. Overrides win, but only when
// their target exists in the base table.
package lang

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/shikibuild/internal/models"
)

// Info is the canonical identity of a language.
type Info struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// DefaultOverrides is the hand-maintained shorthand table.
var DefaultOverrides = map[string]string{
	"js":    "javascript",
	"ts":    "typescript",
	"py":    "python",
	"rb":    "ruby",
	"sh":    "bash",
	"shell": "bash",
	"yml":   "yaml",
	"md":    "markdown",
	"":      models.PlaintextLang,
	"text":  models.PlaintextLang,
}

// Resolver maps raw language tags to canonical ids. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	langs     map[string]Info
	ids       []string
	base      map[string]string
	overrides map[string]string
}

// NewResolver builds a Resolver from the bundled language list and an
// override table. When two languages claim the same alias the one with the
// lexically smaller id keeps it.
func NewResolver(bundled []Info, overrides map[string]string) *Resolver {
	r := &Resolver{
		langs:     make(map[string]Info, len(bundled)),
		base:      make(map[string]string),
		overrides: make(map[string]string, len(overrides)),
	}

	sorted := append([]Info(nil), bundled...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, info := range sorted {
		id := normalize(info.ID)
		if id == "" {
			continue
		}
		if _, dup := r.langs[id]; dup {
			continue
		}
		info.ID = id
		if info.Name == "" {
			info.Name = id
		}
		r.langs[id] = info
		r.ids = append(r.ids, id)
		r.base[id] = id
	}
	for _, id := range r.ids {
		for _, alias := range r.langs[id].Aliases {
			a := normalize(alias)
			if _, taken := r.base[a]; !taken && a != "" {
				r.base[a] = id
			}
		}
	}

	for alias, target := range overrides {
		t := normalize(target)
		if _, ok := r.langs[t]; ok {
			r.overrides[normalize(alias)] = t
		}
	}
	return r
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Resolve returns the canonical id for tag.
func (r *Resolver) Resolve(tag string) (string, bool) {
	n := normalize(tag)
	if id, ok := r.overrides[n]; ok {
		return id, true
	}
	id, ok := r.base[n]
	return id, ok
}

// IsSupported reports whether tag resolves to a known language.
func (r *Resolver) IsSupported(tag string) bool {
	_, ok := r.Resolve(tag)
	return ok
}

// Info returns the language info tag resolves to.
func (r *Resolver) Info(tag string) (Info, bool) {
	id, ok := r.Resolve(tag)
	if !ok {
		return Info{}, false
	}
	return r.langs[id], true
}

// Languages returns every known language sorted by id.
func (r *Resolver) Languages() []Info {
	out := make([]Info, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.langs[id]
	}
	return out
}

// IDs returns every canonical id in lexical order.
func (r *Resolver) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Suggest returns up to n canonical ids resembling tag. An empty result
// means the caller should offer plaintext.
func (r *Resolver) Suggest(tag string, n int) []string {
	return Rank(tag, r.ids, n)
}

// SuggestionMessage renders a human-readable "did you mean" message.
func (r *Resolver) SuggestionMessage(tag string) string {
	similar := r.Suggest(tag, 3)
	if len(similar) == 0 {
		return fmt.Sprintf("Language %q is not supported. Use %q as fallback.", tag, models.PlaintextLang)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Language %q is not supported. Did you mean:\n", tag)
	for _, id := range similar {
		b.WriteString("  - " + id)
		if aliases := r.langs[id].Aliases; len(aliases) > 0 {
			b.WriteString(" (aliases: " + strings.Join(aliases, ", ") + ")")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nUsing %q as fallback.", models.PlaintextLang)
	return b.String()
}

// Documentation renders the supported language list as a Markdown table.
func (r *Resolver) Documentation() string {
	var b strings.Builder
	b.WriteString("# Supported Languages\n\n")
	fmt.Fprintf(&b, "%d languages are supported.\n\n", len(r.ids))
	b.WriteString("| Language | ID | Aliases |\n")
	b.WriteString("|----------|----|---------|\n")
	for _, info := range r.Languages() {
		aliases := "-"
		if len(info.Aliases) > 0 {
			aliases = strings.Join(info.Aliases, ", ")
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", info.Name, info.ID, aliases)
	}
	b.WriteString("\nUnsupported languages fall back to `plaintext`.\n")
	return b.String()
}
