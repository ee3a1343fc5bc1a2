package lang

import (
	"reflect"
	"strings"
	"testing"
)

func testResolver() *Resolver {
	return NewResolver([]Info{
		{ID: "javascript", Name: "JavaScript", Aliases: []string{"mjs"}},
		{ID: "java", Name: "Java"},
		{ID: "typescript", Name: "TypeScript"},
		{ID: "python", Name: "Python", Aliases: []string{"py3"}},
		{ID: "bash", Name: "Bash", Aliases: []string{"zsh"}},
		{ID: "yaml", Name: "YAML"},
		{ID: "plaintext", Name: "plaintext"},
	}, DefaultOverrides)
}

func TestResolve(t *testing.T) {
	r := testResolver()
	cases := []struct {
		tag  string
		want string
		ok   bool
	}{
		{"js", "javascript", true},
		{"TS", "typescript", true},
		{"  Python ", "python", true},
		{"py", "python", true},
		{"py3", "python", true},
		{"shell", "bash", true},
		{"zsh", "bash", true},
		{"yml", "yaml", true},
		{"", "plaintext", true},
		{"text", "plaintext", true},
		{"unknownlang", "", false},
		// Override target absent from the bundled set.
		{"rb", "", false},
		{"md", "", false},
	}
	for _, tc := range cases {
		got, ok := r.Resolve(tc.tag)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tc.tag, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsSupported_EmptyIsPlaintext(t *testing.T) {
	r := testResolver()
	if !r.IsSupported("") {
		t.Fatal("empty tag should be supported")
	}
	info, ok := r.Info("")
	if !ok || info.ID != "plaintext" {
		t.Errorf("Info(\"\") = %+v, %v", info, ok)
	}
}

func TestOverridesWinOverBase(t *testing.T) {
	r := NewResolver([]Info{
		{ID: "bash"},
		{ID: "shellsession", Aliases: []string{"shell"}},
	}, map[string]string{"shell": "bash"})
	if id, _ := r.Resolve("shell"); id != "bash" {
		t.Errorf("Resolve(shell) = %q, want bash", id)
	}
}

func TestAliasConflictLowestIDWins(t *testing.T) {
	r := NewResolver([]Info{
		{ID: "zeta", Aliases: []string{"z"}},
		{ID: "alpha", Aliases: []string{"z"}},
	}, nil)
	if id, _ := r.Resolve("z"); id != "alpha" {
		t.Errorf("Resolve(z) = %q, want alpha", id)
	}
}

func TestSuggest_Ranking(t *testing.T) {
	r := testResolver()
	got := r.Suggest("jav", 3)
	want := []string{"java", "javascript"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest(jav) = %v, want %v", got, want)
	}
	if got := r.Suggest("pythn", 5); !reflect.DeepEqual(got, []string{"python"}) {
		t.Errorf("Suggest(pythn) = %v", got)
	}
}

func TestSuggest_LimitAndNoMatch(t *testing.T) {
	r := testResolver()
	if got := r.Suggest("a", 2); len(got) != 2 {
		t.Errorf("Suggest(a, 2) returned %d results", len(got))
	}
	if got := r.Suggest("qqqqqqqq", 5); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
	if got := r.Suggest("", 5); got != nil {
		t.Errorf("empty query should not suggest, got %v", got)
	}
}

func TestRank_TiesLexical(t *testing.T) {
	got := Rank("aa", []string{"aa2", "aa1"}, 5)
	if !reflect.DeepEqual(got, []string{"aa1", "aa2"}) {
		t.Errorf("Rank = %v", got)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"go", "go", 0},
		{"jav", "java", 1},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSuggestionMessage(t *testing.T) {
	r := testResolver()
	msg := r.SuggestionMessage("pythn")
	if !strings.Contains(msg, "Did you mean") || !strings.Contains(msg, "python (aliases: py3)") {
		t.Errorf("unexpected message: %q", msg)
	}
	msg = r.SuggestionMessage("qqqqqqqq")
	if !strings.Contains(msg, `Use "plaintext" as fallback`) {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestDocumentation(t *testing.T) {
	doc := testResolver().Documentation()
	if !strings.Contains(doc, "| Python | `python` | py3 |") {
		t.Errorf("doc missing python row:\n%s", doc)
	}
}
