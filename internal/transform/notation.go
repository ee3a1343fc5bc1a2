package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/shikibuild/internal/highlight"
)

// Match algorithms for notation ranges.
//
//	v1: comment-only lines are kept; the range starts on the notation line.
//	v2: comment-only lines are dropped and target the following lines; a
//	    trailing notation with :N covers its own line plus N more.
//	v3: like v2, but :N on a trailing notation counts its own line.
const (
	MatchV1 = "v1"
	MatchV2 = "v2"
	MatchV3 = "v3"
)

// commentPattern wraps a directive in the supported trailing-comment forms.
func commentPattern(directive string) *regexp.Regexp {
	return regexp.MustCompile(`\s*(?://|#|--|;|/\*|<!--)\s*\[!code ` + directive + `\]\s*(?:\*/|-->)?\s*$`)
}

var (
	highlightRe = commentPattern(`(?:highlight|hl)(?::(?P<n>\d+))?`)
	wordRe      = commentPattern(`word:(?P<word>(?:\\.|[^:\]])+)(?::(?P<n>\d+))?`)
	diffRe      = commentPattern(`(?P<kind>\+\+|--)(?::(?P<n>\d+))?`)
	escapeRe    = regexp.MustCompile(`\\(.)`)
)

// Notation applies one [!code ...] directive family.
type Notation struct {
	name      string
	algorithm string
	re        *regexp.Regexp
	preClass  string
	mark      func(line *highlight.Line, m []string) bool
}

func newNotation(name, algorithm string, re *regexp.Regexp, preClass string, mark func(*highlight.Line, []string) bool) (*Notation, error) {
	switch algorithm {
	case "":
		algorithm = MatchV3
	case MatchV1, MatchV2, MatchV3:
	default:
		return nil, fmt.Errorf("transform: %s: unknown match algorithm %q", name, algorithm)
	}
	return &Notation{name: name, algorithm: algorithm, re: re, preClass: preClass, mark: mark}, nil
}

// NewHighlight marks lines annotated with [!code highlight] or [!code hl].
func NewHighlight(algorithm string) (*Notation, error) {
	return newNotation("notation-highlight", algorithm, highlightRe, "has-highlighted",
		func(line *highlight.Line, _ []string) bool {
			line.AddClass("highlighted")
			return true
		})
}

// NewWordHighlight marks occurrences of TEXT in lines annotated with
// [!code word:TEXT].
func NewWordHighlight(algorithm string) (*Notation, error) {
	idx := wordRe.SubexpIndex("word")
	return newNotation("notation-word-highlight", algorithm, wordRe, "has-highlighted-words",
		func(line *highlight.Line, m []string) bool {
			word := escapeRe.ReplaceAllString(m[idx], "$1")
			if word == "" {
				return false
			}
			text := line.Text()
			found := false
			for off := 0; ; {
				i := strings.Index(text[off:], word)
				if i < 0 {
					break
				}
				start := off + i
				line.Mark(start, start+len(word), "highlighted-word")
				off = start + len(word)
				found = true
			}
			return found
		})
}

// NewDiff marks lines annotated with [!code ++] or [!code --].
func NewDiff(algorithm string) (*Notation, error) {
	idx := diffRe.SubexpIndex("kind")
	return newNotation("notation-diff", algorithm, diffRe, "has-diff",
		func(line *highlight.Line, m []string) bool {
			if m[idx] == "++" {
				line.AddClass("diff", "add")
			} else {
				line.AddClass("diff", "remove")
			}
			return true
		})
}

func (n *Notation) Name() string { return n.name }

type pendingRange struct {
	match []string
	left  int
}

func (n *Notation) Transform(doc *highlight.Document) error {
	countIdx := n.re.SubexpIndex("n")
	var (
		out   = make([]highlight.Line, 0, len(doc.Lines))
		queue []pendingRange
		hit   bool
	)

	flush := func(line *highlight.Line) {
		kept := queue[:0]
		for _, p := range queue {
			if n.mark(line, p.match) {
				hit = true
			}
			if p.left--; p.left > 0 {
				kept = append(kept, p)
			}
		}
		queue = kept
	}

	for _, line := range doc.Lines {
		text := line.Text()
		loc := n.re.FindStringSubmatchIndex(text)
		if loc == nil {
			flush(&line)
			out = append(out, line)
			continue
		}

		m := submatches(text, loc)
		count, explicit := 1, false
		if c := m[countIdx]; c != "" {
			// Digits only; an out-of-range count covers the rest of the block.
			v, err := strconv.Atoi(c)
			if err != nil || v > len(doc.Lines) {
				v = len(doc.Lines)
			}
			count, explicit = v, true
		}

		line.Truncate(loc[0])
		if strings.TrimSpace(line.Text()) == "" && n.algorithm != MatchV1 {
			if count > 0 {
				queue = append(queue, pendingRange{match: m, left: count})
			}
			continue
		}

		flush(&line)
		if count > 0 && n.mark(&line, m) {
			hit = true
		}
		following := count - 1
		if n.algorithm == MatchV2 && explicit {
			following = count
		}
		if following > 0 {
			queue = append(queue, pendingRange{match: m, left: following})
		}
		out = append(out, line)
	}

	doc.Lines = out
	if hit {
		doc.AddPreClass(n.preClass)
	}
	return nil
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}
