package highlight

import (
	"slices"
	"strings"
)

// Style is the resolved appearance of a token in one theme.
type Style struct {
	Color     string
	Bold      bool
	Italic    bool
	Underline bool
}

// Token is a run of text sharing one style per theme.
type Token struct {
	Text    string
	Light   Style
	Dark    Style
	Classes []string
}

// Line is one source line.
type Line struct {
	Tokens  []Token
	Classes []string
}

// Element is an extra node appended inside <pre> after the <code> element.
type Element struct {
	Tag     string
	Classes []string
	Text    string
}

// Document is the intermediate form transformers operate on.
type Document struct {
	Lang       string
	Meta       string
	Lines      []Line
	PreClasses []string
	// PreStyle holds extra CSS declarations for the <pre> element, e.g.
	// "--file-name-offset:-0.75rem".
	PreStyle []string
	Children []Element
}

// AddPreClass adds classes to <pre>, skipping duplicates.
func (d *Document) AddPreClass(classes ...string) {
	d.PreClasses = addClasses(d.PreClasses, classes)
}

// AddLineClass adds classes to line i.
func (d *Document) AddLineClass(i int, classes ...string) {
	if i < 0 || i >= len(d.Lines) {
		return
	}
	d.Lines[i].AddClass(classes...)
}

func addClasses(dst, classes []string) []string {
	for _, c := range classes {
		for _, f := range strings.Fields(c) {
			if !slices.Contains(dst, f) {
				dst = append(dst, f)
			}
		}
	}
	return dst
}

// AddClass adds classes to the line, skipping duplicates.
func (l *Line) AddClass(classes ...string) {
	l.Classes = addClasses(l.Classes, classes)
}

// Text returns the plain text of the line.
func (l *Line) Text() string {
	var b strings.Builder
	for _, t := range l.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Truncate cuts the line at byte offset off and drops trailing whitespace.
func (l *Line) Truncate(off int) {
	var kept []Token
	pos := 0
	for _, t := range l.Tokens {
		if pos >= off {
			break
		}
		if end := pos + len(t.Text); end > off {
			t.Text = t.Text[:off-pos]
		}
		pos += len(t.Text)
		kept = append(kept, t)
	}
	for len(kept) > 0 {
		last := &kept[len(kept)-1]
		last.Text = strings.TrimRight(last.Text, " \t")
		if last.Text != "" {
			break
		}
		kept = kept[:len(kept)-1]
	}
	l.Tokens = kept
}

// Mark splits tokens so that [start, end) is covered by whole tokens and
// adds class to each of them.
func (l *Line) Mark(start, end int, class string) {
	if start >= end {
		return
	}
	l.splitAt(start)
	l.splitAt(end)
	pos := 0
	for i := range l.Tokens {
		t := &l.Tokens[i]
		if pos >= start && pos+len(t.Text) <= end {
			t.Classes = addClasses(t.Classes, []string{class})
		}
		pos += len(t.Text)
	}
}

func (l *Line) splitAt(off int) {
	pos := 0
	for i, t := range l.Tokens {
		end := pos + len(t.Text)
		if off > pos && off < end {
			left, right := t, t
			left.Text = t.Text[:off-pos]
			right.Text = t.Text[off-pos:]
			right.Classes = slices.Clone(t.Classes)
			l.Tokens = slices.Insert(slices.Delete(l.Tokens, i, i+1), i, left, right)
			return
		}
		pos = end
	}
}
