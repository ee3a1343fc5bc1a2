package scanner

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/shikibuild/internal/models"
)

// Parse extracts the backtick-fenced code blocks of a Markdown document in
// document order. Tilde fences and indented code blocks are ignored.
func Parse(file string, src []byte) []models.CodeBlock {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	var out []models.CodeBlock
	cursor := 0
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		fc, ok := n.(*gmast.FencedCodeBlock)
		if !ok {
			return gmast.WalkContinue, nil
		}

		start, fence := openingFence(fc, src, cursor)
		if start < 0 {
			return gmast.WalkSkipChildren, nil
		}
		cursor = blockEnd(fc, start)
		if fence != '`' {
			return gmast.WalkSkipChildren, nil
		}

		var info string
		if fc.Info != nil {
			info = string(fc.Info.Segment.Value(src))
		}
		lang, meta := splitInfo(info)

		out = append(out, models.CodeBlock{
			File: file,
			Line: lineOf(src, start),
			Lang: lang,
			Meta: meta,
			Code: trimBlankLines(blockText(fc, src)),
		})
		return gmast.WalkSkipChildren, nil
	})
	return out
}

// openingFence locates the start offset of the opening fence line and the
// fence character used. It returns -1 when the fence cannot be located.
func openingFence(fc *gmast.FencedCodeBlock, src []byte, cursor int) (int, byte) {
	if fc.Info != nil {
		seg := fc.Info.Segment
		i := seg.Start - 1
		for i >= 0 && (src[i] == ' ' || src[i] == '\t') {
			i--
		}
		if i < 0 {
			return -1, 0
		}
		return lineStart(src, seg.Start), src[i]
	}

	if fc.Lines().Len() > 0 {
		contentStart := lineStart(src, fc.Lines().At(0).Start)
		if contentStart == 0 {
			return -1, 0
		}
		start := lineStart(src, contentStart-1)
		line := bytes.TrimRight(src[start:contentStart-1], " \t\r")
		if len(line) == 0 {
			return -1, 0
		}
		return start, line[len(line)-1]
	}

	// Empty block without an info string: search forward for the fence.
	for off := cursor; off < len(src); {
		end := bytes.IndexByte(src[off:], '\n')
		if end < 0 {
			end = len(src) - off
		}
		line := bytes.TrimLeft(src[off:off+end], " \t>")
		if bytes.HasPrefix(line, []byte("```")) || bytes.HasPrefix(line, []byte("~~~")) {
			return off, line[0]
		}
		off += end + 1
	}
	return -1, 0
}

func blockEnd(fc *gmast.FencedCodeBlock, start int) int {
	if n := fc.Lines().Len(); n > 0 {
		return fc.Lines().At(n - 1).Stop
	}
	return start + 3
}

func lineStart(src []byte, off int) int {
	return bytes.LastIndexByte(src[:off], '\n') + 1
}

// splitInfo splits a fence info string into the language tag and the
// metadata tail.
func splitInfo(info string) (string, string) {
	info = strings.TrimSpace(info)
	if info == "" {
		return models.PlaintextLang, ""
	}
	i := strings.IndexAny(info, " \t")
	if i < 0 {
		return info, ""
	}
	return info[:i], strings.TrimSpace(info[i+1:])
}

func blockText(fc *gmast.FencedCodeBlock, src []byte) string {
	var b strings.Builder
	lines := fc.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if seg.Padding > 0 {
			b.WriteString(strings.Repeat(" ", seg.Padding))
		}
		b.Write(seg.Value(src))
	}
	return b.String()
}

// trimBlankLines drops leading and trailing blank lines and trailing
// whitespace, keeping the indentation of the first code line.
func trimBlankLines(code string) string {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	first, last := 0, len(lines)-1
	for first <= last && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	for last >= first && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if first > last {
		return ""
	}
	return strings.TrimRight(strings.Join(lines[first:last+1], "\n"), " \t")
}
