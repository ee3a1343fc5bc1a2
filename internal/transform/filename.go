// Package transform provides the post-processing transformers applied to a
// highlighted document: the file-name label and the notation-driven line
// highlight, word highlight and diff markers.
package transform

import (
	"fmt"
	"strings"

	"github.com/starford/shikibuild/internal/highlight"
)

// File-name label styles.
const (
	StyleV1 = "v1"
	StyleV2 = "v2"
)

const (
	labelBase   = "absolute py-1 text-foreground text-xs font-medium leading-4"
	labelDot    = "pl-4 pr-2 before:inline-block before:size-1 before:bg-green-500 before:rounded-full before:absolute before:top-[45%] before:left-2"
	labelNoDot  = "px-2"
	labelStyle1 = "left-0 -top-6 rounded-t-md border border-b-0 bg-muted/50"
	labelStyle2 = "left-2 top-(--file-name-offset) border rounded-md bg-background"
)

// FileName labels a block with the file named by its file=<name> meta.
type FileName struct {
	style   string
	hideDot bool
}

// NewFileName returns a FileName transformer for style v1 or v2.
func NewFileName(style string, hideDot bool) (*FileName, error) {
	switch style {
	case "":
		style = StyleV2
	case StyleV1, StyleV2:
	default:
		return nil, fmt.Errorf("transform: file name: unknown style %q", style)
	}
	return &FileName{style: style, hideDot: hideDot}, nil
}

func (*FileName) Name() string { return "file-name" }

func (f *FileName) Transform(doc *highlight.Document) error {
	offset := "-0.75rem"
	if f.style == StyleV1 {
		offset = "0.75rem"
	}
	doc.PreStyle = append(doc.PreStyle, "--file-name-offset:"+offset)

	file := MetaValue(doc.Meta, "file")
	if file == "" {
		return nil
	}

	doc.AddPreClass("mt-8")
	if f.style == StyleV1 {
		doc.AddPreClass("rounded-tl-none")
	}

	dot, placement := labelDot, labelStyle2
	if f.hideDot {
		dot = labelNoDot
	}
	if f.style == StyleV1 {
		placement = labelStyle1
	}
	doc.Children = append(doc.Children, highlight.Element{
		Tag:     "span",
		Classes: []string{labelBase, dot, placement},
		Text:    file,
	})
	return nil
}

// MetaValue returns the value of key in a space-separated key=value meta
// string with quotes stripped.
func MetaValue(meta, key string) string {
	for _, item := range strings.Fields(meta) {
		k, v, ok := strings.Cut(item, "=")
		if !ok || k != key {
			continue
		}
		if v = strings.Trim(v, "\"'`"); v != "" {
			return v
		}
	}
	return ""
}
