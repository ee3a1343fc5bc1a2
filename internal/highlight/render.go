package highlight

import (
	"html"
	"strings"
)

// RenderOptions controls markup generation.
type RenderOptions struct {
	Themes       Themes
	Light        ThemeColors
	Dark         ThemeColors
	DefaultColor bool
	Wrap         bool
}

// Render serialises doc as dual-theme markup compatible with Shiki's
// CSS-variable output.
func Render(doc *Document, opts RenderOptions) string {
	var b strings.Builder

	classes := append([]string{"shiki", "shiki-themes", opts.Themes.Light, opts.Themes.Dark}, doc.PreClasses...)
	b.WriteString(`<pre class="`)
	b.WriteString(html.EscapeString(strings.Join(classes, " ")))
	b.WriteString(`" style="`)
	b.WriteString(html.EscapeString(strings.Join(preStyle(doc, opts), ";")))
	b.WriteString(`" tabindex="0"`)
	if doc.Lang != "" {
		b.WriteString(` data-language="` + html.EscapeString(doc.Lang) + `"`)
	}
	b.WriteString("><code>")

	for i, line := range doc.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(`<span class="`)
		b.WriteString(html.EscapeString(strings.Join(append([]string{"line"}, line.Classes...), " ")))
		b.WriteString(`">`)
		for _, t := range line.Tokens {
			writeToken(&b, t, opts)
		}
		b.WriteString("</span>")
	}
	b.WriteString("</code>")

	for _, el := range doc.Children {
		tag := el.Tag
		if tag == "" {
			tag = "span"
		}
		b.WriteString("<" + tag)
		if len(el.Classes) > 0 {
			b.WriteString(` class="` + html.EscapeString(strings.Join(el.Classes, " ")) + `"`)
		}
		b.WriteString(">" + html.EscapeString(el.Text) + "</" + tag + ">")
	}
	b.WriteString("</pre>")
	return b.String()
}

func preStyle(doc *Document, opts RenderOptions) []string {
	var decl []string
	if opts.DefaultColor {
		decl = append(decl,
			"background-color:"+opts.Light.Bg,
			"--shiki-dark-bg:"+opts.Dark.Bg,
			"color:"+opts.Light.Fg,
			"--shiki-dark:"+opts.Dark.Fg,
		)
	} else {
		decl = append(decl,
			"--shiki-light:"+opts.Light.Fg,
			"--shiki-light-bg:"+opts.Light.Bg,
			"--shiki-dark:"+opts.Dark.Fg,
			"--shiki-dark-bg:"+opts.Dark.Bg,
		)
	}
	if opts.Wrap {
		decl = append(decl, "white-space:pre-wrap", "overflow-wrap:anywhere")
	}
	return append(decl, doc.PreStyle...)
}

func writeToken(b *strings.Builder, t Token, opts RenderOptions) {
	light, dark := t.Light, t.Dark
	if light.Color == "" {
		light.Color = opts.Light.Fg
	}
	if dark.Color == "" {
		dark.Color = opts.Dark.Fg
	}

	lightPrefix := "--shiki-light"
	if opts.DefaultColor {
		lightPrefix = ""
	}
	var decl []string
	decl = append(decl, styleDecl(lightPrefix, light)...)
	decl = append(decl, styleDecl("--shiki-dark", dark)...)

	b.WriteString("<span")
	if len(t.Classes) > 0 {
		b.WriteString(` class="` + html.EscapeString(strings.Join(t.Classes, " ")) + `"`)
	}
	if len(decl) > 0 {
		b.WriteString(` style="` + html.EscapeString(strings.Join(decl, ";")) + `"`)
	}
	b.WriteString(">" + html.EscapeString(t.Text) + "</span>")
}

// styleDecl renders s as CSS declarations. An empty prefix yields plain
// properties, otherwise CSS variables such as --shiki-dark-font-style.
func styleDecl(prefix string, s Style) []string {
	prop := func(name string) string {
		if prefix == "" {
			return name
		}
		if name == "color" {
			return prefix
		}
		return prefix + "-" + name
	}
	var decl []string
	if s.Color != "" {
		decl = append(decl, prop("color")+":"+s.Color)
	}
	if s.Italic {
		decl = append(decl, prop("font-style")+":italic")
	}
	if s.Bold {
		decl = append(decl, prop("font-weight")+":bold")
	}
	if s.Underline {
		decl = append(decl, prop("text-decoration")+":underline")
	}
	return decl
}
