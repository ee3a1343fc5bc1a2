package mcpserver

const fence = "```"

// NotationGuide describes the fence syntax and inline notations the
// highlighter understands.
const NotationGuide = `# Code Block Notation

Only backtick fences are highlighted. The first word after the opening fence
is the language tag; the rest of the line is the meta string.

` + fence + `markdown
` + fence + `go file=main.go
package main
` + fence + `
` + fence + `

## Language tags

- Tags are case-insensitive. Shorthands such as js, ts, py, sh and yml resolve
  to their full language.
- An empty or unknown tag renders as plaintext; the build log lists similar
  supported tags.

## Meta

- ` + "`file=<name>`" + ` (quotes optional) adds a file name label above the block.

## Inline notations

Notations are written as a trailing comment (//, #, --, ;, /* */, <!-- -->)
and are removed from the output.

| Notation | Effect |
|----------|--------|
| ` + "`[!code highlight]`" + ` or ` + "`[!code hl]`" + ` | highlight the line |
| ` + "`[!code word:TEXT]`" + ` | highlight every TEXT in the line (word highlighting must be enabled) |
| ` + "`[!code ++]`" + ` | mark the line as added |
| ` + "`[!code --]`" + ` | mark the line as removed |

Append ` + "`:N`" + ` to cover N lines starting at the notation line, e.g.
` + "`// [!code hl:3]`" + `. A notation alone on its line applies to the following
lines and the comment line itself is dropped.

## Example

` + fence + `js file="app.js"
const a = 1 // [!code --]
const a = 2 // [!code ++]
console.log(a) // [!code hl]
` + fence + `
`
