// Package format turns raw assistant answers into a small HTML fragment.
//
// Only the subset the backend emits is understood: **bold** spans, bullet
// lines starting with "*" or "-", and plain line breaks. Input is not escaped.
package format

import (
	"regexp"
	"strings"
)

const lineBreak = "<br>"

var (
	newlineRe  = regexp.MustCompile(`\r\n|\r|\n`)
	emphasisRe = regexp.MustCompile(`\*\*(.*?)\*\*`)
	itemRe     = regexp.MustCompile(`^[\t ]*[*-][\t ]+(.*)$`)
	runRe      = regexp.MustCompile(`(?:<li>.*?</li>(?:[\t ]*<br>)*)+`)
	gapRe      = regexp.MustCompile(`[\t ]*<br>`)
	seamRe     = regexp.MustCompile(`</ul>\s*<ul>`)
)

// Format applies LineBreaks, Emphasis, ListItems and GroupLists in order.
func Format(raw string) string {
	text := LineBreaks(raw)
	text = Emphasis(text)
	text, items := ListItems(text)
	if items > 0 {
		text = GroupLists(text)
	}
	return text
}

// LineBreaks replaces every line break with a <br> tag.
func LineBreaks(s string) string {
	return newlineRe.ReplaceAllString(s, lineBreak)
}

// Emphasis wraps each **span** in a strong tag.
func Emphasis(s string) string {
	return emphasisRe.ReplaceAllString(s, "<strong>$1</strong>")
}

// ListItems rewrites bullet lines into <li> tags and reports how many it made.
// Lines are the <br>-separated segments, so this must run after LineBreaks.
func ListItems(s string) (string, int) {
	lines := strings.Split(s, lineBreak)
	n := 0
	for i, line := range lines {
		m := itemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lines[i] = "<li>" + m[1] + "</li>"
		n++
	}
	return strings.Join(lines, lineBreak), n
}

// GroupLists wraps each run of adjacent list items in a single <ul>.
// Blank or whitespace-only lines inside a run are dropped; runs split by
// prose stay separate.
func GroupLists(s string) string {
	s = runRe.ReplaceAllStringFunc(s, func(run string) string {
		return "<ul>" + gapRe.ReplaceAllString(run, "") + "</ul>"
	})
	return seamRe.ReplaceAllString(s, "")
}
