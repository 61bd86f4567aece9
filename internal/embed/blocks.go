package embed

import (
	"regexp"
	"strings"

	"github.com/erykwalder/quoth/internal/textpos"
)

// blockStartRe matches an opening fence whose info string is exactly
// FenceLang. Group 1 is the fence.
var blockStartRe = regexp.MustCompile("(?m)^ {0,3}(`{3,}|~{3,})" + FenceLang + "[ \t]*\r?$")

// Blocks returns the spans of the quoth blocks in doc, fences included, in
// document order. A block closes on a fence of the same character that is
// at least as long as the opening one; an unterminated block runs to the
// end of doc.
func Blocks(doc string) []textpos.Span {
	var spans []textpos.Span
	pos := 0
	for pos < len(doc) {
		loc := blockStartRe.FindStringSubmatchIndex(doc[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		fence := doc[pos+loc[2] : pos+loc[3]]
		end := closingFenceEnd(doc, pos+loc[1], fence)
		spans = append(spans, textpos.Span{Start: start, End: end})
		pos = end
	}
	return spans
}

// closingFenceEnd returns the offset just past the line closing fence,
// searching the lines after from. It returns len(doc) when none closes it.
func closingFenceEnd(doc string, from int, fence string) int {
	// skip the rest of the opening line
	nl := strings.IndexByte(doc[from:], '\n')
	if nl < 0 {
		return len(doc)
	}
	pos := from + nl + 1
	for pos < len(doc) {
		lineEnd := len(doc)
		next := len(doc)
		if i := strings.IndexByte(doc[pos:], '\n'); i >= 0 {
			lineEnd = pos + i
			next = lineEnd + 1
		}
		if closesFence(doc[pos:lineEnd], fence) {
			if lineEnd > pos && doc[lineEnd-1] == '\r' {
				lineEnd--
			}
			return lineEnd
		}
		pos = next
	}
	return len(doc)
}

// closesFence reports whether line is a closing fence for fence: up to
// three spaces of indent, then at least len(fence) of its character, then
// only whitespace.
func closesFence(line, fence string) bool {
	indent := len(line) - len(strings.TrimLeft(line, " "))
	if indent > 3 {
		return false
	}
	line = line[indent:]
	run := len(line) - len(strings.TrimLeft(line, fence[:1]))
	if run < len(fence) {
		return false
	}
	return strings.TrimRight(line[run:], " \t\r") == ""
}

// Body strips the fence lines from a block.
func Body(block string) string {
	lines := strings.Split(block, "\n")
	if len(lines) == 0 {
		return block
	}
	m := blockStartRe.FindStringSubmatch(lines[0])
	if m == nil {
		return block
	}
	lines = lines[1:]
	if n := len(lines); n > 0 && closesFence(lines[n-1], m[1]) {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}
