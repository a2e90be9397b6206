package parsing

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Line breaks in a normalized comment.
const lineBreak = "\n"

var (
	reEscaped        = regexp.MustCompile(`\\(\S)`)
	reDelimiter      = regexp.MustCompile(`[ \t]*::+[ \t]*`)
	reLineBreakSpace = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

/*
Normalize flattens a post's raw HTML comment into plain text:

  - entities are unescaped
  - <br> becomes a newline, and every other tag (quote links, spans, <wbr>) is
    dropped while its text is kept
  - a backslash followed by a non-space character becomes that character
  - runs of colons collapse to a single "::" delimiter, and spaces around
    delimiters and line breaks are removed
*/
func Normalize(comment string) string {
	var b strings.Builder

	z := html.NewTokenizer(strings.NewReader(comment))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF, or a tokenizer error on garbage input; keep what we have.
			return collapse(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Br {
				b.WriteString(lineBreak)
			}
		}
	}
}

func collapse(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = reEscaped.ReplaceAllString(text, "$1")
	text = reDelimiter.ReplaceAllString(text, delimiter)
	text = reLineBreakSpace.ReplaceAllString(text, lineBreak)
	return text
}
