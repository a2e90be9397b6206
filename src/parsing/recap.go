package parsing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const delimiter = "::"

/*
A Recap is the structured part of a post written in the recap format:

	:: Title ::
	dev:: Name
	tools:: Engine
	web:: https://...
	Progress made this week.

A second delimited segment renames the game:

	:: Old Title :: New Title ::
	...
*/
type Recap struct {
	Title    string
	Rename   string            // empty if the post does not rename its game
	Fields   map[string]string // lowercased keys, see models.GameFieldKeys
	Progress string

	Time     int64  // post time, seconds
	Filename string // attached media, {tim}{ext}, or empty
}

var fieldKeys = []string{"dev", "tools", "web"}

/*
ParseRecap parses a raw HTML comment. It returns nil if the comment does not
follow the recap format, which is the case for most posts.
*/
func ParseRecap(comment string, postTime int64, filename string) *Recap {
	title, rename, body, ok := SplitRecap(Normalize(comment))
	if !ok {
		return nil
	}

	fields, rest := ExtractFields(body)
	return &Recap{
		Title:    title,
		Rename:   rename,
		Fields:   fields,
		Progress: ExtractProgress(rest),
		Time:     postTime,
		Filename: filename,
	}
}

// EffectiveTitle is the title the recap should be filed under. A rename only
// takes effect if no other game already has the new title.
func (r *Recap) EffectiveTitle(taken func(title string) bool) string {
	if r.Rename != "" && !taken(r.Rename) {
		return r.Rename
	}
	return r.Title
}

/*
SplitRecap matches `::TITLE[::RENAME]::BODY` against a normalized comment.

The match starts at the leftmost delimiter that can begin one. TITLE is the
shortest run of text up to the next delimiter, and may not contain a line
break. RENAME is tried before falling back to no rename, and is the shortest
run of text on the same line followed by a delimiter and a non-empty BODY.
BODY is everything that remains.
*/
func SplitRecap(s string) (title, rename, body string, ok bool) {
	for i := 0; i+len(delimiter) <= len(s); i++ {
		if !strings.HasPrefix(s[i:], delimiter) {
			continue
		}

		titleStart := i + len(delimiter)
		titleEnd := titleStart
		for titleEnd < len(s) && s[titleEnd] != '\n' && !strings.HasPrefix(s[titleEnd:], delimiter) {
			titleEnd++
		}
		if titleEnd == titleStart || !strings.HasPrefix(s[titleEnd:], delimiter) {
			continue
		}

		afterTitle := titleEnd + len(delimiter)
		for renameEnd := afterTitle; renameEnd < len(s); renameEnd++ {
			if renameEnd > afterTitle &&
				strings.HasPrefix(s[renameEnd:], delimiter) &&
				renameEnd+len(delimiter) < len(s) {
				return strings.TrimSpace(s[titleStart:titleEnd]),
					strings.TrimSpace(s[afterTitle:renameEnd]),
					s[renameEnd+len(delimiter):],
					true
			}
			if s[renameEnd] == '\n' {
				break
			}
		}

		if afterTitle < len(s) {
			return strings.TrimSpace(s[titleStart:titleEnd]), "", s[afterTitle:], true
		}
	}

	return "", "", "", false
}

/*
ExtractFields pulls `key::value` lines out of a recap body. A field must start
a line, its key is one of dev, tools or web in any case, and its value runs to
the end of the line. Later fields win over earlier ones with the same key.

rest is the text after the last field, or the whole body if there were none.
A field with an empty or invalid UTF-8 value is consumed but not returned.
*/
func ExtractFields(body string) (fields map[string]string, rest string) {
	fields = map[string]string{}
	rest = body

	pos := 0
	for pos < len(body) {
		breakStart := strings.Index(body[pos:], lineBreak)
		if breakStart < 0 {
			break
		}
		keyStart := pos + breakStart
		for keyStart < len(body) && body[keyStart] == '\n' {
			keyStart++
		}

		key, valueStart, found := matchFieldKey(body, keyStart)
		if !found {
			pos = keyStart
			continue
		}

		valueEnd := valueStart
		for valueEnd < len(body) && body[valueEnd] != '\n' {
			valueEnd++
		}
		value := strings.TrimSpace(body[valueStart:valueEnd])
		if value != "" && utf8.ValidString(value) {
			fields[key] = value
		}
		rest = body[valueEnd:]
		pos = valueEnd
	}

	return fields, rest
}

func matchFieldKey(s string, at int) (key string, valueStart int, ok bool) {
	for _, k := range fieldKeys {
		end := at + len(k)
		if end+len(delimiter) > len(s) {
			continue
		}
		if strings.EqualFold(s[at:end], k) && strings.HasPrefix(s[end:], delimiter) {
			return k, end + len(delimiter), true
		}
	}
	return "", 0, false
}

/*
ExtractProgress is the free text left over after the fields, with leading
line breaks and surrounding space trimmed.

Leading lines shaped like a field with an unknown key, such as `twitter:: me`,
are dropped as long as some text follows them.
*/
func ExtractProgress(rest string) string {
	text := strings.TrimLeft(rest, lineBreak)
	for {
		line, after, ok := strings.Cut(text, lineBreak)
		after = strings.TrimLeft(after, lineBreak)
		if !ok || after == "" || !isFieldLine(line) {
			break
		}
		text = after
	}
	return strings.TrimSpace(text)
}

// isFieldLine reports whether line starts with a single-word key and a
// delimiter.
func isFieldLine(line string) bool {
	key, _, ok := strings.Cut(line, delimiter)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return false
	}
	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}
