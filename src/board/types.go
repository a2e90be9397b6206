package board

import (
	"fmt"
	"regexp"
)

// A Post as the board API serves it. Only the fields the recap pipeline reads
// are decoded.
type Post struct {
	No    int    `json:"no"`
	Resto int    `json:"resto"` // 0 for an opening post
	Time  int64  `json:"time"`  // seconds
	Sub   string `json:"sub"`   // subject, opening posts only
	Com   string `json:"com"`   // HTML comment
	Tim   int64  `json:"tim"`   // media timestamp, milliseconds
	Ext   string `json:"ext"`   // media extension, with the dot
}

func (p *Post) Valid() bool {
	return p.No > 0 && p.Time > 0
}

// Filename is the name the post's attachment is stored under on the media
// host, or "" if the post has none.
func (p *Post) Filename() string {
	if p.Tim == 0 || p.Ext == "" {
		return ""
	}
	return fmt.Sprintf("%d%s", p.Tim, p.Ext)
}

// SubjectPattern matches keyword in a subject as a whole word, ignoring case.
// It returns nil for an empty keyword, which matches nothing.
func SubjectPattern(keyword string) *regexp.Regexp {
	if keyword == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
}

// HasSubject reports whether the subject matches a pattern from
// SubjectPattern.
func (p *Post) HasSubject(pattern *regexp.Regexp) bool {
	if pattern == nil || p.Sub == "" {
		return false
	}
	return pattern.MatchString(p.Sub)
}

type CatalogPage struct {
	Page    int    `json:"page"`
	Threads []Post `json:"threads"` // opening posts
}

type Thread struct {
	Posts []Post `json:"posts"`
}

// OP is the thread's opening post. Only valid on a validated thread.
func (t *Thread) OP() *Post {
	return &t.Posts[0]
}

func validateCatalog(pages []CatalogPage) error {
	for _, page := range pages {
		for i := range page.Threads {
			if !page.Threads[i].Valid() {
				return fmt.Errorf("catalog page %d: thread %d is missing no or time", page.Page, i)
			}
		}
	}
	return nil
}

func validateArchive(ids []int) error {
	for i, id := range ids {
		if id <= 0 {
			return fmt.Errorf("archive entry %d is not a thread id: %d", i, id)
		}
	}
	return nil
}

func validateThread(thread *Thread) error {
	if len(thread.Posts) == 0 {
		return fmt.Errorf("thread has no posts")
	}
	for i := range thread.Posts {
		if !thread.Posts[i].Valid() {
			return fmt.Errorf("post %d is missing no or time", i)
		}
	}
	return nil
}
