package board

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcadamson/recap.agdg.app/src/config"
)

type fakeBoard struct {
	*httptest.Server
	requests map[string]*atomic.Int32
}

// newFakeBoard serves the given bodies by path. Paths not listed 404.
// A body of "500" makes the path fail with a server error.
func newFakeBoard(t *testing.T, bodies map[string]string) *fakeBoard {
	fb := &fakeBoard{requests: map[string]*atomic.Int32{}}
	for path := range bodies {
		fb.requests[path] = &atomic.Int32{}
	}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fb.requests[r.URL.Path].Add(1)
		if body == "500" {
			http.Error(w, "oh no", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBoard) client() *Client {
	return NewClient(config.BoardConfig{
		Name:           "vg",
		APIBaseUrl:     fb.URL,
		MediaBaseUrl:   fb.URL + "/media",
		RequestTimeout: time.Second,
		RetryAttempts:  3,
		RetryDelay:     time.Millisecond,
	})
}

func (fb *fakeBoard) count(path string) int {
	return int(fb.requests[path].Load())
}

const catalogJSON = `[
	{"page": 1, "threads": [
		{"no": 100, "time": 1587240724, "sub": "/agdg/ - Amateur Game Development General", "com": "welcome"},
		{"no": 101, "time": 1587240725, "sub": "/vg/ general"}
	]}
]`

const threadJSON = `{"posts": [
	{"no": 100, "resto": 0, "time": 1587240724, "sub": "/agdg/", "com": "op"},
	{"no": 102, "resto": 100, "time": 1587240800, "com": ":: Foo ::<br>progress", "tim": 1587240800123, "ext": ".png"}
]}`

func TestClient(t *testing.T) {
	fb := newFakeBoard(t, map[string]string{
		"/vg/catalog.json":    catalogJSON,
		"/vg/archive.json":    `[90, 91, 92]`,
		"/vg/thread/100.json": threadJSON,
		"/vg/thread/200.json": `{"posts": []}`,
		"/vg/thread/201.json": `{"posts": [{"no": 201}]}`,
		"/vg/thread/202.json": `{"posts": [`,
		"/vg/thread/203.json": "500",
		"/vg/thread/204.json": `{"posts": "nope"}`,
		"/media/vg/123.png":   "fake image",
	})
	c := fb.client()
	ctx := context.Background()

	t.Run("catalog", func(t *testing.T) {
		pages, ok := c.Catalog(ctx)
		require.True(t, ok)
		require.Len(t, pages, 1)
		require.Len(t, pages[0].Threads, 2)
		assert.Equal(t, 100, pages[0].Threads[0].No)
	})
	t.Run("archive", func(t *testing.T) {
		ids, ok := c.Archive(ctx)
		require.True(t, ok)
		assert.Equal(t, []int{90, 91, 92}, ids)
	})
	t.Run("thread", func(t *testing.T) {
		thread, ok := c.Thread(ctx, 100)
		require.True(t, ok)
		require.Len(t, thread.Posts, 2)
		assert.Equal(t, 100, thread.OP().No)
		assert.Equal(t, "1587240800123.png", thread.Posts[1].Filename())
		assert.Equal(t, "", thread.Posts[0].Filename())
	})
	t.Run("missing thread is absent and not retried", func(t *testing.T) {
		thread, ok := c.Thread(ctx, 999)
		assert.False(t, ok)
		assert.Nil(t, thread)
	})
	t.Run("invalid documents are absent", func(t *testing.T) {
		for _, id := range []int{200, 201, 202, 204} {
			_, ok := c.Thread(ctx, id)
			assert.False(t, ok, "thread %d", id)
		}
		assert.Equal(t, 1, fb.count("/vg/thread/202.json"), "malformed JSON is not retried")
	})
	t.Run("server errors are retried then absent", func(t *testing.T) {
		_, ok := c.Thread(ctx, 203)
		assert.False(t, ok)
		assert.Equal(t, 3, fb.count("/vg/thread/203.json"))
	})
	t.Run("media", func(t *testing.T) {
		body, _, err := c.Media(ctx, "123.png")
		require.NoError(t, err)
		assert.Equal(t, "fake image", string(body))

		_, _, err = c.Media(ctx, "404.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.BoardConfig{APIBaseUrl: url, RetryAttempts: 2, RetryDelay: time.Millisecond})
	_, ok := c.Catalog(context.Background())
	assert.False(t, ok)
}

func TestSession(t *testing.T) {
	fb := newFakeBoard(t, map[string]string{
		"/vg/catalog.json":    catalogJSON,
		"/vg/thread/100.json": threadJSON,
		"/vg/thread/203.json": "500",
	})
	s := fb.client().NewSession()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := s.Catalog(ctx)
		require.True(t, ok)
		_, ok = s.Thread(ctx, 100)
		require.True(t, ok)
	}
	assert.Equal(t, 1, fb.count("/vg/catalog.json"))
	assert.Equal(t, 1, fb.count("/vg/thread/100.json"))

	_, ok := s.Thread(ctx, 203)
	assert.False(t, ok)
	_, ok = s.Thread(ctx, 203)
	assert.False(t, ok)
	assert.Equal(t, 6, fb.count("/vg/thread/203.json"), "failures are not memoized")

	hits, misses := s.Stats()
	assert.Equal(t, 4, hits)
	assert.Equal(t, 4, misses)

	fresh := fb.client().NewSession()
	_, ok = fresh.Catalog(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, fb.count("/vg/catalog.json"), "sessions do not share a cache")
}

func TestHasSubject(t *testing.T) {
	cases := []struct {
		sub      string
		expected bool
	}{
		{"/agdg/ - Amateur Game Development General", true},
		{"AGDG", true},
		{"agdg #512", true},
		{"not-agdg-related", true},
		{"agdgx", false},
		{"magdg", false},
		{"", false},
	}
	pattern := SubjectPattern("agdg")
	for _, c := range cases {
		p := Post{No: 1, Time: 1, Sub: c.sub}
		assert.Equal(t, c.expected, p.HasSubject(pattern), c.sub)
	}

	assert.Nil(t, SubjectPattern(""))
	assert.False(t, (&Post{Sub: "agdg"}).HasSubject(nil))
	assert.False(t, (&Post{Sub: "axb thread"}).HasSubject(SubjectPattern("a.b")), "keywords are quoted")
}

func TestURLs(t *testing.T) {
	c := NewClient(config.BoardConfig{})
	assert.Equal(t, "https://a.4cdn.org/vg/catalog.json", c.CatalogURL())
	assert.Equal(t, "https://a.4cdn.org/vg/archive.json", c.ArchiveURL())
	assert.Equal(t, "https://a.4cdn.org/vg/thread/123.json", c.ThreadURL(123))
	assert.Equal(t, "https://i.4cdn.org/vg/1587240800123.png", c.MediaURL("1587240800123.png"))
}
