package board

import (
	"context"
	"sync"
)

/*
A Session memoizes board documents by URL for the length of one ingestion
run, so that a thread seen during discovery is not downloaded again when it is
scanned. Failed fetches are not remembered and will be retried on the next
call.

Start a new Session for every run; the board changes between runs.
*/
type Session struct {
	client *Client

	mu    sync.Mutex
	cache map[string]any

	hits, misses int
}

func (c *Client) NewSession() *Session {
	return &Session{
		client: c,
		cache:  map[string]any{},
	}
}

func (s *Session) Client() *Client {
	return s.client
}

func (s *Session) Catalog(ctx context.Context) ([]CatalogPage, bool) {
	return memo(s, s.client.CatalogURL(), func() ([]CatalogPage, bool) {
		return s.client.Catalog(ctx)
	})
}

func (s *Session) Archive(ctx context.Context) ([]int, bool) {
	return memo(s, s.client.ArchiveURL(), func() ([]int, bool) {
		return s.client.Archive(ctx)
	})
}

func (s *Session) Thread(ctx context.Context, id int) (*Thread, bool) {
	return memo(s, s.client.ThreadURL(id), func() (*Thread, bool) {
		return s.client.Thread(ctx, id)
	})
}

// Stats reports cache hits and misses so far.
func (s *Session) Stats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func memo[T any](s *Session, url string, fetch func() (T, bool)) (T, bool) {
	s.mu.Lock()
	if cached, ok := s.cache[url]; ok {
		s.hits++
		s.mu.Unlock()
		return cached.(T), true
	}
	s.misses++
	s.mu.Unlock()

	res, ok := fetch()
	if !ok {
		return res, false
	}

	s.mu.Lock()
	s.cache[url] = res
	s.mu.Unlock()
	return res, true
}
