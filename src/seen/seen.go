/*
Package seen remembers which archived threads have already been classified, so
that each closed thread is downloaded at most once.

The cache only saves work. Every backend failure is logged and then treated as
"nothing seen", which costs extra requests but never loses recaps.
*/
package seen

import (
	"context"
	"slices"

	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

type Cache struct {
	backend Backend
	ids     map[int]struct{}
	pending []int // marked seen but not yet written to the backend
}

// New wraps a backend. A nil backend makes a cache that never remembers
// anything.
func New(backend Backend) *Cache {
	return &Cache{
		backend: backend,
		ids:     map[int]struct{}{},
	}
}

// Load reads the stored set. On failure the cache is empty.
func (c *Cache) Load(ctx context.Context) map[int]struct{} {
	c.ids = map[int]struct{}{}
	if c.backend == nil {
		return c.ids
	}

	ids, err := c.backend.IDs(ctx)
	if err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Msg("failed to load seen threads; rescanning the whole archive")
		return c.ids
	}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return c.ids
}

func (c *Cache) Contains(id int) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *Cache) Len() int {
	return len(c.ids)
}

/*
Reconcile loads the cache and prunes every id that is no longer in the board's
archive, then returns the archive ids that have not been seen, in ascending
order.
*/
func (c *Cache) Reconcile(ctx context.Context, archive []int) []int {
	c.Load(ctx)
	logger := logging.ExtractLogger(ctx)

	inArchive := make(map[int]struct{}, len(archive))
	for _, id := range archive {
		inArchive[id] = struct{}{}
	}

	var stale []int
	for id := range c.ids {
		if _, ok := inArchive[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		slices.Sort(stale)
		for _, id := range stale {
			delete(c.ids, id)
		}
		if c.backend != nil {
			if err := c.backend.Remove(ctx, stale...); err != nil {
				logger.Warn().Err(err).Int("stale", len(stale)).Msg("failed to prune seen threads")
			}
		}
		logger.Debug().Int("pruned", len(stale)).Msg("pruned threads that left the archive")
	}

	var unseen []int
	for _, id := range utils.SortedUnique(archive) {
		if !c.Contains(id) {
			unseen = append(unseen, id)
		}
	}
	return unseen
}

// MarkSeen records that a thread has been classified. The id is kept in
// memory until Flush writes it out.
func (c *Cache) MarkSeen(ctx context.Context, id int) {
	c.ids[id] = struct{}{}
	if c.backend != nil {
		c.pending = append(c.pending, id)
	}
}

// Flush writes every id marked since the last flush in one backend call. A
// failure is logged and the ids are dropped; a later run fetches those threads
// again.
func (c *Cache) Flush(ctx context.Context) {
	if c.backend == nil || len(c.pending) == 0 {
		return
	}
	pending := c.pending
	c.pending = nil
	if err := c.backend.Add(ctx, pending...); err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Int("threads", len(pending)).Msg("failed to mark threads as seen")
	}
}

// Clear forgets every thread. Unlike the other operations its failure is
// returned, since it is only used by hand.
func (c *Cache) Clear(ctx context.Context) error {
	c.ids = map[int]struct{}{}
	c.pending = nil
	if c.backend == nil {
		return nil
	}
	ids, err := c.backend.IDs(ctx)
	if err != nil {
		logging.ExtractLogger(ctx).Warn().Err(err).Msg("failed to read seen threads; clearing anyway")
	}
	return c.backend.Remove(ctx, ids...)
}
