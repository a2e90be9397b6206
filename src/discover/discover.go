package discover

import (
	"context"

	"github.com/tcadamson/recap.agdg.app/src/board"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/seen"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

// Fetcher is the part of the board API discovery needs. *board.Session
// satisfies it.
type Fetcher interface {
	Catalog(ctx context.Context) ([]board.CatalogPage, bool)
	Archive(ctx context.Context) ([]int, bool)
	Thread(ctx context.Context, id int) (*board.Thread, bool)
}

var _ Fetcher = &board.Session{}

type Discoverer struct {
	Seen *seen.Cache
}

func New(cache *seen.Cache) *Discoverer {
	if cache == nil {
		cache = seen.New(nil)
	}
	return &Discoverer{Seen: cache}
}

/*
Discover returns the ids of the threads worth scanning this run, sorted and
without duplicates:

  - every open thread in the catalog whose subject has the keyword
  - every archived thread not seen before whose subject has the keyword

Each newly archived thread is fetched once to read its subject and then marked
seen whether it matched or not. The seen marks are written in one batch when
Discover returns. A thread that cannot be fetched is left unseen
so a later run retries it. An unreachable catalog or archive only shrinks the
result.
*/
func (d *Discoverer) Discover(ctx context.Context, f Fetcher, subject string) []int {
	logger := logging.ExtractLogger(ctx)
	pattern := board.SubjectPattern(subject)
	var ids []int

	open := 0
	if pages, ok := f.Catalog(ctx); ok {
		for _, page := range pages {
			for i := range page.Threads {
				if op := &page.Threads[i]; op.HasSubject(pattern) {
					ids = append(ids, op.No)
					open++
				}
			}
		}
	} else {
		logger.Warn().Msg("catalog unavailable; skipping open threads")
	}

	archived := 0
	if archive, ok := f.Archive(ctx); ok {
		unseen := d.Seen.Reconcile(ctx, archive)
		defer d.Seen.Flush(context.WithoutCancel(ctx))
		logger.Debug().
			Int("archived", len(archive)).
			Int("unseen", len(unseen)).
			Msg("reconciled seen threads")

		for _, id := range unseen {
			if ctx.Err() != nil {
				break
			}
			thread, ok := f.Thread(ctx, id)
			if !ok {
				continue
			}
			if thread.OP().HasSubject(pattern) {
				ids = append(ids, id)
				archived++
			}
			d.Seen.MarkSeen(ctx, id)
		}
	} else {
		logger.Warn().Msg("archive unavailable; skipping archived threads")
	}

	ids = utils.SortedUnique(ids)
	logger.Info().
		Int("open", open).
		Int("newly_archived", archived).
		Int("total", len(ids)).
		Msg("discovered threads")
	return ids
}
