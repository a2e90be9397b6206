package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/tcadamson/recap.agdg.app/src/board"
	"github.com/tcadamson/recap.agdg.app/src/discover"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/parsing"
	"github.com/tcadamson/recap.agdg.app/src/seen"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

// A Mirror copies a post's media attachment somewhere we control. See
// package media.
type Mirror interface {
	Mirror(ctx context.Context, datestamp int, filename string) error
}

type Pipeline struct {
	Client  *board.Client
	Store   Store
	Seen    *seen.Cache
	Mirror  Mirror // optional
	Subject string

	Writer Writer

	// How many times to try starting a transaction before giving up on a
	// thread.
	BeginAttempts int
	BeginBackoff  backoff.Backoff
}

func NewPipeline(client *board.Client, store Store, cache *seen.Cache, mirror Mirror, subject string) *Pipeline {
	return &Pipeline{
		Client:        client,
		Store:         store,
		Seen:          cache,
		Mirror:        mirror,
		Subject:       subject,
		BeginAttempts: 5,
		BeginBackoff: backoff.Backoff{
			Min: 500 * time.Millisecond,
			Max: 10 * time.Second,
		},
	}
}

type Summary struct {
	RunID string

	Threads       int // threads discovered
	FailedThreads int // threads that could not be fetched or written
	Recaps        int // posts in the recap format
	GamesCreated  int
	GamesRenamed  int
	PostsCreated  int
	MediaMirrored int
}

type threadResult struct {
	recaps, gamesCreated, gamesRenamed int
	newPosts                           []WriteResult
}

/*
Run performs one full ingestion: discover the threads worth scanning, then
parse and write each one in its own transaction. A thread that fails is
rolled back and counted, and the run moves on. Run never returns an error;
the worst case is a run that ingests less than it could have.
*/
func (p *Pipeline) Run(ctx context.Context) Summary {
	summary := Summary{RunID: uuid.NewString()}

	logger := logging.ExtractLogger(ctx).With().Str("run_id", summary.RunID).Logger()
	ctx = logging.AttachLoggerToContext(&logger, ctx)

	start := time.Now()
	logger.Info().Str("subject", p.Subject).Msg("starting ingestion")

	session := p.Client.NewSession()
	ids := discover.New(p.Seen).Discover(ctx, session, p.Subject)
	summary.Threads = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			logger.Info().Msg("ingestion was canceled")
			break
		}

		threadLogger := logger.With().Int("thread", id).Logger()
		threadCtx := logging.AttachLoggerToContext(&threadLogger, ctx)

		thread, ok := session.Thread(threadCtx, id)
		if !ok {
			summary.FailedThreads++
			continue
		}

		res, err := p.scanThread(threadCtx, thread)
		if err != nil {
			threadLogger.Error().Err(err).Msg("failed to ingest thread; rolled back")
			summary.FailedThreads++
			continue
		}
		summary.Recaps += res.recaps
		summary.GamesCreated += res.gamesCreated
		summary.GamesRenamed += res.gamesRenamed
		summary.PostsCreated += len(res.newPosts)

		summary.MediaMirrored += p.mirrorMedia(threadCtx, res.newPosts)
	}

	hits, misses := session.Stats()
	logger.Info().
		Int("threads", summary.Threads).
		Int("failed_threads", summary.FailedThreads).
		Int("recaps", summary.Recaps).
		Int("games_created", summary.GamesCreated).
		Int("games_renamed", summary.GamesRenamed).
		Int("posts_created", summary.PostsCreated).
		Int("media_mirrored", summary.MediaMirrored).
		Int("fetch_hits", hits).
		Int("fetch_misses", misses).
		Dur("elapsed", time.Since(start)).
		Msg("finished ingestion")

	return summary
}

// scanThread writes every recap in a thread and commits once at the end.
func (p *Pipeline) scanThread(ctx context.Context, thread *board.Thread) (res threadResult, err error) {
	defer utils.RecoverPanicAsError(&err)
	logger := logging.ExtractLogger(ctx)

	tx, err := p.begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	for i := range thread.Posts {
		post := &thread.Posts[i]
		if !post.Valid() {
			logger.Warn().Int("index", i).Msg("skipping post without no or time")
			continue
		}

		recap := parsing.ParseRecap(post.Com, post.Time, post.Filename())
		if recap == nil {
			continue
		}
		res.recaps++

		written, err := p.Writer.Write(ctx, tx, recap)
		if err != nil {
			return threadResult{}, oops.New(err, "failed to write recap from post %d", post.No)
		}
		if written.GameCreated {
			res.gamesCreated++
		}
		if written.Renamed {
			res.gamesRenamed++
		}
		if written.Post != nil {
			res.newPosts = append(res.newPosts, written)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return threadResult{}, oops.New(err, "failed to commit thread")
	}

	logger.Debug().
		Int("recaps", res.recaps).
		Int("new_posts", len(res.newPosts)).
		Msg("ingested thread")
	return res, nil
}

func (p *Pipeline) begin(ctx context.Context) (Tx, error) {
	boff := p.BeginBackoff
	boff.Reset()
	attempts := utils.OrDefault(p.BeginAttempts, 1)

	for {
		tx, err := p.Store.Begin(ctx)
		if err == nil {
			return tx, nil
		}
		if int(boff.Attempt())+1 >= attempts {
			return nil, oops.New(err, "failed to start transaction")
		}

		dur := boff.Duration()
		logging.ExtractLogger(ctx).Warn().
			Err(err).
			Dur("retrying after", dur).
			Msg("failed to start transaction")
		if err := utils.SleepContext(ctx, dur); errors.Is(err, utils.ErrSleepInterrupted) {
			return nil, oops.New(err, "gave up starting transaction")
		}
	}
}

// mirrorMedia hands new posts' attachments to the mirror. Failures are only
// logged since the post itself is already saved.
func (p *Pipeline) mirrorMedia(ctx context.Context, written []WriteResult) int {
	if p.Mirror == nil {
		return 0
	}

	mirrored := 0
	for _, w := range written {
		if w.Post.Filename == nil {
			continue
		}
		if err := p.Mirror.Mirror(ctx, w.Post.Datestamp, *w.Post.Filename); err != nil {
			logging.ExtractLogger(ctx).Warn().
				Err(err).
				Str("filename", *w.Post.Filename).
				Msg("failed to mirror media")
			continue
		}
		mirrored++
	}
	return mirrored
}
