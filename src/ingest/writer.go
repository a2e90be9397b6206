package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/tcadamson/recap.agdg.app/src/datestamp"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/models"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/parsing"
)

type WriteResult struct {
	Game        *models.Game
	GameCreated bool
	Renamed     bool         // the game's title was changed in place
	Post        *models.Post // nil when nothing new was written
}

// Writer files parsed recaps into a transaction. It never commits; the
// caller commits once per thread.
type Writer struct{}

func (w *Writer) Write(ctx context.Context, tx Tx, recap *parsing.Recap) (WriteResult, error) {
	var res WriteResult

	ds, err := datestamp.FromTimestamp(recap.Time)
	if err != nil {
		return res, oops.New(err, "recap has a bad post time")
	}

	game, created, renamed, err := w.resolveGame(ctx, tx, recap)
	if err != nil {
		return res, err
	}
	res.Game, res.GameCreated, res.Renamed = game, created, renamed

	dirty := false
	for key, value := range recap.Fields {
		if old, ok := game.Field(key); ok && old == value {
			continue
		}
		if game.SetField(key, value) {
			dirty = true
		}
	}
	if dirty {
		if err := tx.UpdateGame(ctx, *game); err != nil {
			return res, oops.New(err, "failed to update game %d", game.ID)
		}
	}

	if recap.Progress == "" {
		return res, nil
	}

	unix := datestamp.TruncateTimestamp(recap.Time)
	exists, err := tx.HasPost(ctx, game.ID, unix)
	if err != nil {
		return res, oops.New(err, "failed to check for an existing post")
	}
	if exists {
		return res, nil
	}

	post := models.Post{
		GameID:    game.ID,
		Unix:      unix,
		Datestamp: ds,
		Progress:  recap.Progress,
	}
	if recap.Filename != "" {
		filename := recap.Filename
		post.Filename = &filename
	}
	res.Post, err = tx.CreatePost(ctx, post)
	if err != nil {
		return res, oops.New(err, "failed to create post for game %d", game.ID)
	}
	return res, nil
}

/*
resolveGame finds or creates the game a recap belongs to.

A rename only takes effect when no game has the new title yet. If the game
being renamed exists it keeps its id and posts and only its title changes;
otherwise the recap simply starts a game under the new title. Once renamed, a
rescan of the same recap finds the new title taken and falls back to the old
one, which still resolves to the same game.
*/
func (w *Writer) resolveGame(ctx context.Context, tx Tx, recap *parsing.Recap) (game *models.Game, created, renamed bool, err error) {
	renameTaken := false
	if recap.Rename != "" {
		_, err := tx.GameByTitle(ctx, recap.Rename)
		switch {
		case err == nil:
			renameTaken = true
		case !errors.Is(err, ErrNotFound):
			return nil, false, false, oops.New(err, "failed to look up game %q", recap.Rename)
		}
	}

	title := recap.EffectiveTitle(func(string) bool { return renameTaken })
	if title != recap.Title {
		old, err := tx.GameByTitle(ctx, recap.Title)
		if err == nil {
			if err := tx.RenameGame(ctx, old.ID, title); err != nil {
				return nil, false, false, oops.New(err, "failed to rename game %d", old.ID)
			}
			logging.ExtractLogger(ctx).Info().
				Int("game", old.ID).
				Str("from", old.Title).
				Str("to", title).
				Msg("renamed game")
			old.Title = title
			return old, false, true, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, false, false, oops.New(err, "failed to look up game %q", recap.Title)
		}
	}

	return w.findOrCreate(ctx, tx, title)
}

func (w *Writer) findOrCreate(ctx context.Context, tx Tx, title string) (*models.Game, bool, bool, error) {
	game, err := tx.GameByTitle(ctx, title)
	if err == nil {
		return game, false, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, false, oops.New(err, "failed to look up game %q", title)
	}

	game, err = tx.CreateGame(ctx, models.Game{Title: strings.TrimSpace(title)})
	if errors.Is(err, ErrTitleTaken) {
		game, err = tx.GameByTitle(ctx, title)
		if err != nil {
			return nil, false, false, oops.New(err, "game %q was taken but cannot be found", title)
		}
		return game, false, false, nil
	} else if err != nil {
		return nil, false, false, oops.New(err, "failed to create game %q", title)
	}

	logging.ExtractLogger(ctx).Info().Int("game", game.ID).Str("title", game.Title).Msg("created game")
	return game, true, false, nil
}
