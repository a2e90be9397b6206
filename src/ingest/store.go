package ingest

import (
	"context"
	"errors"

	"github.com/tcadamson/recap.agdg.app/src/models"
)

var (
	ErrNotFound = errors.New("not found")

	// Returned by CreateGame when another game already has the title, in any
	// case.
	ErrTitleTaken = errors.New("game title already taken")
)

// A Store hands out transactions against the recap database. Implementations
// live in recapdata (Postgres) and localdb (SQLite).
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

/*
A Tx is one unit of work. Nothing is visible to other transactions until
Commit. Rollback after Commit is a no-op, so it is safe to defer.

Titles are always compared case-insensitively. GameByTitle matches a game's
current title first and then any title it had before a rename, so recaps
posted under an old name still find their game.
*/
type Tx interface {
	GameByTitle(ctx context.Context, title string) (*models.Game, error)
	GameByID(ctx context.Context, id int) (*models.Game, error)
	CreateGame(ctx context.Context, game models.Game) (*models.Game, error)
	// UpdateGame writes the metadata fields that are set. It never clears a
	// field or changes the title.
	UpdateGame(ctx context.Context, game models.Game) error
	// RenameGame changes a game's title and remembers the old one.
	RenameGame(ctx context.Context, id int, title string) error

	HasPost(ctx context.Context, gameID int, unix int64) (bool, error)
	PostsByGame(ctx context.Context, gameID int) ([]*models.Post, error)
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
