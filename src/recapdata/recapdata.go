/*
Package recapdata reads and writes games and posts in the Postgres database.

The helpers take a db.ConnOrTx so they work with a pool, a connection or a
transaction. Store adapts them to the ingest pipeline.
*/
package recapdata

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tcadamson/recap.agdg.app/src/db"
	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/models"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

func FetchGameByTitle(ctx context.Context, dbConn db.ConnOrTx, title string) (*models.Game, error) {
	game, err := db.QueryOne[models.Game](ctx, dbConn,
		`
		---- Fetch game by title
		SELECT $columns
		FROM game
		WHERE lower(title) = lower($1)
		`,
		title,
	)
	if errors.Is(err, db.NotFound) {
		game, err = db.QueryOne[models.Game](ctx, dbConn,
			`
			---- Fetch game by former title
			SELECT $columns
			FROM game
			WHERE id = (
				SELECT game_id FROM game_former_title
				WHERE lower(title) = lower($1)
			)
			`,
			title,
		)
	}
	if errors.Is(err, db.NotFound) {
		return nil, ingest.ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch game by title")
	}
	return game, nil
}

func FetchGame(ctx context.Context, dbConn db.ConnOrTx, id int) (*models.Game, error) {
	game, err := db.QueryOne[models.Game](ctx, dbConn,
		`
		---- Fetch game
		SELECT $columns
		FROM game
		WHERE id = $1
		`,
		id,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ingest.ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to fetch game")
	}
	return game, nil
}

// CreateGame returns ingest.ErrTitleTaken if a game with the same title, in
// any case, already exists.
func CreateGame(ctx context.Context, dbConn db.ConnOrTx, game models.Game) (*models.Game, error) {
	id, err := db.QueryOneScalar[int](ctx, dbConn,
		`
		---- Create game
		INSERT INTO game (title, dev, tools, web)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id
		`,
		game.Title, game.Dev, game.Tools, game.Web,
	)
	if errors.Is(err, db.NotFound) {
		return nil, ingest.ErrTitleTaken
	} else if err != nil {
		return nil, oops.New(err, "failed to create game")
	}
	game.ID = id
	return &game, nil
}

// UpdateGame writes every metadata field that is set. Fields are never
// cleared and the title is left alone.
func UpdateGame(ctx context.Context, dbConn db.ConnOrTx, game models.Game) error {
	var qb db.QueryBuilder
	qb.Add(
		`
		---- Update game
		UPDATE game
		SET id = id
		`,
	)
	for _, key := range models.GameFieldKeys {
		if value, ok := game.Field(key); ok {
			qb.Add(", "+key+" = $?", value)
		}
	}
	qb.Add(`WHERE id = $?`, game.ID)

	tag, err := dbConn.Exec(ctx, qb.String(), qb.Args()...)
	if err != nil {
		return oops.New(err, "failed to update game")
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// RenameGame changes a game's title and keeps the old one in
// game_former_title so FetchGameByTitle still finds the game by it.
func RenameGame(ctx context.Context, dbConn db.ConnOrTx, id int, title string) error {
	old, err := FetchGame(ctx, dbConn, id)
	if err != nil {
		return err
	}

	_, err = dbConn.Exec(ctx,
		`
		---- Rename game
		UPDATE game
		SET title = $1
		WHERE id = $2
		`,
		title, id,
	)
	if db.IsUniqueViolation(err) {
		return ingest.ErrTitleTaken
	} else if err != nil {
		return oops.New(err, "failed to rename game")
	}

	_, err = dbConn.Exec(ctx,
		`
		---- Forget former title
		DELETE FROM game_former_title
		WHERE lower(title) = lower($1)
		`,
		title,
	)
	if err != nil {
		return oops.New(err, "failed to forget former title")
	}
	if strings.EqualFold(old.Title, title) {
		return nil
	}
	_, err = dbConn.Exec(ctx,
		`
		---- Remember former title
		INSERT INTO game_former_title (game_id, title)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
		`,
		id, old.Title,
	)
	if err != nil {
		return oops.New(err, "failed to remember former title")
	}
	return nil
}

func HasPost(ctx context.Context, dbConn db.ConnOrTx, gameID int, unix int64) (bool, error) {
	exists, err := db.QueryOneScalar[bool](ctx, dbConn,
		`
		---- Check for post
		SELECT EXISTS (
			SELECT 1 FROM post
			WHERE game_id = $1 AND unix = $2
		)
		`,
		gameID, unix,
	)
	if err != nil {
		return false, oops.New(err, "failed to check for post")
	}
	return exists, nil
}

func FetchPostsForGame(ctx context.Context, dbConn db.ConnOrTx, gameID int) ([]*models.Post, error) {
	posts, err := db.Query[models.Post](ctx, dbConn,
		`
		---- Fetch posts for game
		SELECT $columns
		FROM post
		WHERE game_id = $1
		ORDER BY unix, id
		`,
		gameID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch posts for game")
	}
	return posts, nil
}

func CreatePost(ctx context.Context, dbConn db.ConnOrTx, post models.Post) (*models.Post, error) {
	id, err := db.QueryOneScalar[int](ctx, dbConn,
		`
		---- Create post
		INSERT INTO post (game_id, unix, datestamp, filename, progress)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
		`,
		post.GameID, post.Unix, post.Datestamp, post.Filename, post.Progress,
	)
	if err != nil {
		return nil, oops.New(err, "failed to create post")
	}
	post.ID = id
	return &post, nil
}

type Store struct {
	pool *pgxpool.Pool
}

var _ ingest.Store = &Store{}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to start transaction")
	}
	return &Tx{tx: tx}, nil
}

type Tx struct {
	tx pgx.Tx
}

var _ ingest.Tx = &Tx{}

func (t *Tx) GameByTitle(ctx context.Context, title string) (*models.Game, error) {
	return FetchGameByTitle(ctx, t.tx, title)
}

func (t *Tx) GameByID(ctx context.Context, id int) (*models.Game, error) {
	return FetchGame(ctx, t.tx, id)
}

func (t *Tx) CreateGame(ctx context.Context, game models.Game) (*models.Game, error) {
	return CreateGame(ctx, t.tx, game)
}

func (t *Tx) UpdateGame(ctx context.Context, game models.Game) error {
	return UpdateGame(ctx, t.tx, game)
}

func (t *Tx) RenameGame(ctx context.Context, id int, title string) error {
	return RenameGame(ctx, t.tx, id, title)
}

func (t *Tx) HasPost(ctx context.Context, gameID int, unix int64) (bool, error) {
	return HasPost(ctx, t.tx, gameID, unix)
}

func (t *Tx) PostsByGame(ctx context.Context, gameID int) ([]*models.Post, error) {
	return FetchPostsForGame(ctx, t.tx, gameID)
}

func (t *Tx) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	return CreatePost(ctx, t.tx, post)
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
