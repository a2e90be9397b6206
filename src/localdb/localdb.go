/*
Package localdb is a single-file SQLite store for running the scraper without
a Postgres server. It uses the same layout as the Postgres schema, with titles
compared by SQLite's NOCASE collation.
*/
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/models"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS game (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE COLLATE NOCASE,
		dev TEXT,
		tools TEXT,
		web TEXT
	);

	CREATE TABLE IF NOT EXISTS game_former_title (
		game_id INTEGER NOT NULL REFERENCES game (id) ON DELETE CASCADE,
		title TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS post (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL REFERENCES game (id) ON DELETE CASCADE ON UPDATE CASCADE,
		unix INTEGER NOT NULL,
		datestamp INTEGER NOT NULL,
		filename TEXT,
		progress TEXT NOT NULL,
		UNIQUE (game_id, unix)
	);

	CREATE INDEX IF NOT EXISTS post_datestamp ON post (datestamp);
`

type Store struct {
	db *sql.DB
}

var _ ingest.Store = &Store{}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, oops.New(err, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.New(err, "failed to open %s", path)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, oops.New(err, "failed to enable foreign keys")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, oops.New(err, "failed to create schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (ingest.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, oops.New(err, "failed to start transaction")
	}
	return &Tx{tx: tx}, nil
}

type Tx struct {
	tx *sql.Tx
}

var _ ingest.Tx = &Tx{}

const gameColumns = `id, title, dev, tools, web`

func scanGame(row *sql.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(&g.ID, &g.Title, &g.Dev, &g.Tools, &g.Web)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingest.ErrNotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to read game")
	}
	return &g, nil
}

func (t *Tx) GameByTitle(ctx context.Context, title string) (*models.Game, error) {
	game, err := scanGame(t.tx.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM game WHERE title = ?`,
		title,
	))
	if !errors.Is(err, ingest.ErrNotFound) {
		return game, err
	}
	return scanGame(t.tx.QueryRowContext(ctx,
		`
		SELECT `+gameColumns+`
		FROM game
		WHERE id = (SELECT game_id FROM game_former_title WHERE title = ?)
		`,
		title,
	))
}

func (t *Tx) GameByID(ctx context.Context, id int) (*models.Game, error) {
	return scanGame(t.tx.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM game WHERE id = ?`,
		id,
	))
}

func (t *Tx) CreateGame(ctx context.Context, game models.Game) (*models.Game, error) {
	res, err := t.tx.ExecContext(ctx,
		`
		INSERT INTO game (title, dev, tools, web)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		`,
		game.Title, game.Dev, game.Tools, game.Web,
	)
	if err != nil {
		return nil, oops.New(err, "failed to create game")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, oops.New(err, "failed to create game")
	} else if n == 0 {
		return nil, ingest.ErrTitleTaken
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, oops.New(err, "failed to get id of new game")
	}
	game.ID = int(id)
	return &game, nil
}

// UpdateGame writes the fields. A nil field keeps its stored value.
func (t *Tx) UpdateGame(ctx context.Context, game models.Game) error {
	res, err := t.tx.ExecContext(ctx,
		`
		UPDATE game
		SET
			dev = coalesce(?, dev),
			tools = coalesce(?, tools),
			web = coalesce(?, web)
		WHERE id = ?
		`,
		game.Dev, game.Tools, game.Web, game.ID,
	)
	if err != nil {
		return oops.New(err, "failed to update game")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func (t *Tx) RenameGame(ctx context.Context, id int, title string) error {
	old, err := t.GameByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `UPDATE game SET title = ? WHERE id = ?`, title, id)
	if isUniqueViolation(err) {
		return ingest.ErrTitleTaken
	} else if err != nil {
		return oops.New(err, "failed to rename game")
	}

	_, err = t.tx.ExecContext(ctx, `DELETE FROM game_former_title WHERE title = ?`, title)
	if err != nil {
		return oops.New(err, "failed to forget former title")
	}
	if !strings.EqualFold(old.Title, title) {
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO game_former_title (game_id, title) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			id, old.Title,
		)
		if err != nil {
			return oops.New(err, "failed to remember former title")
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (t *Tx) HasPost(ctx context.Context, gameID int, unix int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM post WHERE game_id = ? AND unix = ?)`,
		gameID, unix,
	).Scan(&exists)
	if err != nil {
		return false, oops.New(err, "failed to check for post")
	}
	return exists, nil
}

func (t *Tx) PostsByGame(ctx context.Context, gameID int) ([]*models.Post, error) {
	rows, err := t.tx.QueryContext(ctx,
		`
		SELECT id, game_id, unix, datestamp, filename, progress
		FROM post
		WHERE game_id = ?
		ORDER BY unix, id
		`,
		gameID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch posts for game")
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.GameID, &p.Unix, &p.Datestamp, &p.Filename, &p.Progress); err != nil {
			return nil, oops.New(err, "failed to read post")
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.New(err, "failed to fetch posts for game")
	}
	return posts, nil
}

func (t *Tx) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	res, err := t.tx.ExecContext(ctx,
		`
		INSERT INTO post (game_id, unix, datestamp, filename, progress)
		VALUES (?, ?, ?, ?, ?)
		`,
		post.GameID, post.Unix, post.Datestamp, post.Filename, post.Progress,
	)
	if err != nil {
		return nil, oops.New(err, "failed to create post")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, oops.New(err, "failed to get id of new post")
	}
	post.ID = int(id)
	return &post, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return oops.New(err, "failed to commit")
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
