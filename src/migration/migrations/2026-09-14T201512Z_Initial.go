package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tcadamson/recap.agdg.app/src/migration/types"
)

func init() {
	registerMigration(Initial{})
}

type Initial struct{}

func (m Initial) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 14, 20, 15, 12, 0, time.UTC))
}

func (m Initial) Name() string {
	return "Initial"
}

func (m Initial) Description() string {
	return "Create the game and post tables"
}

func (m Initial) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE game (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			dev TEXT,
			tools TEXT,
			web TEXT
		);

		CREATE TABLE post (
			id SERIAL PRIMARY KEY,
			game_id INTEGER NOT NULL REFERENCES game (id) ON DELETE CASCADE ON UPDATE CASCADE,
			unix BIGINT NOT NULL,
			datestamp INTEGER NOT NULL,
			filename TEXT,
			progress TEXT NOT NULL
		);

		CREATE INDEX post_game_id ON post (game_id);
		CREATE INDEX post_datestamp ON post (datestamp);
		`,
	)
	return err
}

func (m Initial) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE post;
		DROP TABLE game;
		`,
	)
	return err
}
