package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tcadamson/recap.agdg.app/src/migration/types"
)

func init() {
	registerMigration(FormerTitles{})
}

type FormerTitles struct{}

func (m FormerTitles) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 10, 5, 14, 22, 11, 0, time.UTC))
}

func (m FormerTitles) Name() string {
	return "FormerTitles"
}

func (m FormerTitles) Description() string {
	return "Remember the titles a game had before it was renamed"
}

func (m FormerTitles) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE game_former_title (
			game_id INT NOT NULL REFERENCES game (id) ON DELETE CASCADE,
			title TEXT NOT NULL
		);
		CREATE UNIQUE INDEX game_former_title_lower ON game_former_title (lower(title));
		CREATE INDEX game_former_title_game_id ON game_former_title (game_id);
		`,
	)
	return err
}

func (m FormerTitles) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `DROP TABLE game_former_title;`)
	return err
}
