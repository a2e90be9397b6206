package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tcadamson/recap.agdg.app/src/migration/types"
)

func init() {
	registerMigration(CaseInsensitiveTitles{})
}

type CaseInsensitiveTitles struct{}

func (m CaseInsensitiveTitles) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 21, 18, 30, 40, 0, time.UTC))
}

func (m CaseInsensitiveTitles) Name() string {
	return "CaseInsensitiveTitles"
}

func (m CaseInsensitiveTitles) Description() string {
	return "Make game titles unique ignoring case, and posts unique per game and time"
}

func (m CaseInsensitiveTitles) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE UNIQUE INDEX game_title_lower ON game (lower(title));
		CREATE UNIQUE INDEX post_game_unix ON post (game_id, unix);
		`,
	)
	return err
}

func (m CaseInsensitiveTitles) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP INDEX post_game_unix;
		DROP INDEX game_title_lower;
		`,
	)
	return err
}
