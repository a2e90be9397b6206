package migration

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/tcadamson/recap.agdg.app/src/cli"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/db"
	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/parsing"
	"github.com/tcadamson/recap.agdg.app/src/recapdata"
)

func init() {
	seedCommand := &cobra.Command{
		Use:   "seed [pg_dump file]",
		Short: "Migrate the database and fill it with sample recaps, or restore a dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 0 {
				return SeedFromFile(ctx, args[0])
			}
			return SampleSeed(ctx)
		},
	}
	cli.RootCommand.AddCommand(seedCommand)
}

// SeedFromFile restores a pg_dump of production data into the configured
// database, which should already be migrated to the dump's version.
func SeedFromFile(ctx context.Context, seedFile string) error {
	if _, err := os.Stat(seedFile); err != nil {
		return oops.New(err, "couldn't open seed file %s", seedFile)
	}

	fmt.Println("Executing seed...")
	cmd := exec.CommandContext(ctx, "pg_restore",
		"--single-transaction",
		"--data-only",
		"--dbname", config.Config.Postgres.DSN(),
		seedFile,
	)
	fmt.Println("Running command:", cmd)
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Print(string(output))
		return oops.New(err, "failed to execute seed")
	}

	fmt.Println("Done!")
	ListMigrations(ctx)
	return nil
}

// Recap comments as they would appear on the board, oldest first.
var sampleRecaps = []struct {
	time    int64
	comment string
}{
	{1585900000, `:: Dungeon Mop ::<br>dev:: anon<br>tools:: Godot<br>mops now leave wet tiles that enemies slip on`},
	{1585950000, `:: Star Courier ::<br>dev:: courierdev<br>tools:: Raylib<br>web:: https://starcourier.example<br>added cargo weight to the flight model`},
	{1586500000, `:: dungeon mop ::<br>first boss done, he is a giant dust bunny`},
	{1587100000, `:: Star Courier :: Void Courier ::<br>renamed the game, trademark reasons`},
	{1587240800, `:: Void Courier ::<br>tools:: Raylib + Jolt<br>switched physics engines`},
}

// SampleSeed migrates to the latest version and writes a handful of recaps
// through the same path the scraper uses.
func SampleSeed(ctx context.Context) error {
	if err := Migrate(ctx, LatestVersion()); err != nil {
		return err
	}

	pool, err := db.NewConnPoolWithConfig(ctx, config.PostgresConfig{MinConn: 1, MaxConn: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	store := recapdata.NewStore(pool)
	tx, err := store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var w ingest.Writer
	for _, sample := range sampleRecaps {
		recap := parsing.ParseRecap(sample.comment, sample.time, "")
		if recap == nil {
			return oops.New(nil, "sample recap does not parse: %q", sample.comment)
		}
		res, err := w.Write(ctx, tx, recap)
		if err != nil {
			return err
		}
		fmt.Printf("%-14s post: %v\n", res.Game.Title, res.Post != nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit sample data")
	}
	fmt.Printf("Seeded %d sample recaps.\n", len(sampleRecaps))
	return nil
}
