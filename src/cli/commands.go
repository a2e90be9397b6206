package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/datestamp"
	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/jobs"
	"github.com/tcadamson/recap.agdg.app/src/models"
	"github.com/tcadamson/recap.agdg.app/src/oops"
)

func init() {
	scrapeCommand := &cobra.Command{
		Use:   "scrape",
		Short: "Collect recaps from the board once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			p, done, err := NewPipeline(ctx)
			if err != nil {
				return err
			}
			defer done()

			summary := p.Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d threads, %d recaps, %d new games, %d new posts\n",
				summary.Threads, summary.Recaps, summary.GamesCreated, summary.PostsCreated)
			if summary.FailedThreads > 0 {
				return oops.New(nil, "%d threads failed", summary.FailedThreads)
			}
			return nil
		},
	}
	RootCommand.AddCommand(scrapeCommand)

	var runNow bool
	watchCommand := &cobra.Command{
		Use:   "watch",
		Short: "Collect recaps on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := NewPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			job, err := jobs.Schedule("recap ingestion", config.Config.Schedule.Cron, runNow, func(ctx context.Context) {
				p.Run(ctx)
			})
			if err != nil {
				return err
			}
			WaitForInterrupt(jobs.Jobs{job})
			return nil
		},
	}
	watchCommand.Flags().BoolVar(&runNow, "now", true, "Also run once at startup")
	RootCommand.AddCommand(watchCommand)

	datestampCommand := &cobra.Command{
		Use:   "datestamp [unix timestamp]",
		Short: "Print the recap week of a time, or of now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now().Unix()
			if len(args) > 0 {
				var err error
				ts, err = strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return oops.New(err, "bad timestamp %q", args[0])
				}
			}
			ds, err := datestamp.FromTimestamp(ts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", ds, datestamp.Text(ds))
			return nil
		},
	}
	RootCommand.AddCommand(datestampCommand)

	gameCommand := &cobra.Command{
		Use:   "game <id or title>",
		Short: "Print a game and its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, done, err := OpenStore(ctx)
			if err != nil {
				return err
			}
			defer done()

			tx, err := store.Begin(ctx)
			if err != nil {
				return err
			}
			defer tx.Rollback(ctx)

			var game *models.Game
			if id, convErr := strconv.Atoi(args[0]); convErr == nil {
				game, err = tx.GameByID(ctx, id)
			} else {
				game, err = tx.GameByTitle(ctx, args[0])
			}
			if errors.Is(err, ingest.ErrNotFound) {
				return oops.New(err, "no game %q", args[0])
			} else if err != nil {
				return err
			}
			posts, err := tx.PostsByGame(ctx, game.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s\n", game.ID, game.Title)
			for _, key := range models.GameFieldKeys {
				if value, ok := game.Field(key); ok {
					fmt.Fprintf(out, "  %s: %s\n", key, value)
				}
			}
			for _, post := range posts {
				fmt.Fprintf(out, "\n[%d] %s\n", post.Datestamp, time.Unix(post.Unix, 0).UTC().Format(time.DateTime))
				if post.Filename != nil {
					fmt.Fprintf(out, "media: %s\n", *post.Filename)
				}
				fmt.Fprintln(out, post.Progress)
			}
			return nil
		},
	}
	RootCommand.AddCommand(gameCommand)

	seenCommand := &cobra.Command{
		Use:   "seen",
		Short: "Inspect the cache of already classified threads",
	}
	seenCommand.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every thread id in the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, done, err := OpenSeen()
			if err != nil {
				return err
			}
			defer done()

			for _, id := range slices.Sorted(maps.Keys(cache.Load(cmd.Context()))) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})
	seenCommand.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every thread so the next run reads the whole archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, done, err := OpenSeen()
			if err != nil {
				return err
			}
			defer done()
			return cache.Clear(cmd.Context())
		},
	})
	RootCommand.AddCommand(seenCommand)
}
