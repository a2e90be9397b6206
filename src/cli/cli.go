/*
Package cli holds the root `recap` command and the helpers subcommands share.
Packages that add commands register them on RootCommand in an init function,
and main blank-imports them.
*/
package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcadamson/recap.agdg.app/src/board"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/db"
	"github.com/tcadamson/recap.agdg.app/src/ingest"
	"github.com/tcadamson/recap.agdg.app/src/jobs"
	"github.com/tcadamson/recap.agdg.app/src/localdb"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/media"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/recapdata"
	"github.com/tcadamson/recap.agdg.app/src/seen"
)

var RootCommand = &cobra.Command{
	Use:           "recap",
	Short:         "Collect weekly game dev recaps from the board",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		logging.Configure(config.Config.LogLevel, config.Config.LogFormat)
		return nil
	},
}

// Execute runs the root command and exits non-zero if it fails.
func Execute() {
	if err := RootCommand.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

/*
WaitForInterrupt blocks until every job finishes or the process gets a SIGINT.
The first SIGINT cancels the jobs and waits for them to shut down; a second one
quits immediately.
*/
func WaitForInterrupt(running jobs.Jobs) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)

	allDone := make(chan struct{})
	go func() {
		for _, job := range running {
			<-job.Finished()
		}
		close(allDone)
	}()

	select {
	case <-allDone:
		return
	case <-signals:
	}
	logging.Info().Msg("Shutting down background jobs...")

	go func() {
		<-signals
		logging.Warn().Strs("Unfinished background jobs", running.ListUnfinished()).Msg("Forcibly killed")
		os.Exit(1)
	}()

	unfinished := running.CancelAndWait(10 * time.Second)
	if len(unfinished) == 0 {
		logging.Info().Msg("Background jobs closed gracefully")
	} else {
		logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
	}
}

// OpenStore opens the store named by the config. Call the returned function
// when done with it.
func OpenStore(ctx context.Context) (ingest.Store, func(), error) {
	switch config.Config.Store.Kind {
	case config.StorePostgres:
		pool, err := db.NewConnPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return recapdata.NewStore(pool), pool.Close, nil
	case config.StoreSQLite, "":
		store, err := localdb.Open(ctx, config.Config.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, oops.New(nil, "unknown store kind %q", config.Config.Store.Kind)
	}
}

// OpenSeen builds the seen-thread cache named by the config.
func OpenSeen() (*seen.Cache, func(), error) {
	backend, err := seen.NewBackend(config.Config.Seen)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}
	if c, ok := backend.(interface{ Close() error }); ok {
		closer = func() { c.Close() }
	}
	return seen.New(backend), closer, nil
}

// NewPipeline wires a pipeline from the config. The returned function
// releases the store and the seen cache. A media mirror that fails to start
// is logged and left out.
func NewPipeline(ctx context.Context) (*ingest.Pipeline, func(), error) {
	store, closeStore, err := OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cache, closeSeen, err := OpenSeen()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	client := board.NewClient(config.Config.Board)
	mirror := newMirror(ctx, config.Config.Media, client)

	p := ingest.NewPipeline(client, store, cache, mirror, config.Config.Subject)
	return p, func() {
		closeSeen()
		closeStore()
	}, nil
}

// newMirror builds the media mirror, or returns nil if it can't. Recaps are
// still collected without one.
func newMirror(ctx context.Context, cfg config.MediaConfig, client *board.Client) ingest.Mirror {
	mirror, err := media.New(ctx, cfg, client)
	if err != nil {
		logging.ExtractLogger(ctx).Error().Err(err).Msg("media storage unavailable; attachments will not be mirrored")
		return nil
	}
	return mirror
}
