package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/renderinc/spacetraveling/internal/sync"
	"github.com/spf13/cobra"
)

func newSyncCommand(a *app) *cobra.Command {
	var (
		maxPosts    int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Args:  cobra.NoArgs,
		Short: "Mirror posts from Prismic into the local database and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := a.lockMirror()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			opts := sync.Options{
				Concurrency:    a.cfg.Sync.Concurrency,
				MaxPosts:       a.cfg.Sync.MaxPosts,
				WordsPerMinute: a.cfg.Reading.WordsPerMinute,
			}
			if cmd.Flags().Changed("max-posts") {
				opts.MaxPosts = maxPosts
			}
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}

			worker := sync.NewWorker(a.remoteSource(), db, idx, a.log, opts)
			stats, err := worker.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintln(out, "=== Sync Complete ===")
			fmt.Fprintf(out, "Total posts:   %s\n", humanize.Comma(int64(stats.TotalPosts)))
			fmt.Fprintf(out, "New:           %s\n", humanize.Comma(int64(stats.NewPosts)))
			fmt.Fprintf(out, "Updated:       %s\n", humanize.Comma(int64(stats.UpdatedPosts)))
			fmt.Fprintf(out, "Skipped:       %s\n", humanize.Comma(int64(stats.SkippedPosts)))
			fmt.Fprintf(out, "Deleted:       %s\n", humanize.Comma(int64(stats.DeletedPosts)))
			fmt.Fprintf(out, "Errors:        %d\n", stats.Errors)
			fmt.Fprintf(out, "Duration:      %v\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPosts, "max-posts", 0, "stop after this many posts (0 = unlimited)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "posts fetched in parallel")

	return cmd
}
