package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/renderinc/spacetraveling/internal/search"
	"github.com/spf13/cobra"
)

func newReindexCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Args:  cobra.NoArgs,
		Short: "Rebuild the search index from the local database",
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

			indexPath := a.cfg.Data.IndexPath()
			if err := os.RemoveAll(indexPath); err != nil {
				return fmt.Errorf("remove old index: %w", err)
			}
			idx, err := search.Open(indexPath)
			if err != nil {
				return fmt.Errorf("create index: %w", err)
			}
			defer idx.Close()

			out := cmd.OutOrStdout()
			start := time.Now()
			err = idx.Rebuild(db, func(done, total int) {
				if done%100 == 0 || done == total {
					fmt.Fprintf(out, "\rIndexed %d/%d posts", done, total)
				}
			})
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}

			count, err := idx.Count()
			if err != nil {
				return fmt.Errorf("count index: %w", err)
			}
			fmt.Fprintf(out, "Reindexed %d posts in %v\n", count, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
