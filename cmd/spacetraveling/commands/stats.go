package commands

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Args:  cobra.NoArgs,
		Short: "Show mirror statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			dbCount, err := db.Count()
			if err != nil {
				return fmt.Errorf("count posts: %w", err)
			}
			indexCount, err := idx.Count()
			if err != nil {
				return fmt.Errorf("count index: %w", err)
			}
			last, err := db.LastSynced()
			if err != nil {
				return fmt.Errorf("last sync: %w", err)
			}

			lastSync := "never"
			if last != nil {
				lastSync = humanize.Time(*last)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Mirror Statistics ===")
			fmt.Fprintf(out, "Posts in database: %s\n", humanize.Comma(int64(dbCount)))
			fmt.Fprintf(out, "Posts in index:    %s\n", humanize.Comma(int64(indexCount)))
			fmt.Fprintf(out, "Last sync:         %s\n", lastSync)
			fmt.Fprintf(out, "Database size:     %s\n", humanize.Bytes(diskUsage(a.cfg.Data.DBPath())))
			fmt.Fprintf(out, "Index size:        %s\n", humanize.Bytes(diskUsage(a.cfg.Data.IndexPath())))
			return nil
		},
	}
}

// diskUsage sums the sizes of the regular files at or under path.
func diskUsage(path string) uint64 {
	var total uint64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
