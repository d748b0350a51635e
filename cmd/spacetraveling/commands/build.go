package commands

import (
	"fmt"
	"time"

	"github.com/renderinc/spacetraveling/internal/site"
	"github.com/renderinc/spacetraveling/internal/storage"
	"github.com/spf13/cobra"
)

func newBuildCommand(a *app) *cobra.Command {
	var (
		outDir      string
		offline     bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Args:  cobra.NoArgs,
		Short: "Generate the static site",
		Long: `Generate index.html, the load more pages under posts/, one page per
post, feed.xml and 404.html. With --offline the local mirror is read
instead of Prismic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := a.renderer()
			if err != nil {
				return err
			}

			var db *storage.DB
			if offline {
				if db, err = a.openDB(); err != nil {
					return err
				}
				defer db.Close()
			}

			if outDir == "" {
				outDir = a.cfg.Build.OutDir
			}
			b := &site.Builder{
				Source:      a.source(offline, db),
				Renderer:    renderer,
				OutDir:      outDir,
				Concurrency: concurrency,
				Log:         a.log,
			}
			res, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Built %d posts and %d listing pages into %s in %v\n",
				res.Posts, res.Pages, outDir, res.Duration.Round(time.Millisecond))
			if res.Skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d posts with unusable ids\n", res.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (overrides build.out_dir)")
	cmd.Flags().BoolVar(&offline, "offline", false, "build from the local mirror")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "post pages rendered in parallel")

	return cmd
}
