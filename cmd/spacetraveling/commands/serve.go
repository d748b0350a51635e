package commands

import (
	"github.com/renderinc/spacetraveling/internal/search"
	"github.com/renderinc/spacetraveling/internal/web"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		offline   bool
		rateLimit float64
		burst     int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Serve the blog over HTTP",
		Long: `Serve the home page, post pages, the feed and the JSON API. Pages are
cached and revalidated after cache.home_ttl and cache.post_ttl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := a.renderer()
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			// Search is optional: a locked or broken index only disables it.
			var idx *search.Index
			if i, err := a.openIndex(); err != nil {
				a.log.WithError(err).Warn("search disabled")
			} else {
				idx = i
				defer idx.Close()
			}

			srv := web.NewServer(a.source(offline, db), renderer, db, idx, web.Options{
				HomeTTL:       a.cfg.Cache.HomeTTL,
				PostTTL:       a.cfg.Cache.PostTTL,
				WebhookSecret: a.cfg.Prismic.WebhookSecret,
				RateLimit:     rateLimit,
				Burst:         burst,
				Log:           a.log,
			})
			a.log.WithField("url", "http://"+a.cfg.HTTP.Addr()).Info("starting server")
			return srv.Run(cmd.Context(), a.cfg.HTTP.Addr())
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "serve from the local mirror")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 10, "API requests per second (0 disables)")
	cmd.Flags().IntVar(&burst, "burst", 20, "API request burst")

	return cmd
}
