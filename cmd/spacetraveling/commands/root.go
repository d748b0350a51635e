// Package commands implements the spacetraveling command line.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "spacetraveling",
		Short: "Blog front-end over a Prismic repository",
		Long: `spacetraveling mirrors posts from a Prismic repository, serves them over
HTTP, and builds them into a static site with a "load more" home page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory of the local mirror (overrides data.dir)")

	rootCmd.AddCommand(
		newSyncCommand(a),
		newBuildCommand(a),
		newServeCommand(a),
		newBrowseCommand(a),
		newSearchCommand(a),
		newStatsCommand(a),
		newReindexCommand(a),
		newGetPostCommand(a),
	)

	return rootCmd
}
