package commands

import (
	"fmt"
	"strings"

	"github.com/renderinc/spacetraveling/internal/render"
	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Args:  cobra.MinimumNArgs(1),
		Short: "Search the local mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			results, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found")
				return nil
			}

			fmt.Fprintf(out, "\nFound %d results:\n\n", len(results))
			for i, result := range results {
				fmt.Fprintf(out, "%d. %s\n", i+1, result.Title)
				if result.Author != "" {
					fmt.Fprintf(out, "   Author: %s\n", result.Author)
				}
				fmt.Fprintf(out, "   URL: %s\n", strings.TrimSuffix(a.cfg.Site.URL, "/")+render.PostURL(result.ID))
				fmt.Fprintf(out, "   Score: %.3f\n", result.Score)
				if snippets, ok := result.Fragments["Content"]; ok && len(snippets) > 0 {
					fmt.Fprintf(out, "   Preview: %s\n", snippets[0])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")

	return cmd
}
