package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/format"
	"github.com/spf13/cobra"
)

func newGetPostCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-post <id>",
		Args:  cobra.ExactArgs(1),
		Short: "Print a mirrored post as plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			doc, err := db.Get(args[0])
			if err != nil {
				return fmt.Errorf("get post: %w", err)
			}
			if doc == nil {
				return fmt.Errorf("%s: %w", args[0], content.ErrNotFound)
			}
			post, err := doc.Post()
			if err != nil {
				return fmt.Errorf("decode post: %w", err)
			}

			writePlain(cmd.OutOrStdout(), post, doc.ReadingMinutes, a.cfg.Site.Location())
			return nil
		},
	}
}

// writePlain prints post as text: a header, then every section heading
// followed by its blocks, one paragraph each.
func writePlain(w io.Writer, post *content.Post, minutes int, loc *time.Location) {
	fmt.Fprintln(w, post.Title)
	if post.Subtitle != "" {
		fmt.Fprintln(w, post.Subtitle)
	}

	date := "rascunho"
	if post.PublishedAt != nil {
		local := post.PublishedAt.In(loc)
		if d, err := format.FormatDate(&local); err == nil {
			date = d
		}
	}
	fmt.Fprintf(w, "%s · %s · %d min\n", date, post.Author, minutes)

	for _, section := range post.Content {
		fmt.Fprintln(w)
		if section.Heading != "" {
			fmt.Fprintf(w, "## %s\n\n", section.Heading)
		}
		for _, block := range section.Body {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			if block.Type == "list-item" || block.Type == "o-list-item" {
				text = "- " + text
			}
			fmt.Fprintln(w, text)
		}
	}
}
