package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/renderinc/spacetraveling/internal/content"
	"github.com/renderinc/spacetraveling/internal/format"
	"github.com/renderinc/spacetraveling/internal/listing"
	"github.com/renderinc/spacetraveling/internal/storage"
	"github.com/spf13/cobra"
)

const noMorePosts = "Não há mais posts"

func newBrowseCommand(a *app) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "browse",
		Args:  cobra.NoArgs,
		Short: "List posts page by page",
		Long: `List the first page of posts. On a terminal, Enter loads the next page
and q quits; otherwise every page is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *storage.DB
			if offline {
				var err error
				if db, err = a.openDB(); err != nil {
					return err
				}
				defer db.Close()
			}
			src := a.source(offline, db)

			first, err := src.FetchPage(cmd.Context(), "")
			if err != nil {
				return err
			}

			b := &browser{
				list: listing.New(src, first),
				loc:  a.cfg.Site.Location(),
				out:  cmd.OutOrStdout(),
			}
			if isTerminal(os.Stdout) && isTerminal(os.Stdin) {
				return b.interactive(cmd.Context(), cmd.InOrStdin())
			}
			return b.all(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "browse the local mirror")

	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// browser prints a listing.List as it grows.
type browser struct {
	list *listing.List
	loc  *time.Location
	out  io.Writer
}

// interactive prints the loaded posts, then one more page per line read
// from in until the list runs out, "q" is read or in ends. A failed page
// is reported and can be retried.
func (b *browser) interactive(ctx context.Context, in io.Reader) error {
	b.print(b.list.Items(), 0)

	lines := bufio.NewScanner(in)
	for b.list.HasMore() {
		fmt.Fprint(b.out, "[Enter] carregar mais posts, [q] sair: ")
		if !lines.Scan() {
			fmt.Fprintln(b.out)
			return lines.Err()
		}
		if strings.EqualFold(strings.TrimSpace(lines.Text()), "q") {
			return nil
		}

		before := b.list.Len()
		outcome, err := b.list.LoadMore(ctx)
		switch outcome {
		case listing.Failed:
			fmt.Fprintf(b.out, "Erro ao carregar posts: %v\n", err)
		case listing.Loaded:
			b.print(b.list.Since(before), before)
		}
	}

	fmt.Fprintln(b.out, noMorePosts)
	return nil
}

// all prints every page.
func (b *browser) all(ctx context.Context) error {
	b.print(b.list.Items(), 0)
	for b.list.HasMore() {
		before := b.list.Len()
		if _, err := b.list.LoadMore(ctx); err != nil {
			return err
		}
		b.print(b.list.Since(before), before)
	}
	return nil
}

func (b *browser) print(posts []content.PostSummary, offset int) {
	for i, p := range posts {
		date := "rascunho"
		if p.PublishedAt != nil {
			local := p.PublishedAt.In(b.loc)
			if d, err := format.FormatDate(&local); err == nil {
				date = d
			}
		}
		fmt.Fprintf(b.out, "%3d. %s\n", offset+i+1, p.Title)
		if p.Subtitle != "" {
			fmt.Fprintf(b.out, "     %s\n", p.Subtitle)
		}
		fmt.Fprintf(b.out, "     %s · %s · %s\n", date, p.Author, p.ID)
	}
}
