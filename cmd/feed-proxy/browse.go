package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/feedcache/pkg/feed"
	"github.com/Sternrassler/feedcache/pkg/pagination"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type browseOptions struct {
	pages      int
	category   int
	search     string
	categories bool
}

func newBrowseCmd(a *app) *cobra.Command {
	opts := browseOptions{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Load pages of the feed and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.category > 0 && opts.search != "" {
				return fmt.Errorf("--category and --search are mutually exclusive")
			}
			if opts.pages < 1 {
				return fmt.Errorf("--pages must be >= 1 (got %d)", opts.pages)
			}
			return a.browse(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.pages, "pages", "n", 1, "number of pages to load")
	cmd.Flags().IntVar(&opts.category, "category", 0, "only items of this category id")
	cmd.Flags().StringVar(&opts.search, "search", "", "only items matching this query")
	cmd.Flags().BoolVar(&opts.categories, "categories", false, "list categories instead of items")
	return cmd
}

func (a *app) browse(ctx context.Context, out io.Writer, opts browseOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := a.build()
	if err != nil {
		return err
	}
	defer c.controller.Close()

	if opts.categories {
		cats, err := c.controller.Categories(ctx, false)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		for _, cat := range cats {
			fmt.Fprintf(out, "%6d  %-24s %s items\n", cat.ID, cat.Name, humanize.Comma(int64(cat.ItemCount)))
		}
		return nil
	}

	filter := feed.NoFilter()
	switch {
	case opts.category > 0:
		filter = feed.CategoryFilter(opts.category)
	case opts.search != "":
		filter = feed.SearchFilter(opts.search)
	}

	if err := c.controller.LoadFirstPage(ctx, filter, false); err != nil {
		return fmt.Errorf("load first page: %w", err)
	}
	for page := 2; page <= opts.pages; page++ {
		if !c.controller.Snapshot().CanLoadMore {
			break
		}
		if err := c.controller.LoadMore(ctx); err != nil {
			return fmt.Errorf("load page %d: %w", page, err)
		}
	}
	c.controller.Wait()

	printState(out, c.controller.Snapshot())

	stats := c.cache.Stats()
	fmt.Fprintf(out, "\ncache: %d responses (%s), %d assets (%s)\n",
		stats.ResponseEntries, humanize.IBytes(uint64(stats.ResponseBytes)),
		stats.AssetEntries, humanize.IBytes(uint64(stats.AssetBytes)))
	return nil
}

func printState(out io.Writer, state pagination.State) {
	fmt.Fprintf(out, "filter %s, page %d, %d items", state.Filter, state.CurrentPage, len(state.Items))
	if !state.CanLoadMore {
		fmt.Fprint(out, " (end of feed)")
	}
	fmt.Fprintln(out)

	for _, item := range state.Items {
		thumb := "-"
		if url, ok := state.AuxURLs[item.ID]; ok {
			thumb = url
		}
		fmt.Fprintf(out, "%6d  %-20s %s\n        thumbnail: %s\n", item.ID, item.PublishedAt, item.Title, thumb)
	}
}
