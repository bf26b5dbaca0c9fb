package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

var sourcePage int

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Browse a source",
	Long: `Browse listings, book details and chapters of one source.

Sources are addressed by the id shown in 'tomes source list'.`,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded sources",
	RunE:  runSourceList,
}

var sourcePopularCmd = &cobra.Command{
	Use:   "popular [source-id]",
	Short: "Show the popular listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, args[0], domain.ListingRequest{Kind: domain.ListingPopular, Page: sourcePage})
	},
}

var sourceLatestCmd = &cobra.Command{
	Use:   "latest [source-id]",
	Short: "Show the latest updates listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, args[0], domain.ListingRequest{Kind: domain.ListingLatest, Page: sourcePage})
	},
}

var sourceSearchCmd = &cobra.Command{
	Use:   "search [source-id] [query]",
	Short: "Search one source",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := domain.ListingRequest{Kind: domain.ListingSearch, Page: sourcePage, Query: strings.Join(args[1:], " ")}
		return runListing(cmd, args[0], req)
	},
}

var sourceDetailCmd = &cobra.Command{
	Use:   "detail [source-id] [book-key]",
	Short: "Show a book's details",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourceDetail,
}

var sourceChaptersCmd = &cobra.Command{
	Use:   "chapters [source-id] [book-key]",
	Short: "List a book's chapters",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourceChapters,
}

var sourceContentCmd = &cobra.Command{
	Use:   "content [source-id] [chapter-key]",
	Short: "Print a chapter's text",
	Args:  cobra.ExactArgs(2),
	RunE:  runSourceContent,
}

func init() {
	for _, c := range []*cobra.Command{sourcePopularCmd, sourceLatestCmd, sourceSearchCmd} {
		c.Flags().IntVarP(&sourcePage, "page", "p", 1, "page number")
	}
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourcePopularCmd)
	sourceCmd.AddCommand(sourceLatestCmd)
	sourceCmd.AddCommand(sourceSearchCmd)
	sourceCmd.AddCommand(sourceDetailCmd)
	sourceCmd.AddCommand(sourceChaptersCmd)
	sourceCmd.AddCommand(sourceContentCmd)
	rootCmd.AddCommand(sourceCmd)
}

func parseSourceID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid source id %q: %w", arg, domain.ErrInvalidInput)
	}
	return id, nil
}

// await returns the terminal result of a browse stream.
func await[T any](ctx context.Context, ch <-chan domain.Result[T]) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return zero, errors.New("stream closed without a result")
			}
			if r.State != domain.ResultLoading {
				return r.Get()
			}
		}
	}
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if catalogManager == nil {
		return errors.New("catalog manager not configured")
	}

	sources := catalogManager.Sources()
	if len(sources) == 0 {
		cmd.Println("No sources loaded.")
		return nil
	}
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		d := src.Descriptor()
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10), d.Name, d.Lang, strconv.Itoa(d.Version), capabilities(d.Capabilities), d.BaseURL,
		})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Lang", "Version", "Capabilities", "URL"}, rows))
	return nil
}

func capabilities(c domain.Capabilities) string {
	var caps []string
	if c.Popular {
		caps = append(caps, "popular")
	}
	if c.Latest {
		caps = append(caps, "latest")
	}
	if c.Search {
		caps = append(caps, "search")
	}
	if c.Filters {
		caps = append(caps, "filters")
	}
	return strings.Join(caps, ",")
}

func runListing(cmd *cobra.Command, arg string, req domain.ListingRequest) error {
	if browseService == nil {
		return errors.New("browse service not configured")
	}
	id, err := parseSourceID(arg)
	if err != nil {
		return err
	}

	page, err := await(cmd.Context(), browseService.Listing(cmd.Context(), id, req))
	if err != nil {
		return fmt.Errorf("%s listing failed: %w", req.Kind, err)
	}
	if len(page.Books) == 0 {
		cmd.Println("No books found.")
		return nil
	}

	rows := make([][]string, 0, len(page.Books))
	for i, b := range page.Books {
		rows = append(rows, []string{strconv.Itoa(i + 1), truncate(b.Title, 50), truncate(b.Author, 24), b.Key})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(), []string{"#", "Title", "Author", "Key"}, rows))
	if page.HasNextPage {
		cmd.Println(paint(cmd.OutOrStdout(), mutedStyle, fmt.Sprintf("More results: --page %d", max(req.Page, 1)+1)))
	}
	return nil
}

func runSourceDetail(cmd *cobra.Command, args []string) error {
	if browseService == nil {
		return errors.New("browse service not configured")
	}
	id, err := parseSourceID(args[0])
	if err != nil {
		return err
	}

	book, err := await(cmd.Context(), browseService.Detail(cmd.Context(), id, domain.BookSummary{Key: args[1]}))
	if err != nil {
		return fmt.Errorf("detail failed: %w", err)
	}

	cmd.Println(book.Title)
	cmd.Println(strings.Repeat("=", len([]rune(book.Title))))
	if book.Author != "" {
		cmd.Printf("Author: %s\n", book.Author)
	}
	cmd.Printf("Status: %s\n", book.Status)
	if len(book.Genres) > 0 {
		cmd.Printf("Genres: %s\n", strings.Join(book.Genres, ", "))
	}
	if book.Description != "" {
		cmd.Println()
		cmd.Println(book.Description)
	}
	return nil
}

func runSourceChapters(cmd *cobra.Command, args []string) error {
	if browseService == nil {
		return errors.New("browse service not configured")
	}
	id, err := parseSourceID(args[0])
	if err != nil {
		return err
	}

	chapters, err := await(cmd.Context(), browseService.Chapters(cmd.Context(), id, domain.BookSummary{Key: args[1]}))
	if err != nil {
		return fmt.Errorf("chapter list failed: %w", err)
	}
	if len(chapters) == 0 {
		cmd.Println("No chapters found.")
		return nil
	}

	rows := make([][]string, 0, len(chapters))
	for _, c := range chapters {
		num := ""
		if c.Number != nil {
			num = strconv.FormatFloat(*c.Number, 'f', -1, 64)
		}
		rows = append(rows, []string{num, truncate(c.Title, 60), c.Key})
	}
	cmd.Println(renderTable(cmd.OutOrStdout(), []string{"No.", "Title", "Key"}, rows))
	return nil
}

func runSourceContent(cmd *cobra.Command, args []string) error {
	if browseService == nil {
		return errors.New("browse service not configured")
	}
	id, err := parseSourceID(args[0])
	if err != nil {
		return err
	}

	page, err := await(cmd.Context(), browseService.Content(cmd.Context(), id, domain.ChapterSummary{Key: args[1]}))
	if err != nil {
		return fmt.Errorf("content failed: %w", err)
	}
	cmd.Println(page.Text())
	return nil
}
