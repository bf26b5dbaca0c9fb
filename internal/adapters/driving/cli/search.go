package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
)

var (
	searchTimeout time.Duration
	searchAll     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search every source",
	Long: `Sends the query to every loaded source that supports search.

Sources report as they answer. Sources that fail or find nothing are
listed separately from those with results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().DurationVarP(&searchTimeout, "timeout", "t", 30*time.Second, "give up on sources slower than this")
	searchCmd.Flags().BoolVarP(&searchAll, "all", "a", false, "also list sources without results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if searchAggregator == nil {
		return errors.New("search aggregator not configured")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), searchTimeout)
	defer cancel()

	var (
		last     domain.SearchSnapshot
		reported = make(map[int64]bool)
	)
	for snap := range searchAggregator.Search(ctx, query) {
		last = snap
		for _, item := range snap.WithResult {
			if !reported[item.Source.ID] {
				reported[item.Source.ID] = true
				cmd.PrintErrf("%s: %d results\n", item.Source.Name, len(item.Results))
			}
		}
		for _, item := range snap.NoResult {
			if !reported[item.Source.ID] {
				reported[item.Source.ID] = true
				cmd.PrintErrf("%s: no results\n", item.Source.Name)
			}
		}
	}
	if !last.Done() {
		searchAggregator.Cancel()
		for _, item := range last.InProgress {
			cmd.PrintErrf("%s: timed out\n", item.Source.Name)
		}
	}

	return outputSearch(cmd, last)
}

func outputSearch(cmd *cobra.Command, snap domain.SearchSnapshot) error {
	if snap.ResultCount() == 0 {
		cmd.Println("No results found.")
	} else {
		cmd.Println("Results:")
		cmd.Println()
		rows := make([][]string, 0, snap.ResultCount())
		for _, item := range snap.WithResult {
			for _, b := range item.Results {
				rows = append(rows, []string{
					item.Source.Name, strconv.FormatInt(item.Source.ID, 10), truncate(b.Title, 50), truncate(b.Author, 24), b.Key,
				})
			}
		}
		cmd.Println(renderTable(cmd.OutOrStdout(), []string{"Source", "Source ID", "Title", "Author", "Key"}, rows))
	}

	if searchAll && len(snap.NoResult) > 0 {
		cmd.Println()
		cmd.Println("Without results:")
		for _, item := range snap.NoResult {
			line := "  " + item.Source.Name
			if item.Err != "" {
				line += " (" + paint(cmd.OutOrStdout(), errorStyle, item.Err) + ")"
			}
			cmd.Println(line)
		}
	}
	return nil
}
