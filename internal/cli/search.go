package cli

import (
	"encoding/json"
	"fmt"

	"pythagorean/internal/models"
	"pythagorean/internal/util"

	"github.com/spf13/cobra"
)

var (
	searchDoc   string
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Show the chunks of a document closest to a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchDoc, "doc", "", "document id to search")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 3, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	_ = searchCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if _, err := s.lookup(searchDoc); err != nil {
		return err
	}
	results, err := s.app.Engine.Query(ctx, searchDoc, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []models.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, r := range results {
		cmd.Printf("  [%d] chunk %d (%.3f)\n", i+1, r.Position, r.Score)
		cmd.Printf("      %s\n", util.Snippet(r.Text, 160))
	}
}
