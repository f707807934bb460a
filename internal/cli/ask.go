package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askDocs string
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from one or more indexed documents",
	Long: `Retrieves the most relevant chunks of the given documents and asks the
configured language model to answer from them. Pass several ids separated by
commas to ask across documents.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDocs, "doc", "", "comma separated document ids")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	_ = askCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(askCmd)
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	ids := splitIDs(askDocs)
	for _, id := range ids {
		if _, err := s.lookup(id); err != nil {
			return err
		}
	}
	ans, err := s.app.RAG.Answer(ctx, ids, args[0], nil)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if askJSON {
		return outputJSON(cmd, ans)
	}
	cmd.Println(ans.Text)
	if len(ans.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, src := range ans.Sources {
			cmd.Printf("  [%d] %s\n", i+1, src)
		}
	}
	return nil
}
