package cli

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		docs := s.sortedDocuments()
		if len(docs) == 0 {
			cmd.Println("No documents indexed.")
			return nil
		}
		for _, d := range docs {
			cmd.Printf("  %s  %-6s %4d chunks  %s\n", d.ID, d.FileType, d.ChunkCount, d.Filename)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a document from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		id := args[0]
		if _, err := s.lookup(id); err != nil {
			return err
		}
		if err := s.app.Engine.Remove(cmd.Context(), id); err != nil {
			return err
		}
		delete(s.catalog.Documents, id)
		if err := s.save(); err != nil {
			return err
		}
		cmd.Printf("Removed %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
}
