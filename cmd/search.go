package cmd

import (
	"errors"
	"fmt"
	"strings"

	"docsmith/internal/search"
	"docsmith/internal/store"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the chunks whose summaries best match a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("k", search.DefaultK, "number of results")
	searchCmd.Flags().Bool("raw", false, "print markdown without terminal styling")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, nil)
	if err != nil {
		return err
	}
	st, err := e.openStore(true)
	if err != nil {
		return err
	}
	defer st.Close()
	cmd.SilenceUsage = true

	emb, err := e.embedder()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	results, err := search.Retrieve(cmd.Context(), query, st, emb, e.cfg.SearchK)
	if errors.Is(err, store.ErrIndexEmpty) {
		fmt.Fprintln(cmd.OutOrStdout(), "The index has no embeddings yet. Run 'docsmith document' with indexing enabled.")
		return nil
	}
	if err != nil {
		return err
	}

	md := search.Markdown(query, results)
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	rendered, err := r.Render(md)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
