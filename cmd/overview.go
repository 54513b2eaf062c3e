package cmd

import (
	"errors"
	"fmt"
	"os"

	"docsmith/internal/pipeline"
	"docsmith/internal/store"

	"github.com/spf13/cobra"
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Write a project overview synthesised from the indexed summaries",
	RunE:  runOverview,
}

func init() {
	rootCmd.AddCommand(overviewCmd)
}

func runOverview(cmd *cobra.Command, args []string) error {
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

	chat, err := e.chat()
	if err != nil {
		return err
	}

	e.log.Info("generating overview", "model", chat.Model())
	text, err := pipeline.Overview(cmd.Context(), chat, st)
	if errors.Is(err, store.ErrIndexEmpty) {
		return fmt.Errorf("nothing indexed yet; run 'docsmith document' first")
	}
	if err != nil {
		return err
	}

	path := e.overviewPath()
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write overview: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Overview written to %s\n", path)
	return nil
}
