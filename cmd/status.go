package cmd

import (
	"errors"
	"fmt"
	"time"

	"docsmith/internal/store"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the index holds and how the last run went",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("files", false, "list every indexed file")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	counts, err := st.Counts()
	if err != nil {
		return err
	}
	model, err := st.GetMeta(store.MetaEmbeddingModel)
	if err != nil {
		return err
	}
	if model == "" {
		model = "(none)"
	}

	fmt.Fprintf(out, "Index:     %s\n", e.dbPath())
	fmt.Fprintf(out, "Files:     %d\n", counts.Files)
	fmt.Fprintf(out, "Chunks:    %d (%d embedded)\n", counts.Chunks, counts.Vectors)
	fmt.Fprintf(out, "Embedding: %s, %d dimensions\n", model, st.Dim())

	run, err := st.LastRun()
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(out, "Last run:  never")
	case err != nil:
		return err
	default:
		mode := ""
		if run.DryRun {
			mode = " (dry run)"
		}
		fmt.Fprintf(out, "Last run:  %s%s, %s, %d files scanned, %d modified, %d docstrings, %d failures\n",
			run.StartedAt.Local().Format(time.DateTime), mode,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.FilesScanned, run.FilesModified, run.ChunksInjected, run.Failures)
	}

	if list, _ := cmd.Flags().GetBool("files"); !list {
		return nil
	}
	files, err := st.ListFiles()
	if err != nil {
		return err
	}
	data := pterm.TableData{{"path", "language", "lines", "chunks"}}
	for _, f := range files {
		data = append(data, []string{f.Path, f.Language, fmt.Sprint(f.LineCount), fmt.Sprint(f.Chunks)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, table)
	return nil
}
