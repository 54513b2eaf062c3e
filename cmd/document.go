package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"docsmith/internal/chunker"
	"docsmith/internal/chunker/languages"
	"docsmith/internal/embedder"
	"docsmith/internal/pipeline"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document [path]",
	Short: "Summarise every Python definition and insert the summaries as docstrings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocument,
}

func init() {
	f := documentCmd.Flags()
	f.Bool("dry-run", false, "show the docstrings that would be inserted without writing files")
	f.Bool("force", false, "reprocess files whose content has not changed since the last run")
	f.Bool("index", true, "embed documented chunks into the search index")
	f.Bool("index-other-languages", false, "also index Go, JavaScript, TypeScript and Java sources")
	f.Bool("inject-placeholders", false, "insert a placeholder docstring when a summary cannot be generated")
	f.StringSlice("ext", nil, "file extensions to scan (default: all supported)")
	f.StringSlice("exclude", nil, "directory names to skip in addition to the default or configured list")
	f.IntP("workers", "w", 0, "parallel workers (default: number of CPUs)")
	rootCmd.AddCommand(documentCmd)
}

func runDocument(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, args)
	if err != nil {
		return err
	}
	if info, err := os.Stat(e.root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", e.root)
	}
	cmd.SilenceUsage = true

	ann, err := e.annotator()
	if err != nil {
		return err
	}
	st, err := e.openStore(false)
	if err != nil {
		return err
	}
	defer st.Close()

	var emb embedder.Embedder
	if e.cfg.Index {
		if emb, err = e.embedder(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	d := pipeline.New(pipeline.Config{
		Root:                e.root,
		Extensions:          e.cfg.Extensions,
		ExcludeDirs:         e.cfg.ExcludeDirs,
		ExtraExcludeDirs:    e.cfg.ExtraExcludeDirs,
		Workers:             e.cfg.Workers,
		Index:               e.cfg.Index,
		IndexOtherLanguages: e.cfg.IndexOtherLanguages,
		InjectPlaceholders:  e.cfg.InjectPlaceholders,
		DryRun:              e.cfg.DryRun,
		Force:               e.cfg.Force,
	}, pipeline.Deps{
		Chunker:   chunker.New(languages.Default()),
		Annotator: ann,
		Embedder:  emb,
		Store:     st,
		Fs:        afero.NewOsFs(),
		Logger:    e.log,
		Progress:  logProgress(e),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Documenting %s...\n", e.root)
	stats, err := d.Run(ctx)
	if stats != nil {
		if stats.DryRun {
			printPreviews(out, stats)
		}
		printStats(out, stats)
	}
	if err != nil {
		return err
	}
	if n := len(stats.Failures); n > 0 {
		return fmt.Errorf("%d file(s) failed", n)
	}
	return nil
}

func logProgress(e *env) pipeline.ProgressFunc {
	return func(ev pipeline.Event) {
		switch ev.Stage {
		case pipeline.StageInject:
			e.log.Info("documented", "path", ev.Path, "progress", fmt.Sprintf("%d/%d", ev.Done, ev.Total), "result", ev.Message)
		case pipeline.StageDone, pipeline.StageFail:
			// Failures are already logged by the pipeline.
		default:
			e.log.Debug(ev.Stage, "path", ev.Path, "chunk", ev.ChunkID, "msg", ev.Message)
		}
	}
}

func printPreviews(w io.Writer, stats *pipeline.Stats) {
	for _, p := range stats.Previews {
		if p.Diff == "" {
			continue
		}
		fmt.Fprintln(w, p.Diff)
	}
}

func printStats(w io.Writer, stats *pipeline.Stats) {
	title := "Done"
	if stats.DryRun {
		title = "Dry run finished"
	}
	fmt.Fprintf(w, "\n%s in %s\n", title, stats.Duration.Round(time.Millisecond))

	data := pterm.TableData{
		{"", "count"},
		{"files scanned", fmt.Sprint(stats.FilesScanned)},
		{"files unchanged", fmt.Sprint(stats.FilesUnchanged)},
		{"files processed", fmt.Sprint(stats.FilesProcessed)},
		{"files modified", fmt.Sprint(stats.FilesModified)},
		{"parse failures", fmt.Sprint(stats.ParseFailures)},
		{"chunks", fmt.Sprint(stats.ChunksTotal)},
		{"docstrings inserted", fmt.Sprint(stats.ChunksInjected)},
		{"chunks skipped", fmt.Sprint(stats.ChunksSkipped)},
		{"summary failures", fmt.Sprint(stats.AnnotationFailures)},
		{"chunks indexed", fmt.Sprint(stats.ChunksIndexed)},
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err == nil {
		fmt.Fprintln(w, table)
	}

	if stats.IndexDisabled {
		fmt.Fprintln(w, "Indexing was disabled: the embedding model could not be reached.")
	}
	for _, f := range stats.Failures {
		fmt.Fprintf(w, "  failed: %s\n", f.Error())
	}
}
