package tui

import (
	"context"
	"fmt"

	"docsmith/internal/annotator"
	"docsmith/internal/chunker"
	"docsmith/internal/chunker/languages"
	"docsmith/internal/embedder"
	"docsmith/internal/llm"
	"docsmith/internal/logging"
	"docsmith/internal/pipeline"
	"docsmith/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
)

type runningModel struct {
	spinner  spinner.Model
	phase    string
	current  string
	done     int
	total    int
	finished bool
	stats    *pipeline.Stats
	err      error
}

func newRunningModel() runningModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return runningModel{
		spinner: sp,
		phase:   "Scanning files...",
	}
}

// runDoneMsg is sent when the pipeline returns.
type runDoneMsg struct {
	stats *pipeline.Stats
	err   error
}

// runProgressMsg forwards a pipeline event to the program.
type runProgressMsg pipeline.Event

func startRun(ctx context.Context, cfg Config) tea.Cmd {
	return func() tea.Msg {
		stats, err := document(ctx, cfg, func(ev pipeline.Event) {
			cfg.program.send(runProgressMsg(ev))
		})
		return runDoneMsg{stats: stats, err: err}
	}
}

// document builds the pipeline for cfg and runs it over cfg.Root.
func document(ctx context.Context, cfg Config, progress pipeline.ProgressFunc) (*pipeline.Stats, error) {
	log := logging.OrDiscard(cfg.Logger)

	chat, err := llm.New(llm.Config{
		Provider:    cfg.Provider,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.SummaryModel,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	ann, err := annotator.New(chat, annotator.Options{Logger: log})
	if err != nil {
		return nil, err
	}

	var emb embedder.Embedder
	if cfg.Index {
		emb, err = newEmbedder(cfg)
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	d := pipeline.New(pipeline.Config{
		Root:    cfg.Root,
		Workers: cfg.Workers,
		Index:   cfg.Index,
	}, pipeline.Deps{
		Chunker:   chunker.New(languages.Default()),
		Annotator: ann,
		Embedder:  emb,
		Store:     st,
		Fs:        afero.NewOsFs(),
		Logger:    log,
		Progress:  progress,
	})
	return d.Run(ctx)
}

func newEmbedder(cfg Config) (embedder.Embedder, error) {
	return embedder.New(embedder.Config{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.EmbedModel,
	})
}

func (m runningModel) Update(msg tea.Msg) (runningModel, tea.Cmd) {
	switch msg := msg.(type) {
	case runDoneMsg:
		m.finished = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case runProgressMsg:
		switch msg.Stage {
		case pipeline.StageScan:
			m.phase = "Documenting files..."
			m.total = msg.Total
		case pipeline.StageAnnotate:
			m.current = msg.Path
		case pipeline.StageInject, pipeline.StageFail:
			m.done = msg.Done
			m.total = msg.Total
			m.current = msg.Path
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m runningModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Documenting") + "\n\n"

	if m.finished {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter to continue to search anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Documentation complete!") + "\n\n"
		if st := m.stats; st != nil {
			s += fmt.Sprintf("  Files: %d scanned, %d modified, %d unchanged\n",
				st.FilesScanned, st.FilesModified, st.FilesUnchanged)
			s += fmt.Sprintf("  Docstrings: %d inserted, %d skipped\n", st.ChunksInjected, st.ChunksSkipped)
			s += fmt.Sprintf("  Indexed: %d chunks\n", st.ChunksIndexed)
			if st.AnnotationFailures > 0 {
				s += warnStyle.Render(fmt.Sprintf("  %d summaries could not be generated", st.AnnotationFailures)) + "\n"
			}
			if st.IndexDisabled {
				s += warnStyle.Render("  Embedding model unreachable: search index not updated") + "\n"
			}
			for _, f := range st.Failures {
				s += errorStyle.Render("  ✗ "+f.Error()) + "\n"
			}
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to search") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d files\n", m.done, m.total)
	}
	if m.current != "" {
		s += dimStyle.Render("  "+m.current) + "\n"
	}
	s += "\n"
	s += dimStyle.Render("  Each definition is summarised by the model; this may take a while...") + "\n"
	return s
}
