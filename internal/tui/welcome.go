package tui

import (
	"errors"
	"fmt"
	"os"
	"time"

	"docsmith/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type indexStatus int

const (
	indexNotFound indexStatus = iota
	indexReady
	indexStale
)

type welcomeModel struct {
	status      indexStatus
	staleReason string
	lastRun     string
	ready       bool // true once the check has completed
}

// checkIndexMsg is sent after checking the index status.
type checkIndexMsg struct {
	status      indexStatus
	staleReason string
	lastRun     string
	err         error
}

func checkIndex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return checkIndexMsg{status: indexNotFound}
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return checkIndexMsg{status: indexNotFound, err: err}
		}
		defer st.Close()

		msg := checkIndexMsg{status: indexReady}
		run, err := st.LastRun()
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return checkIndexMsg{status: indexNotFound, err: err}
		default:
			msg.lastRun = fmt.Sprintf("last run %s: %d files modified, %d docstrings inserted",
				run.StartedAt.Local().Format(time.DateTime), run.FilesModified, run.ChunksInjected)
		}

		lastModel, err := st.GetMeta(store.MetaEmbeddingModel)
		if err != nil || lastModel == "" {
			msg.status = indexNotFound
			return msg
		}
		if lastModel != cfg.EmbedModel {
			msg.status = indexStale
			msg.staleReason = fmt.Sprintf("embedding model changed: %s → %s", lastModel, cfg.EmbedModel)
		}
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkIndexMsg:
		m.status = msg.status
		m.staleReason = msg.staleReason
		m.lastRun = msg.lastRun
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ docsmith") + "\n"
	s += subtitleStyle.Render("  Docstrings written by a local LLM, searchable by meaning") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	}

	switch m.status {
	case indexReady:
		s += successStyle.Render("  ✓ Index ready") + "\n"
	case indexNotFound:
		s += warnStyle.Render("  ✗ No search index yet") + "\n"
	case indexStale:
		s += warnStyle.Render("  ⚠ Index stale") + "\n"
		s += dimStyle.Render("    "+m.staleReason) + "\n"
	}
	if m.lastRun != "" {
		s += dimStyle.Render("    "+m.lastRun) + "\n"
	}

	s += "\n"
	if m.status == indexReady {
		s += dimStyle.Render("  Enter to search • d to document again • q to quit") + "\n"
	} else {
		s += dimStyle.Render("  Enter to document the project • q to quit") + "\n"
	}
	return s
}
