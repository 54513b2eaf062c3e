package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

type setupPage int

const (
	setupPageEmbed setupPage = iota
	setupPageSummary
)

type setupModel struct {
	models        []OllamaModel
	embedModels   []OllamaModel
	summaryModels []OllamaModel
	embedCursor   int
	summaryCursor int
	page          setupPage
	loaded        bool
	err           error
}

func newSetupModel(index bool) setupModel {
	m := setupModel{page: setupPageEmbed}
	if !index {
		m.page = setupPageSummary
	}
	return m
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []OllamaModel
	err    error
}

func fetchModels(ctx context.Context, baseURL string) tea.Cmd {
	return func() tea.Msg {
		models, err := ListModels(ctx, baseURL)
		return fetchModelsMsg{models: models, err: err}
	}
}

func (m setupModel) Update(msg tea.Msg, cfg Config) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.models = msg.models

		for _, model := range msg.models {
			if isEmbeddingModel(model.Name) {
				m.embedModels = append(m.embedModels, model)
			} else {
				m.summaryModels = append(m.summaryModels, model)
			}
		}

		// Fallback: if either list is empty, show all.
		if len(m.embedModels) == 0 {
			m.embedModels = msg.models
		}
		if len(m.summaryModels) == 0 {
			m.summaryModels = msg.models
		}

		m.embedCursor = indexOf(m.embedModels, cfg.EmbedModel)
		m.summaryCursor = indexOf(m.summaryModels, cfg.SummaryModel)

	case tea.KeyMsg:
		if !m.loaded || m.err != nil {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.page == setupPageEmbed && m.embedCursor > 0 {
				m.embedCursor--
			} else if m.page == setupPageSummary && m.summaryCursor > 0 {
				m.summaryCursor--
			}
		case "down", "j":
			if m.page == setupPageEmbed && m.embedCursor < len(m.embedModels)-1 {
				m.embedCursor++
			} else if m.page == setupPageSummary && m.summaryCursor < len(m.summaryModels)-1 {
				m.summaryCursor++
			}
		}
	}
	return m, nil
}

func indexOf(models []OllamaModel, name string) int {
	for i, model := range models {
		if model.Name == name {
			return i
		}
	}
	return 0
}

// advancePage moves from the embedding page to the summary page. Returns true
// if it advanced.
func (m *setupModel) advancePage() bool {
	if m.page == setupPageEmbed {
		m.page = setupPageSummary
		return true
	}
	return false
}

func (m setupModel) View(width, height int) string {
	s := "\n"

	if !m.loaded {
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += dimStyle.Render("  Fetching models from Ollama...") + "\n"
		return s
	}

	if m.err != nil {
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += dimStyle.Render("  Make sure Ollama is running and try again.") + "\n"
		s += dimStyle.Render("  Press q to quit.") + "\n"
		return s
	}

	if len(m.models) == 0 {
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += warnStyle.Render("  No models found in Ollama.") + "\n"
		s += dimStyle.Render("  Pull a model first: ollama pull qwen3:4b") + "\n"
		return s
	}

	if m.page == setupPageEmbed {
		s += titleStyle.Render("  Select Embedding Model") + "\n"
		s += dimStyle.Render("  Used to embed summaries for semantic search") + "\n\n"
		s += renderModelList(m.embedModels, m.embedCursor)
		s += "\n"
		s += helpStyle.Render("  ↑/↓ navigate • Enter select") + "\n"
	} else {
		s += titleStyle.Render("  Select Summary Model") + "\n"
		s += dimStyle.Render("  Writes the one-sentence docstring for each definition") + "\n\n"
		s += renderModelList(m.summaryModels, m.summaryCursor)
		s += "\n"
		s += helpStyle.Render("  ↑/↓ navigate • Enter start documenting") + "\n"
	}

	return s
}

func renderModelList(models []OllamaModel, cursor int) string {
	var s string
	for i, model := range models {
		prefix := "  "
		style := listItemStyle
		if i == cursor {
			prefix = "▸ "
			style = selectedStyle
		}
		s += fmt.Sprintf("  %s%s\n", prefix, style.Render(fmt.Sprintf("%s (%s)", model.Name, formatSize(model.Size))))
	}
	return s
}

func (m setupModel) selectedEmbedModel() string {
	if len(m.embedModels) > 0 && m.embedCursor < len(m.embedModels) {
		return m.embedModels[m.embedCursor].Name
	}
	return ""
}

func (m setupModel) selectedSummaryModel() string {
	if len(m.summaryModels) > 0 && m.summaryCursor < len(m.summaryModels) {
		return m.summaryModels[m.summaryCursor].Name
	}
	return ""
}
