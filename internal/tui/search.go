package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docsmith/internal/embedder"
	"docsmith/internal/search"
	"docsmith/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const searchHelp = "Commands:\n  /clear  - clear results\n  /exit   - quit\n  /help   - show this help"

type searchModel struct {
	ctx         context.Context
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	entries     []searchEntry
	st          *store.SQLiteStore
	emb         embedder.Embedder
	k           int
	searching   bool
	width       int
	height      int
	initialized bool
}

type searchEntry struct {
	kind    string // "query", "results", "error" or "system"
	content string
}

// resultsMsg is sent when a search completes.
type resultsMsg struct {
	query   string
	results []store.SearchResult
	err     error
}

func newSearchModel(ctx context.Context, cfg Config) (searchModel, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return searchModel{}, fmt.Errorf("open index: %w", err)
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		st.Close()
		return searchModel{}, err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Describe the code you are looking for..."
	ti.CharLimit = 2000
	ti.Focus()

	return searchModel{
		ctx:     ctx,
		spinner: sp,
		input:   ti,
		st:      st,
		emb:     emb,
		k:       cfg.K,
	}, nil
}

func (m searchModel) close() {
	if m.st != nil {
		m.st.Close()
	}
}

func (m *searchModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Search the documented code by meaning.\n\n" + searchHelp))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func runQuery(ctx context.Context, query string, st search.Index, emb embedder.Embedder, k int) tea.Cmd {
	return func() tea.Msg {
		results, err := search.Retrieve(ctx, query, st, emb, k)
		return resultsMsg{query: query, results: results, err: err}
	}
}

func (m searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case resultsMsg:
		m.searching = false
		switch {
		case errors.Is(msg.err, store.ErrIndexEmpty):
			m.entries = append(m.entries, searchEntry{kind: "system", content: "The index has no embeddings yet."})
		case msg.err != nil:
			m.entries = append(m.entries, searchEntry{kind: "error", content: msg.err.Error()})
		default:
			m.entries = append(m.entries, searchEntry{kind: "results", content: search.Markdown(msg.query, msg.results)})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.searching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.searching {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.input.Reset()

			switch query {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.entries = nil
				m.viewport.SetContent(dimStyle.Render("Results cleared."))
				return m, nil
			case "/help":
				m.entries = append(m.entries, searchEntry{kind: "system", content: searchHelp})
				m.refresh()
				return m, nil
			}

			m.entries = append(m.entries, searchEntry{kind: "query", content: query})
			m.searching = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, runQuery(m.ctx, query, m.st, m.emb, m.k))
		}
	}

	if !m.searching {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *searchModel) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m searchModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return resultStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return resultStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m searchModel) renderEntries() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case "query":
			sb.WriteString(queryStyle.Render("Search: ") + e.content + "\n\n")
		case "results":
			sb.WriteString(m.renderMarkdown(e.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+e.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(e.content) + "\n\n")
		}
	}
	if m.searching {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Searching...") + "\n")
	}
	return sb.String()
}

func (m searchModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	if m.searching {
		statusText = "searching..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" docsmith search • k=%d • %s", m.k, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
