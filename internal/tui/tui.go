package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewRunning
	ViewSearch
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	Root         string
	DBPath       string
	Provider     string
	BaseURL      string
	APIKey       string
	EmbedModel   string
	SummaryModel string
	Temperature  float64
	Workers      int
	Index        bool
	K            int
	// Logger receives pipeline logs. It must not write to the terminal the
	// TUI is drawing on; nil discards them.
	Logger *slog.Logger

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc

	welcome welcomeModel
	setup   setupModel
	running runningModel
	search  searchModel
	err     error
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		state:  ViewWelcome,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return checkIndex(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewSearch {
			var c tea.Cmd
			m.search, c = m.search.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "q":
			if m.state != ViewSearch && !(m.state == ViewRunning && !m.running.finished) {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		keyMsg, ok := msg.(tea.KeyMsg)
		if !ok || !m.welcome.ready {
			break
		}
		switch {
		case keyMsg.Type == tea.KeyEnter && m.welcome.status == indexReady:
			return m, m.transitionToSearch()
		case keyMsg.Type == tea.KeyEnter || keyMsg.String() == "d":
			return m, m.transitionToSetup()
		}

	case ViewSetup:
		m.setup, cmd = m.setup.Update(msg, m.config)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.setup.loaded && m.setup.err == nil && len(m.setup.models) > 0 {
			if m.setup.advancePage() {
				return m, nil
			}
			if sel := m.setup.selectedEmbedModel(); sel != "" {
				m.config.EmbedModel = sel
			}
			if sel := m.setup.selectedSummaryModel(); sel != "" {
				m.config.SummaryModel = sel
			}
			return m, m.transitionToRunning()
		}

	case ViewRunning:
		m.running, cmd = m.running.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.running.finished {
			return m, m.transitionToSearch()
		}

	case ViewSearch:
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	return m, nil
}

// transitionToSetup lets the user pick models. Model listing only exists for
// Ollama; other providers go straight to the run.
func (m *Model) transitionToSetup() tea.Cmd {
	if m.config.Provider != "" && m.config.Provider != "ollama" {
		return m.transitionToRunning()
	}
	m.state = ViewSetup
	m.setup = newSetupModel(m.config.Index)
	return fetchModels(m.ctx, m.config.BaseURL)
}

func (m *Model) transitionToRunning() tea.Cmd {
	m.state = ViewRunning
	m.running = newRunningModel()
	return tea.Batch(m.running.spinner.Tick, startRun(m.ctx, m.config))
}

func (m *Model) transitionToSearch() tea.Cmd {
	s, err := newSearchModel(m.ctx, m.config)
	if err != nil {
		m.err = err
		return nil
	}
	m.search = s
	m.search.initViewport(m.width, m.height)
	m.state = ViewSearch
	return nil
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSetup:
		return m.setup.View(m.width, m.height)
	case ViewRunning:
		return m.running.View(m.width, m.height)
	case ViewSearch:
		return m.search.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	defer model.cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.search.close()
	}
	return err
}
