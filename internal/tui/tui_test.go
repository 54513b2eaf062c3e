package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"docsmith/internal/pipeline"
	"docsmith/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"nomic-embed-text","size":274302450},{"name":"qwen3:4b","size":2620788260}]}`))
	}))
	defer srv.Close()

	models, err := ListModels(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "qwen3:4b", models[1].Name)
}

func TestListModels_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := ListModels(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "500")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "262 MB", formatSize(274302450))
	assert.Equal(t, "2.4 GB", formatSize(2620788260))
}

func TestSetup_SplitsModels(t *testing.T) {
	m := newSetupModel(true)
	m, _ = m.Update(fetchModelsMsg{models: []OllamaModel{
		{Name: "llama3"}, {Name: "nomic-embed-text"}, {Name: "qwen3:4b"}, {Name: "bge-m3"},
	}}, Config{EmbedModel: "bge-m3", SummaryModel: "qwen3:4b"})

	assert.Equal(t, "bge-m3", m.selectedEmbedModel())
	assert.Equal(t, "qwen3:4b", m.selectedSummaryModel())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp}, Config{})
	assert.Equal(t, "nomic-embed-text", m.selectedEmbedModel())

	require.True(t, m.advancePage())
	assert.False(t, m.advancePage())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp}, Config{})
	assert.Equal(t, "llama3", m.selectedSummaryModel())
}

func TestSetup_NoIndexStartsOnSummaryPage(t *testing.T) {
	m := newSetupModel(false)
	assert.Equal(t, setupPageSummary, m.page)
	assert.False(t, m.advancePage())
}

func TestCheckIndex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	msg := checkIndex(Config{DBPath: dbPath, EmbedModel: "nomic-embed-text"})().(checkIndexMsg)
	assert.Equal(t, indexNotFound, msg.status)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.PrepareVectors("nomic-embed-text", 4)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, st.RecordRun(store.Run{ID: "r1", StartedAt: now, FinishedAt: now, FilesModified: 2, ChunksInjected: 5}))
	require.NoError(t, st.Close())

	msg = checkIndex(Config{DBPath: dbPath, EmbedModel: "nomic-embed-text"})().(checkIndexMsg)
	assert.Equal(t, indexReady, msg.status)
	assert.Contains(t, msg.lastRun, "2 files modified, 5 docstrings inserted")

	msg = checkIndex(Config{DBPath: dbPath, EmbedModel: "mxbai-embed-large"})().(checkIndexMsg)
	assert.Equal(t, indexStale, msg.status)
	assert.Contains(t, msg.staleReason, "mxbai-embed-large")
}

func TestRunning_TracksProgress(t *testing.T) {
	m := newRunningModel()
	m, _ = m.Update(runProgressMsg{Stage: pipeline.StageScan, Total: 3})
	m, _ = m.Update(runProgressMsg{Stage: pipeline.StageInject, Path: "a.py", Done: 1, Total: 2})
	assert.Equal(t, 1, m.done)
	assert.Equal(t, 2, m.total)
	assert.Contains(t, m.View(80, 24), "1 / 2 files")

	m, _ = m.Update(runDoneMsg{stats: &pipeline.Stats{FilesScanned: 3, FilesModified: 1, ChunksInjected: 4}})
	assert.True(t, m.finished)
	assert.Contains(t, m.View(80, 24), "4 inserted")
}

func TestModel_WelcomeToSetupForOllama(t *testing.T) {
	m := New(Config{Provider: "ollama", Index: true})
	next, _ := m.Update(checkIndexMsg{status: indexNotFound})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewSetup, next.(Model).state)
	assert.NotNil(t, cmd)
}
