package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docsmith/internal/annotator"
	"docsmith/internal/config"
	"docsmith/internal/embedder"
	"docsmith/internal/llm"
	"docsmith/internal/logging"
	"docsmith/internal/store"

	"github.com/spf13/cobra"
)

// env is the resolved configuration of one command plus its logger.
type env struct {
	cfg  *config.Config
	root string
	log  *slog.Logger
}

// loadEnv resolves the project root (the first argument, or the working
// directory) and loads configuration for it.
func loadEnv(cmd *cobra.Command, args []string) (*env, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cmd, root)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:  cfg,
		root: root,
		log:  logging.New(cfg.LogLevel, os.Stderr),
	}, nil
}

func (e *env) dbPath() string {
	return e.cfg.DBPath(e.root)
}

func (e *env) chat() (llm.Chat, error) {
	return llm.New(llm.Config{
		Provider:    e.cfg.Provider,
		BaseURL:     e.cfg.BaseURL,
		APIKey:      e.cfg.APIKey,
		Model:       e.cfg.SummaryModel,
		Temperature: e.cfg.Temperature,
	})
}

func (e *env) annotator() (annotator.Annotator, error) {
	chat, err := e.chat()
	if err != nil {
		return nil, err
	}
	return annotator.New(chat, annotator.Options{Logger: e.log})
}

func (e *env) embedder() (embedder.Embedder, error) {
	return embedder.New(embedder.Config{
		Provider: e.cfg.Provider,
		BaseURL:  e.cfg.BaseURL,
		APIKey:   e.cfg.APIKey,
		Model:    e.cfg.EmbedModel,
	})
}

// openStore opens the index. With mustExist set, a missing index is an error
// rather than a fresh database.
func (e *env) openStore(mustExist bool) (*store.SQLiteStore, error) {
	dbPath := e.dbPath()
	if mustExist {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("index not found at %s\nRun 'docsmith document <path>' first to build the index", dbPath)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}

// overviewPath is where the generated project overview is kept.
func (e *env) overviewPath() string {
	return filepath.Join(filepath.Dir(e.dbPath()), "overview.md")
}
