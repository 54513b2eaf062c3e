package cmd

import (
	"docsmith/internal/logging"
	"docsmith/internal/tui"

	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command) error {
	e, err := loadEnv(cmd, nil)
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{
		Root:         e.root,
		DBPath:       e.dbPath(),
		Provider:     e.cfg.Provider,
		BaseURL:      e.cfg.BaseURL,
		APIKey:       e.cfg.APIKey,
		EmbedModel:   e.cfg.EmbedModel,
		SummaryModel: e.cfg.SummaryModel,
		Temperature:  e.cfg.Temperature,
		Workers:      e.cfg.Workers,
		Index:        e.cfg.Index,
		K:            e.cfg.SearchK,
		Logger:       logging.Discard(),
	})
}
