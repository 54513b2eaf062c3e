package cmd

import (
	"os"

	"docsmith/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docsmith",
	Short: "Generate Python docstrings with a local LLM and index them for search",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd)
}
