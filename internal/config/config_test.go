package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "docsmith"}
	InitFlags(root)
	cmd := &cobra.Command{Use: "document"}
	cmd.Flags().Bool("dry-run", false, "")
	cmd.Flags().Bool("index", true, "")
	cmd.Flags().StringSlice("ext", nil, "")
	cmd.Flags().StringSlice("exclude", nil, "")
	cmd.Flags().Int("workers", 0, "")
	root.AddCommand(cmd)

	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DOCSMITH_PROVIDER", "DOCSMITH_BASE_URL", "DOCSMITH_API_KEY", "OPENAI_API_KEY",
		"DOCSMITH_SUMMARY_MODEL", "DOCSMITH_WORKERS", "DOCSMITH_EXTENSIONS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(newCommand(t), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, OllamaURL, cfg.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedModel)
	assert.Equal(t, "qwen3:4b", cfg.SummaryModel)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-9)
	assert.Positive(t, cfg.Workers)
	assert.True(t, cfg.Index)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 3, cfg.SearchK)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.File)
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yaml := "summary_model: llama3\nworkers: 2\nexclude_dirs: [build, dist]\nprovider: openai\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsmith.yaml"), []byte(yaml), 0o644))

	t.Setenv("DOCSMITH_WORKERS", "6")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(newCommand(t, "--dry-run", "--summary-model", "phi4"), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".docsmith.yaml"), cfg.File)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Empty(t, cfg.BaseURL, "openai keeps the client's default endpoint")
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, []string{"build", "dist"}, cfg.ExcludeDirs)
	assert.Equal(t, 6, cfg.Workers, "environment overrides the file")
	assert.Equal(t, "phi4", cfg.SummaryModel, "flags override the file")
	assert.True(t, cfg.DryRun)
}

func TestLoad_ExcludeFlagAddsToConfiguredList(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docsmith.yaml"), []byte("exclude_dirs: [build]\n"), 0o644))

	cfg, err := Load(newCommand(t, "--exclude", "tests,fixtures"), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, cfg.ExcludeDirs)
	assert.Equal(t, []string{"tests", "fixtures"}, cfg.ExtraExcludeDirs)

	cfg, err = Load(newCommand(t), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.ExcludeDirs)
	assert.Empty(t, cfg.ExtraExcludeDirs)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"search_k": 7, "index": false}`), 0o644))

	cfg, err := Load(newCommand(t, "--config", path), "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.SearchK)
	assert.False(t, cfg.Index)
}

func TestLoad_MissingExplicitConfig(t *testing.T) {
	clearEnv(t)
	_, err := Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")), "")
	assert.Error(t, err)
}

func TestDBPath(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, filepath.Join("proj", ".docsmith", "index.db"), cfg.DBPath("proj"))
	cfg.DB = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", cfg.DBPath("proj"))
}
