// Package config layers command-line flags, DOCSMITH_* environment
// variables, an optional .docsmith.yaml and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for one command invocation.
type Config struct {
	Provider            string   `mapstructure:"provider"`
	BaseURL             string   `mapstructure:"base_url"`
	APIKey              string   `mapstructure:"api_key"`
	EmbedModel          string   `mapstructure:"embed_model"`
	SummaryModel        string   `mapstructure:"summary_model"`
	Temperature         float64  `mapstructure:"temperature"`
	Workers             int      `mapstructure:"workers"`
	Extensions          []string `mapstructure:"extensions"`
	ExcludeDirs         []string `mapstructure:"exclude_dirs"`
	ExtraExcludeDirs    []string `mapstructure:"extra_exclude_dirs"`
	DB                  string   `mapstructure:"db"`
	Index               bool     `mapstructure:"index"`
	IndexOtherLanguages bool     `mapstructure:"index_other_languages"`
	InjectPlaceholders  bool     `mapstructure:"inject_placeholders"`
	DryRun              bool     `mapstructure:"dry_run"`
	Force               bool     `mapstructure:"force"`
	LogLevel            string   `mapstructure:"log_level"`
	SearchK             int      `mapstructure:"search_k"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// OllamaURL is the base URL used for the ollama provider when none is set.
const OllamaURL = "http://localhost:11434"

// FileName is the config file looked up in the target and working directories.
const FileName = ".docsmith"

// DefaultConfig values.
var DefaultConfig = Config{
	Provider:     "ollama",
	EmbedModel:   "nomic-embed-text",
	SummaryModel: "qwen3:4b",
	Temperature:  0.1,
	Workers:      runtime.NumCPU(),
	Index:        true,
	LogLevel:     "info",
	SearchK:      3,
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":              "provider",
	"base-url":              "base_url",
	"api-key":               "api_key",
	"embed-model":           "embed_model",
	"summary-model":         "summary_model",
	"temperature":           "temperature",
	"workers":               "workers",
	"ext":                   "extensions",
	"exclude":               "extra_exclude_dirs",
	"db":                    "db",
	"index":                 "index",
	"index-other-languages": "index_other_languages",
	"inject-placeholders":   "inject_placeholders",
	"dry-run":               "dry_run",
	"force":                 "force",
	"log-level":             "log_level",
	"k":                     "search_k",
}

// InitFlags registers the persistent flags shared by every command.
func InitFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to a config file (YAML or JSON)")
	pf.String("provider", DefaultConfig.Provider, "model provider: 'ollama' or 'openai'")
	pf.String("base-url", "", "provider base URL (default "+OllamaURL+" for ollama)")
	pf.String("api-key", "", "API key for the openai provider (or OPENAI_API_KEY)")
	pf.String("embed-model", DefaultConfig.EmbedModel, "embedding model")
	pf.String("summary-model", DefaultConfig.SummaryModel, "generative model for summaries")
	pf.String("db", "", "index path (default <root>/.docsmith/index.db)")
	pf.String("log-level", DefaultConfig.LogLevel, "log level: debug, info, warn, error")
}

// Load resolves the configuration for cmd. dir is searched for a config file
// before the working directory.
func Load(cmd *cobra.Command, dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "DOCSMITH_API_KEY", "OPENAI_API_KEY")

	if err := readFile(v, cmd, dir); err != nil {
		return nil, err
	}
	bindFlags(v, cmd)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.BaseURL == "" && cfg.Provider == "ollama" {
		cfg.BaseURL = OllamaURL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.SearchK <= 0 {
		cfg.SearchK = DefaultConfig.SearchK
	}
	return &cfg, nil
}

// DBPath returns the configured index path, or the default under root.
func (c *Config) DBPath(root string) string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(root, ".docsmith", "index.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", DefaultConfig.Provider)
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("embed_model", DefaultConfig.EmbedModel)
	v.SetDefault("summary_model", DefaultConfig.SummaryModel)
	v.SetDefault("temperature", DefaultConfig.Temperature)
	v.SetDefault("workers", DefaultConfig.Workers)
	v.SetDefault("extensions", []string{})
	v.SetDefault("exclude_dirs", []string{})
	v.SetDefault("extra_exclude_dirs", []string{})
	v.SetDefault("db", "")
	v.SetDefault("index", DefaultConfig.Index)
	v.SetDefault("index_other_languages", false)
	v.SetDefault("inject_placeholders", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("force", false)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("search_k", DefaultConfig.SearchK)
}

func readFile(v *viper.Viper, cmd *cobra.Command, dir string) error {
	if f := lookupFlag(cmd, "config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", f.Value.String(), err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindFlags binds every known flag the command defines, so only flags the
// user actually set override file and environment values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	for name, key := range flagKeys {
		if f := lookupFlag(cmd, name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if cmd == nil {
		return nil
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}
