package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/catalog"
	"github.com/glorpus-work/appcat/pkg/config"
	"github.com/glorpus-work/appcat/pkg/model"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	NoColor      *bool
	OutputFormat *string
)

// Stdout is where command results are printed.
var Stdout io.Writer = os.Stdout

// InitLogging configures the global logger from the configuration and the global flags.
func InitLogging() {
	level := "info"
	if cfg, err := loadConfig(); err == nil && cfg.Settings.LogLevel != "" {
		level = cfg.Settings.LogLevel
	}
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	logger.InitLogger(level, NoColor != nil && *NoColor)
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func saveConfig(cfg *config.Config) error {
	if err := cfg.SaveConfig(getConfigPath()); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

func configuredRepositories(cfg *config.Config) []*model.Repository {
	repos := make([]*model.Repository, 0, len(cfg.Repositories))
	for _, rc := range cfg.Repositories {
		repos = append(repos, rc.Model())
	}
	return repos
}

// openCatalog opens the catalog and brings its repository list in line with the configuration.
func openCatalog(ctx context.Context, cfg *config.Config) (*catalog.SQLStore, []*model.Repository, error) {
	store, err := catalog.Open(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	repos, err := catalog.Reconcile(ctx, store, configuredRepositories(cfg))
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to reconcile repositories: %w", err)
	}
	return store, repos, nil
}

func outputFormat() string {
	if OutputFormat == nil || *OutputFormat == "" {
		return OutputTable
	}
	return *OutputFormat
}

// printStructured writes v as JSON or YAML. It returns false for the table format.
func printStructured(v any) (bool, error) {
	switch format := outputFormat(); format {
	case OutputJSON:
		enc := json.NewEncoder(Stdout)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(Stdout)
		enc.SetIndent(config.YAMLIndent)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(v)
	case OutputTable:
		return false, nil
	default:
		return true, fmt.Errorf("unsupported output format %q (valid: table, json, yaml)", format)
	}
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(Stdout, 0, 0, TabWidth, ' ', 0)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
