package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/cache"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached files",
		Long:  "Inspect and clean downloaded icons and leftover sync files",
	}

	cmd.AddCommand(newCacheCleanCmd(), newCacheInfoCmd())

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var options cache.CleanOptions

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean cached files",
		Long:  "Remove downloaded icons and temporary files. Without flags everything is removed.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCacheClean(options)
		},
	}

	cmd.Flags().BoolVar(&options.Icons, "icons", false, "Clean downloaded icons")
	cmd.Flags().BoolVar(&options.Temp, "temp", false, "Clean temporary sync files")

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache information",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCacheInfo()
		},
	}
}

func runCacheClean(options cache.CleanOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result, err := cache.NewManager(cfg.Settings.CacheDir).Clean(options)
	if err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}
	if done, err := printStructured(result); done {
		return err
	}

	if result.TotalFreed == 0 {
		_, _ = fmt.Fprintln(Stdout, "No files were removed from the cache.")
		return nil
	}
	logger.Success("Cache cleaned", logger.Fields{
		"freed": cache.FormatBytes(result.TotalFreed),
		"icons": cache.FormatBytes(result.IconsFreed),
		"temp":  cache.FormatBytes(result.TempFreed),
	})
	return nil
}

func runCacheInfo() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := cache.NewManager(cfg.Settings.CacheDir).GetInfo()
	if err != nil {
		return fmt.Errorf("failed to get cache info: %w", err)
	}
	if done, err := printStructured(info); done {
		return err
	}

	_, _ = fmt.Fprintf(Stdout, `Cache Information:
  Directory:  %s
  Total Size: %s
  Icons:      %s (%d files)
  Temporary:  %s (%d files)
`,
		info.Directory,
		cache.FormatBytes(info.TotalSize),
		cache.FormatBytes(info.IconSize), info.IconFiles,
		cache.FormatBytes(info.TempSize), info.TempFiles,
	)
	return nil
}
