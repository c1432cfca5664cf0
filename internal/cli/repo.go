package cli

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/config"
	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
)

// NewRepoCmd creates the repo command with subcommands.
func NewRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories",
		Long:  "Add, remove, list, enable and disable repositories",
	}

	cmd.AddCommand(
		newRepoAddCmd(),
		newRepoRemoveCmd(),
		newRepoListCmd(),
		newRepoEnableCmd(true),
		newRepoEnableCmd(false),
	)

	return cmd
}

func newRepoAddCmd() *cobra.Command {
	var (
		name        string
		fingerprint string
		pubKey      string
		priority    int
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Add a new repository",
		Long: `Add a repository by its base URL. With --fingerprint the signed index.jar
is fetched and its certificate must match; without it the unsigned index.xml is
used until the repository announces a signing key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rc := &config.RepositoryConfig{
				Name:        name,
				URL:         args[0],
				Fingerprint: fingerprint,
				PubKey:      pubKey,
				Priority:    priority,
			}
			if disabled {
				rc.SetEnabled(false)
			}
			return runRepoAdd(rc)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Repository name (defaults to the URL host)")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Hex SHA-256 fingerprint of the signing certificate")
	cmd.Flags().StringVar(&pubKey, "pubkey", "", "Hex-encoded signing certificate")
	cmd.Flags().IntVar(&priority, "priority", 0, "Repository priority (lower numbers are preferred)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Add the repository without enabling it")

	return cmd
}

func newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a repository",
		Long:  "Remove a repository by name. Its catalog entries are dropped on the next command that opens the catalog.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRepoRemove(args[0])
		},
	}
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories",
		Long:  "List the configured repositories with their sync state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepoList(cmd.Context())
		},
	}
}

func newRepoEnableCmd(enabled bool) *cobra.Command {
	use, short := "enable NAME", "Enable a repository"
	if !enabled {
		use, short = "disable NAME", "Disable a repository"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRepoEnable(args[0], enabled)
		},
	}
}

func runRepoAdd(rc *config.RepositoryConfig) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if rc.Name == "" {
		rc.Name = defaultRepoName(rc.URL)
	}
	if err := cfg.AddRepository(rc); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	logger.Success("Repository added", logger.Fields{"name": rc.Name, "url": rc.URL})
	return nil
}

func runRepoRemove(name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.RemoveRepository(name) {
		return errors.ErrRepositoryNotFoundWithName(name)
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	logger.Success("Repository removed", logger.Fields{"name": name})
	return nil
}

func runRepoEnable(name string, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.EnableRepository(name, enabled) {
		return errors.ErrRepositoryNotFoundWithName(name)
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	logger.Success("Repository updated", logger.Fields{"name": name, "enabled": enabled})
	return nil
}

func runRepoList(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, repos, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if done, err := printStructured(repos); done {
		return err
	}
	if len(repos) == 0 {
		_, _ = fmt.Fprintln(Stdout, "No repositories configured")
		return nil
	}

	tw := newTabWriter()
	_, _ = fmt.Fprintln(tw, "NAME\tURL\tTRUST\tENABLED\tLAST UPDATED")
	for _, repo := range repos {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			repo.DisplayName(), repo.Address, trustLabel(repo), repo.Enabled, lastUpdated(repo))
	}
	return tw.Flush()
}

func trustLabel(repo *model.Repository) string {
	trust := repo.Trust()
	if trust.Kind == model.TrustSigned && trust.PubKey == "" {
		return trust.Kind.String() + " (unverified)"
	}
	return trust.Kind.String()
}

func lastUpdated(repo *model.Repository) string {
	if repo.LastUpdated.IsZero() {
		return "never"
	}
	return repo.LastUpdated.Local().Format(time.DateTime)
}

func defaultRepoName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
