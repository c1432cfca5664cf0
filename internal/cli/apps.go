package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/appcat/pkg/catalog"
	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
)

// NewAppsCmd creates the apps command.
func NewAppsCmd() *cobra.Command {
	var (
		repoName   string
		compatible bool
	)

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List catalog applications",
		Long: `List the applications stored in the local catalog.

Use --repo to restrict the listing to one repository and --compatible to hide
applications without a package that runs on the configured device.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApps(cmd.Context(), repoName, compatible)
		},
	}

	cmd.Flags().StringVar(&repoName, "repo", "", "Only list applications of this repository")
	cmd.Flags().BoolVar(&compatible, "compatible", false, "Only list applications with a compatible package")

	cmd.AddCommand(newAppsShowCmd())

	return cmd
}

func newAppsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show APP_ID",
		Short: "Show an application and its packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppsShow(cmd.Context(), args[0])
		},
	}
}

func findRepository(repos []*model.Repository, name string) (*model.Repository, error) {
	for _, repo := range repos {
		if repo.Name == name || repo.Address == name {
			return repo, nil
		}
	}
	return nil, errors.ErrRepositoryNotFoundWithName(name)
}

func runApps(ctx context.Context, repoName string, compatible bool) error {
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

	filter := catalog.AppFilter{CompatibleOnly: compatible}
	if repoName != "" {
		repo, err := findRepository(repos, repoName)
		if err != nil {
			return err
		}
		filter.RepoID = repo.ID
	}

	apps, err := store.ListApps(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}
	if done, err := printStructured(apps); done {
		return err
	}
	if len(apps) == 0 {
		_, _ = fmt.Fprintln(Stdout, "No applications found")
		return nil
	}

	names := make(map[int64]string, len(repos))
	for _, repo := range repos {
		names[repo.ID] = repo.DisplayName()
	}
	tw := newTabWriter()
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tREPOSITORY\tSUMMARY")
	for _, app := range apps {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", app.ID, app.Name, names[app.RepoID], truncate(app.Summary, MaxSummaryLength))
	}
	return tw.Flush()
}

type appView struct {
	Repository string     `json:"repository" yaml:"repository"`
	App        *model.App `json:"app" yaml:"app"`
}

type showView struct {
	Apps      []appView      `json:"apps" yaml:"apps"`
	Suggested *model.Package `json:"suggested,omitempty" yaml:"suggested,omitempty"`
}

func runAppsShow(ctx context.Context, appID string) error {
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

	var view showView
	for _, repo := range repos {
		app, err := store.GetApp(ctx, repo.ID, appID)
		if err != nil {
			return fmt.Errorf("failed to load %s from %s: %w", appID, repo.DisplayName(), err)
		}
		if app != nil {
			view.Apps = append(view.Apps, appView{Repository: repo.DisplayName(), App: app})
		}
	}
	if len(view.Apps) == 0 {
		return fmt.Errorf("application %s: %w", appID, errors.ErrAppNotFound)
	}
	view.Suggested, err = store.SuggestedPackage(ctx, appID)
	if err != nil {
		return fmt.Errorf("failed to pick suggested package: %w", err)
	}

	if done, err := printStructured(view); done {
		return err
	}

	for _, av := range view.Apps {
		app := av.App
		_, _ = fmt.Fprintf(Stdout, "%s (%s) from %s\n", app.Name, app.ID, av.Repository)
		if app.Summary != "" {
			_, _ = fmt.Fprintf(Stdout, "  %s\n", app.Summary)
		}
		if app.License != "" {
			_, _ = fmt.Fprintf(Stdout, "  License: %s\n", app.License)
		}
		tw := newTabWriter()
		_, _ = fmt.Fprintln(tw, "  VERSION\tCODE\tMIN SDK\tCOMPATIBLE")
		for _, pkg := range app.Packages {
			verdict := "yes"
			if !pkg.Compatible {
				verdict = "no (" + string(pkg.IncompatibleReason) + ")"
			}
			_, _ = fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\n", pkg.Version, pkg.VersionCode, pkg.MinSDK, verdict)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if view.Suggested != nil {
		_, _ = fmt.Fprintf(Stdout, "Suggested: %s (%d)\n", view.Suggested.Version, view.Suggested.VersionCode)
	} else {
		_, _ = fmt.Fprintln(Stdout, "Suggested: none compatible")
	}
	return nil
}
