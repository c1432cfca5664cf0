package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/config"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fetch"
	"github.com/glorpus-work/appcat/pkg/hook"
	"github.com/glorpus-work/appcat/pkg/merge"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/orchestrator"
	"github.com/glorpus-work/appcat/pkg/verify"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var rejectIfBusy bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize repository indexes",
		Long: `Synchronize the local catalog by downloading the index of every enabled
repository. Signed indexes are verified before anything is stored; a repository
that fails leaves its previous catalog untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), rejectIfBusy)
		},
	}

	cmd.Flags().BoolVar(&rejectIfBusy, "reject-if-busy", false, "Fail instead of waiting when a sync is already running")

	return cmd
}

func runSync(ctx context.Context, rejectIfBusy bool) error {
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

	scripts, err := hook.NewScriptNotifier(cfg.GetHooksDir())
	if err != nil {
		return fmt.Errorf("failed to load hooks: %w", err)
	}

	tempDir := cfg.GetTempDir()
	orch := &orchestrator.Orchestrator{
		Fetcher:  fetch.NewFetcher(cfg.Settings.HTTPTimeout.Std(), cfg.Settings.UserAgent, tempDir),
		Verifier: verify.NewVerifier(tempDir),
		Parser:   orchestrator.XMLParser{},
		Merger:   merge.NewEngine(store),
		Catalog:  store,
		Notifier: hook.Multi{hook.LogNotifier{}, scripts},
		Options: orchestrator.Options{
			Device:       cfg.Settings.Device,
			Concurrency:  cfg.Settings.MaxConcurrent,
			RejectIfBusy: rejectIfBusy || cfg.Settings.OnBusy == config.OnBusyReject,
			LockFile:     cfg.GetSyncLockPath(),
			FetchIcons:   cfg.Settings.FetchIcons,
			IconDir:      cfg.GetIconDir(),
			Auth:         cfg.AuthMap(),
		},
		Hooks: orchestrator.Hooks{OnEvent: func(e orchestrator.Event) {
			logger.Debug("Sync progress", logger.Fields{"repo": e.Repo, "status": e.Status.String(), "detail": e.Msg})
		}},
	}

	logger.Debug("Synchronizing repositories...", logger.Fields{"count": len(repos)})
	report, err := orch.Run(ctx, repos)
	if err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}

	if err := printReport(report); err != nil {
		return err
	}
	if !report.Success() {
		return fmt.Errorf("%d of %d repositories failed to sync", len(report.Failed()), len(report.Outcomes))
	}
	logger.Success("Repositories synchronized")
	return nil
}

type outcomeView struct {
	Repository string           `json:"repository" yaml:"repository"`
	Status     string           `json:"status" yaml:"status"`
	Changes    model.MergeStats `json:"changes" yaml:"changes"`
	Escalated  bool             `json:"escalated,omitempty" yaml:"escalated,omitempty"`
	ErrorKind  string           `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

func printReport(report *model.Report) error {
	views := make([]outcomeView, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		v := outcomeView{
			Repository: o.Repo.DisplayName(),
			Status:     o.Status.String(),
			Changes:    o.Stats,
			Escalated:  o.Escalated,
		}
		if o.Err != nil {
			v.ErrorKind = pkgerrors.KindOf(o.Err).String()
			v.Error = o.Err.Error()
		}
		views = append(views, v)
	}
	if done, err := printStructured(views); done {
		return err
	}

	if len(views) == 0 {
		_, _ = fmt.Fprintln(Stdout, "No enabled repositories")
		return nil
	}
	tw := newTabWriter()
	_, _ = fmt.Fprintln(tw, "REPOSITORY\tSTATUS\tCHANGES")
	for i, v := range views {
		detail := ""
		switch report.Outcomes[i].Status {
		case model.StatusCommitted:
			detail = v.Changes.String()
		case model.StatusFailed:
			detail = v.ErrorKind + ": " + v.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Repository, v.Status, detail)
	}
	return tw.Flush()
}
