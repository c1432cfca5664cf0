package hook

import (
	"context"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
)

// Notifier receives the results of a sync run.
type Notifier interface {
	CatalogChanged(ctx context.Context, report *model.Report) error
	SyncFailed(ctx context.Context, outcome model.Outcome) error
}

// ScriptNotifier runs the catalog-changed and sync-failed scripts of a HookManager.
type ScriptNotifier struct {
	Hooks HookManager
}

// NewScriptNotifier loads the hook scripts in dir.
func NewScriptNotifier(dir string) (*ScriptNotifier, error) {
	manager := NewHookManager()
	if err := LoadHooksFromDir(manager, dir); err != nil {
		return nil, err
	}
	return &ScriptNotifier{Hooks: manager}, nil
}

// CatalogChanged runs the catalog-changed script.
func (n *ScriptNotifier) CatalogChanged(ctx context.Context, report *model.Report) error {
	repos := make([]interface{}, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		entry := map[string]interface{}{
			"name":    o.Repo.DisplayName(),
			"address": o.Repo.Address,
			"status":  o.Status.String(),
			"changes": o.Stats.String(),
			"error":   "",
		}
		if o.Err != nil {
			entry["error"] = o.Err.Error()
		}
		repos = append(repos, entry)
	}
	return n.Hooks.Execute(ctx, CatalogChanged, Context{Vars: map[string]interface{}{
		"success": report.Success(),
		"repos":   repos,
	}})
}

// SyncFailed runs the sync-failed script for one repository.
func (n *ScriptNotifier) SyncFailed(ctx context.Context, outcome model.Outcome) error {
	message := ""
	if outcome.Err != nil {
		message = outcome.Err.Error()
	}
	return n.Hooks.Execute(ctx, SyncFailed, Context{Vars: map[string]interface{}{
		"repo":    outcome.Repo.DisplayName(),
		"address": outcome.Repo.Address,
		"kind":    errors.KindOf(outcome.Err).String(),
		"message": message,
	}})
}

// LogNotifier logs sync results.
type LogNotifier struct{}

func (LogNotifier) CatalogChanged(_ context.Context, report *model.Report) error {
	for _, o := range report.Outcomes {
		if o.Status == model.StatusCommitted {
			logger.Info("Catalog changed", logger.Fields{"repo": o.Repo.DisplayName(), "changes": o.Stats.String()})
		}
	}
	return nil
}

func (LogNotifier) SyncFailed(_ context.Context, outcome model.Outcome) error {
	logger.Error("Sync failed", logger.Fields{
		"repo":  outcome.Repo.DisplayName(),
		"kind":  errors.KindOf(outcome.Err).String(),
		"error": outcome.Err,
	})
	return nil
}

// Multi fans notifications out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) CatalogChanged(ctx context.Context, report *model.Report) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.CatalogChanged(ctx, report))
	}
	return errors.Join(errs...)
}

func (m Multi) SyncFailed(ctx context.Context, outcome model.Outcome) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.SyncFailed(ctx, outcome))
	}
	return errors.Join(errs...)
}
