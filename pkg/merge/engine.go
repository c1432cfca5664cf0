// Package merge reconciles a parsed repository index with the stored catalog.
//
// Each merge runs in one catalog transaction: inserts and updates first, then the sweep
// of withdrawn packages and applications, then the repository's sync metadata. Any
// failure rolls the transaction back so the stored catalog is left as it was.
package merge

import (
	"context"
	"fmt"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/catalog"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/index"
	"github.com/glorpus-work/appcat/pkg/model"
)

// Engine applies merges against a catalog store.
type Engine struct {
	Store catalog.Store
}

// NewEngine creates an Engine writing to store.
func NewEngine(store catalog.Store) *Engine {
	return &Engine{Store: store}
}

// Merge makes repo's stored applications and packages equal to idx and records update on
// the repository in the same transaction. Errors are returned as MergeError.
//
// A started merge is not interrupted by ctx cancellation; it commits or rolls back.
func (e *Engine) Merge(ctx context.Context, repo *model.Repository, idx *index.Index, update model.RepoUpdate) (model.MergeStats, error) {
	stats, err := e.merge(context.WithoutCancel(ctx), repo, idx, update)
	if err != nil {
		return model.MergeStats{}, pkgerrors.MergeError(repo.DisplayName(), err)
	}
	return stats, nil
}

func (e *Engine) merge(ctx context.Context, repo *model.Repository, idx *index.Index, update model.RepoUpdate) (stats model.MergeStats, err error) {
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return stats, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Rollback failed", logger.Fields{"repo": repo.DisplayName(), "error": rbErr})
		}
	}()

	existing, err := tx.LoadApps(ctx, repo.ID)
	if err != nil {
		return stats, err
	}

	plan := Compute(repo.ID, existing, idx.Apps)
	if err = apply(ctx, tx, repo.ID, plan); err != nil {
		return stats, err
	}
	if err = tx.UpdateRepoMetadata(ctx, repo.ID, update); err != nil {
		return stats, err
	}
	if err = tx.Commit(); err != nil {
		return stats, err
	}

	stats = plan.Stats()
	logger.Debug("Merge committed", logger.Fields{"repo": repo.DisplayName(), "stage": "merge", "stats": stats.String()})
	return stats, nil
}

func apply(ctx context.Context, tx catalog.Tx, repoID int64, plan Plan) error {
	for _, app := range plan.InsertApps {
		if err := tx.InsertApp(ctx, app); err != nil {
			return err
		}
	}
	for _, app := range plan.UpdateApps {
		if err := tx.UpdateApp(ctx, app); err != nil {
			return err
		}
	}
	for _, pkg := range plan.InsertPackages {
		if err := tx.InsertPackage(ctx, pkg); err != nil {
			return err
		}
	}
	for _, pkg := range plan.UpdatePackages {
		if err := tx.UpdatePackage(ctx, pkg); err != nil {
			return err
		}
	}

	// Sweep
	for _, pkg := range plan.DeletePackages {
		if err := tx.DeletePackage(ctx, repoID, pkg.Key()); err != nil {
			return err
		}
	}
	for _, app := range plan.DeleteApps {
		if err := tx.DeleteApp(ctx, repoID, app.ID); err != nil {
			return fmt.Errorf("failed to remove withdrawn app: %w", err)
		}
	}
	return nil
}
