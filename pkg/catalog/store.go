// Package catalog persists repositories, applications and packages.
//
// The store is the only shared mutable state of a sync run. Writes happen inside a Tx
// so that a repository's merge becomes visible atomically or not at all.
package catalog

import (
	"context"

	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/platform"
)

// AppFilter narrows ListApps.
type AppFilter struct {
	RepoID         int64  // 0 for all repositories
	AppID          string // exact application id; empty for all
	CompatibleOnly bool   // only applications with at least one compatible package
}

// Store is the catalog persistence interface.
type Store interface {
	// Begin starts the write transaction of one merge.
	Begin(ctx context.Context) (Tx, error)

	AddRepository(ctx context.Context, repo *model.Repository) error
	UpdateRepository(ctx context.Context, repo *model.Repository) error
	// GetRepository returns the repository with the given address, or nil.
	GetRepository(ctx context.Context, address string) (*model.Repository, error)
	ListRepositories(ctx context.Context) ([]*model.Repository, error)
	// RemoveRepository deletes a repository together with its applications and packages.
	RemoveRepository(ctx context.Context, id int64) error

	ListApps(ctx context.Context, filter AppFilter) ([]*model.App, error)
	// GetApp returns one repository's application with its packages, or nil.
	GetApp(ctx context.Context, repoID int64, appID string) (*model.App, error)
	ListPackages(ctx context.Context, repoID int64, appID string) ([]*model.Package, error)
	// SuggestedPackage returns the package recommended for appID across all enabled repositories, or nil.
	SuggestedPackage(ctx context.Context, appID string) (*model.Package, error)

	// RecomputeCompatibility re-evaluates every stored package against device and
	// writes only the verdicts that changed. It returns the number of rewritten packages.
	RecomputeCompatibility(ctx context.Context, device platform.Device) (int, error)

	Close() error
}

// Tx is one atomic unit of catalog mutation.
type Tx interface {
	// LoadApps returns the repository's stored applications, keyed by id, with packages attached.
	LoadApps(ctx context.Context, repoID int64) (map[string]*model.App, error)

	InsertApp(ctx context.Context, app *model.App) error
	UpdateApp(ctx context.Context, app *model.App) error
	DeleteApp(ctx context.Context, repoID int64, appID string) error

	InsertPackage(ctx context.Context, pkg *model.Package) error
	UpdatePackage(ctx context.Context, pkg *model.Package) error
	DeletePackage(ctx context.Context, repoID int64, key model.PackageKey) error

	UpdateRepoMetadata(ctx context.Context, repoID int64, update model.RepoUpdate) error

	Commit() error
	Rollback() error
}
