//go:generate mockgen -destination=./mocks/orchestrator.go . IndexFetcher,SignatureVerifier,IndexParser,Merger,Catalog,Notifier

package orchestrator

import (
	"context"

	"github.com/glorpus-work/appcat/pkg/auth"
	"github.com/glorpus-work/appcat/pkg/fetch"
	"github.com/glorpus-work/appcat/pkg/index"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/platform"
	"github.com/glorpus-work/appcat/pkg/verify"
)

// IndexFetcher downloads indexes and repository assets.
type IndexFetcher interface {
	FetchIndex(ctx context.Context, req fetch.Request) (*fetch.Result, error)
	FetchAll(ctx context.Context, items []fetch.Item, opts fetch.Options) (map[string]string, error)
}

// SignatureVerifier authenticates a downloaded index.
type SignatureVerifier interface {
	Verify(ctx context.Context, repo string, trust model.TrustMode, downloaded string) (*verify.Verified, error)
}

// IndexParser parses an authenticated index document. onApp is called for every application.
type IndexParser interface {
	Parse(ctx context.Context, repo *model.Repository, path string, onApp func(*model.App)) (*index.Index, error)
}

// Merger applies a parsed index to the catalog in one transaction.
type Merger interface {
	Merge(ctx context.Context, repo *model.Repository, idx *index.Index, update model.RepoUpdate) (model.MergeStats, error)
}

// Catalog is the subset of the catalog store used after merging.
type Catalog interface {
	RecomputeCompatibility(ctx context.Context, device platform.Device) (int, error)
}

// Notifier receives the results of a sync run.
type Notifier interface {
	CatalogChanged(ctx context.Context, report *model.Report) error
	SyncFailed(ctx context.Context, outcome model.Outcome) error
}

// Event is a repository state transition.
type Event struct {
	Repo   string
	Status model.Status
	Msg    string
}

// Hooks carries callbacks for progress events. OnEvent is only called from the goroutine running Run.
type Hooks struct {
	OnEvent func(Event)
}

// Options control a sync run.
type Options struct {
	Device       platform.Device
	Concurrency  int    // parallel index fetches; <= 0 means DefaultConcurrency
	RejectIfBusy bool   // fail with ErrSyncInProgress instead of waiting for a running sync
	LockFile     string // optional; held for the whole run so syncs in other processes wait or are rejected too
	FetchIcons   bool
	IconDir      string                        // absolute; icons are stored below <IconDir>/<repo id>/
	Auth         map[string]auth.Authenticator // keyed by repository address
}

// DefaultConcurrency bounds parallel index fetches when Options.Concurrency is unset.
const DefaultConcurrency = 3
