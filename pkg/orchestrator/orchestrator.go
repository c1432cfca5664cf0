// Package orchestrator sequences the per-repository sync pipeline:
// fetch, verify, parse, merge.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/glorpus-work/appcat/internal/logger"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fetch"
	"github.com/glorpus-work/appcat/pkg/fsutil"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/platform"
	"github.com/glorpus-work/appcat/pkg/verify"
)

// Orchestrator ties the fetch, verify, parse and merge stages together.
// Only one Run executes at a time.
type Orchestrator struct {
	Fetcher  IndexFetcher
	Verifier SignatureVerifier
	Parser   IndexParser
	Merger   Merger
	Catalog  Catalog  // optional; compatibility pass after a changed run
	Notifier Notifier // optional
	Options  Options
	Hooks    Hooks

	lockOnce sync.Once
	lock     chan struct{}
	fileLock *fsutil.FileLock
}

// lockPollInterval paces retries on a lock file held by another process.
const lockPollInterval = 100 * time.Millisecond

type fetched struct {
	index  int
	result *fetch.Result
	err    error
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// acquire takes the in-process lock, then the lock file when one is configured.
func (o *Orchestrator) acquire(ctx context.Context) error {
	o.lockOnce.Do(func() { o.lock = make(chan struct{}, 1) })
	if o.Options.RejectIfBusy {
		select {
		case o.lock <- struct{}{}:
		default:
			return pkgerrors.ErrSyncInProgress
		}
	} else {
		select {
		case o.lock <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if o.Options.LockFile == "" {
		return nil
	}
	if err := o.acquireFile(ctx); err != nil {
		<-o.lock
		return err
	}
	return nil
}

func (o *Orchestrator) acquireFile(ctx context.Context) error {
	if o.fileLock == nil || o.fileLock.Path() != o.Options.LockFile {
		o.fileLock = fsutil.NewFileLock(o.Options.LockFile)
	}
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	logged := false
	for {
		ok, err := o.fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		if ok {
			return nil
		}
		if o.Options.RejectIfBusy {
			return pkgerrors.ErrSyncInProgress
		}
		if !logged {
			logger.Info("Waiting for another sync to finish", logger.Fields{"lock": o.Options.LockFile})
			logged = true
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) release() {
	if o.fileLock != nil {
		if err := o.fileLock.Unlock(); err != nil {
			logger.Warn("Failed to release sync lock", logger.Fields{"error": err.Error()})
		}
	}
	<-o.lock
}

func (o *Orchestrator) validate() error {
	switch {
	case o.Fetcher == nil:
		return fmt.Errorf("fetcher is not configured")
	case o.Verifier == nil:
		return fmt.Errorf("verifier is not configured")
	case o.Parser == nil:
		return fmt.Errorf("parser is not configured")
	case o.Merger == nil:
		return fmt.Errorf("merger is not configured")
	}
	return nil
}

// Run syncs the enabled repositories among repos. A failing repository never stops the
// others; its outcome carries the classified error. The report lists outcomes in the
// order of repos. The returned error is only set when the run could not start.
//
// Fetches run in parallel up to Options.Concurrency; verification, parsing and merging
// handle one repository at a time in the order fetches complete. Cancelling ctx fails
// the repositories whose merge has not begun.
func (o *Orchestrator) Run(ctx context.Context, repos []*model.Repository) (*model.Report, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if err := o.acquire(ctx); err != nil {
		return nil, err
	}
	defer o.release()

	var enabled []*model.Repository
	for _, repo := range repos {
		if repo != nil && repo.Enabled {
			enabled = append(enabled, repo)
		}
	}

	report := &model.Report{Outcomes: make([]model.Outcome, len(enabled))}
	for i, repo := range enabled {
		report.Outcomes[i] = model.Outcome{Repo: repo, Status: model.StatusPending}
		emit(o.Hooks, Event{Repo: repo.DisplayName(), Status: model.StatusFetching})
	}

	var icons []fetch.Item
	for f := range o.fetchAll(ctx, enabled) {
		repo := enabled[f.index]
		if err := ctx.Err(); err != nil && f.err == nil {
			f.result.Cleanup()
			f.err = err
		}
		outcome, repoIcons := o.process(ctx, repo, f)
		report.Outcomes[f.index] = outcome
		icons = append(icons, repoIcons...)
	}

	o.finish(ctx, report, icons)
	return report, nil
}

// fetchAll starts one bounded fetch per repository and delivers results as they complete.
func (o *Orchestrator) fetchAll(ctx context.Context, repos []*model.Repository) <-chan fetched {
	out := make(chan fetched, len(repos))
	limit := o.Options.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out <- fetched{index: i, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			res, err := o.Fetcher.FetchIndex(ctx, fetch.Request{
				Repo: repo.DisplayName(),
				URL:  repo.IndexURL(),
				ETag: repo.ETag,
				Auth: o.Options.Auth[repo.Address],
			})
			out <- fetched{index: i, result: res, err: err}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// process runs the sequential stages for one fetched repository.
func (o *Orchestrator) process(ctx context.Context, repo *model.Repository, f fetched) (model.Outcome, []fetch.Item) {
	name := repo.DisplayName()
	outcome := model.Outcome{Repo: repo}
	fail := func(err error) (model.Outcome, []fetch.Item) {
		outcome.Status = model.StatusFailed
		outcome.Err = err
		logger.Warn("Repository sync failed", logger.Fields{
			"repo":  name,
			"stage": pkgerrors.KindOf(err).String(),
			"error": err,
		})
		emit(o.Hooks, Event{Repo: name, Status: model.StatusFailed, Msg: err.Error()})
		return outcome, nil
	}

	if f.err != nil {
		return fail(pkgerrors.FetchError(name, f.err))
	}
	defer f.result.Cleanup()

	if f.result.Unchanged {
		outcome.Status = model.StatusUnchanged
		logger.Debug("Index unchanged", logger.Fields{"repo": name, "stage": "fetch"})
		emit(o.Hooks, Event{Repo: name, Status: model.StatusUnchanged})
		return outcome, nil
	}

	emit(o.Hooks, Event{Repo: name, Status: model.StatusVerifying})
	trust := repo.Trust()
	verified, err := o.Verifier.Verify(ctx, name, trust, f.result.Path)
	if err != nil {
		return fail(pkgerrors.SignatureError(name, err))
	}
	defer verified.Cleanup()

	emit(o.Hooks, Event{Repo: name, Status: model.StatusParsing})
	var iconNames []string
	idx, err := o.Parser.Parse(ctx, repo, verified.IndexPath, func(app *model.App) {
		if app.Icon != "" {
			iconNames = append(iconNames, app.Icon)
		}
	})
	if err != nil {
		return fail(pkgerrors.ParseError(name, err))
	}
	platform.Annotate(o.Options.Device, idx.Apps)

	// A signed index proves its certificate; an unsigned one can only announce a key.
	announced := idx.Repo.PubKey
	if trust.Kind == model.TrustSigned {
		announced = verified.PubKey
	}
	trust, outcome.Escalated = verify.Escalate(trust, announced)
	if outcome.Escalated {
		logger.Info("Repository trust escalated", logger.Fields{"repo": name, "signed": true})
	}

	if err := ctx.Err(); err != nil {
		return fail(pkgerrors.FetchError(name, err))
	}

	update := model.RepoUpdate{
		ETag:        f.result.ETag,
		PubKey:      trust.PubKey,
		Name:        idx.Repo.Name,
		Description: idx.Repo.Description,
		MaxAge:      idx.Repo.MaxAge,
		Version:     idx.Repo.Version,
		Timestamp:   idx.Repo.Timestamp,
		LastUpdated: time.Now().UTC(),
	}
	emit(o.Hooks, Event{Repo: name, Status: model.StatusMerging})
	stats, err := o.Merger.Merge(ctx, repo, idx, update)
	if err != nil {
		return fail(pkgerrors.MergeError(name, err))
	}

	committed := *repo
	committed.ETag = update.ETag
	committed.PubKey = update.PubKey
	committed.LastUpdated = update.LastUpdated
	outcome.Repo = &committed
	outcome.Status = model.StatusCommitted
	outcome.Stats = stats
	logger.Info("Repository synced", logger.Fields{"repo": name, "stage": "merge", "apps": len(idx.Apps), "changes": stats.String()})
	emit(o.Hooks, Event{Repo: name, Status: model.StatusCommitted, Msg: stats.String()})

	return outcome, o.iconItems(repo, iconNames)
}

func (o *Orchestrator) iconItems(repo *model.Repository, names []string) []fetch.Item {
	if !o.Options.FetchIcons || o.Options.IconDir == "" {
		return nil
	}
	dir := strconv.FormatInt(repo.ID, 10)
	items := make([]fetch.Item, 0, len(names))
	for _, name := range names {
		u, err := url.Parse(repo.IconURL(name))
		if err != nil {
			logger.Debug("Skipping icon with invalid URL", logger.Fields{"repo": repo.DisplayName(), "icon": name})
			continue
		}
		items = append(items, fetch.Item{
			ID:       dir + "/" + name,
			URL:      u,
			Filename: path.Join(dir, path.Base(name)),
			Auth:     o.Options.Auth[repo.Address],
		})
	}
	return items
}

// finish runs the post-merge passes. None of them changes the report.
func (o *Orchestrator) finish(ctx context.Context, report *model.Report, icons []fetch.Item) {
	if report.Changed() && o.Catalog != nil {
		changed, err := o.Catalog.RecomputeCompatibility(context.WithoutCancel(ctx), o.Options.Device)
		if err != nil {
			logger.Warn("Compatibility pass failed", logger.Fields{"error": err})
		} else if changed > 0 {
			logger.Debug("Compatibility verdicts updated", logger.Fields{"packages": changed})
		}
	}

	if len(icons) > 0 && ctx.Err() == nil {
		fetchedIcons, err := o.Fetcher.FetchAll(ctx, icons, fetch.Options{Dir: o.Options.IconDir, Concurrency: o.Options.Concurrency})
		if err != nil {
			logger.Warn("Some icons could not be downloaded", logger.Fields{"error": err})
		}
		logger.Debug("Icons fetched", logger.Fields{"count": len(fetchedIcons)})
	}

	if o.Notifier == nil {
		return
	}
	for _, outcome := range report.Failed() {
		if err := o.Notifier.SyncFailed(ctx, outcome); err != nil {
			logger.Warn("Sync failure notification failed", logger.Fields{"repo": outcome.Repo.DisplayName(), "error": err})
		}
	}
	if report.Changed() {
		if err := o.Notifier.CatalogChanged(ctx, report); err != nil {
			logger.Warn("Catalog change notification failed", logger.Fields{"error": err})
		}
	}
}
