package merge

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/appcat/pkg/catalog"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/index"
	"github.com/glorpus-work/appcat/pkg/model"
)

var errInjected = errors.New("injected failure")

func newStore(t *testing.T) (*catalog.SQLStore, *model.Repository) {
	t.Helper()
	store, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo := &model.Repository{Name: "main", Address: "https://main.example/repo", Enabled: true}
	require.NoError(t, store.AddRepository(context.Background(), repo))
	return store, repo
}

func app(id string, codes ...int) *model.App {
	a := &model.App{ID: id, Name: id}
	for _, code := range codes {
		a.Packages = append(a.Packages, &model.Package{AppID: id, VersionCode: code, Version: "1.0", Compatible: true})
	}
	return a
}

func indexOf(apps ...*model.App) *index.Index {
	return &index.Index{Apps: apps}
}

// snapshot returns the stored catalog as app id -> sorted version codes.
func snapshot(t *testing.T, store catalog.Store, repoID int64) map[string][]int {
	t.Helper()
	ctx := context.Background()
	apps, err := store.ListApps(ctx, catalog.AppFilter{RepoID: repoID})
	require.NoError(t, err)

	out := make(map[string][]int, len(apps))
	for _, a := range apps {
		pkgs, err := store.ListPackages(ctx, repoID, a.ID)
		require.NoError(t, err)
		codes := []int{}
		for i := len(pkgs) - 1; i >= 0; i-- {
			codes = append(codes, pkgs[i].VersionCode)
		}
		out[a.ID] = codes
	}
	return out
}

func TestMerge_VersionLifecycle(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t)
	engine := NewEngine(store)

	stats, err := engine.Merge(ctx, repo, indexOf(app("com.example.one", 5)), model.RepoUpdate{ETag: "e1"})
	require.NoError(t, err)
	assert.Equal(t, model.MergeStats{AppsAdded: 1, PackagesAdded: 1}, stats)
	assert.Equal(t, map[string][]int{"com.example.one": {5}}, snapshot(t, store, repo.ID))

	stats, err = engine.Merge(ctx, repo, indexOf(app("com.example.one", 5, 6)), model.RepoUpdate{ETag: "e2"})
	require.NoError(t, err)
	assert.Equal(t, model.MergeStats{PackagesAdded: 1}, stats)
	assert.Equal(t, map[string][]int{"com.example.one": {5, 6}}, snapshot(t, store, repo.ID))

	stats, err = engine.Merge(ctx, repo, indexOf(app("com.example.one", 6)), model.RepoUpdate{ETag: "e3"})
	require.NoError(t, err)
	assert.Equal(t, model.MergeStats{PackagesRemoved: 1}, stats)
	assert.Equal(t, map[string][]int{"com.example.one": {6}}, snapshot(t, store, repo.ID))

	stored, err := store.GetRepository(ctx, repo.Address)
	require.NoError(t, err)
	assert.Equal(t, "e3", stored.ETag)
}

func TestMerge_SweepsWithdrawnApps(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t)
	engine := NewEngine(store)

	_, err := engine.Merge(ctx, repo, indexOf(app("a", 1, 2), app("b", 1), app("c")), model.RepoUpdate{})
	require.NoError(t, err)

	changed := app("a", 2, 3)
	changed.Summary = "new summary"
	stats, err := engine.Merge(ctx, repo, indexOf(changed, app("d", 9)), model.RepoUpdate{})
	require.NoError(t, err)

	assert.Equal(t, model.MergeStats{
		AppsAdded:       1,
		AppsUpdated:     1,
		AppsRemoved:     2,
		PackagesAdded:   2,
		PackagesRemoved: 2,
	}, stats)
	assert.Equal(t, map[string][]int{"a": {2, 3}, "d": {9}}, snapshot(t, store, repo.ID))
}

func TestMerge_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t)
	engine := NewEngine(store)

	build := func() *index.Index { return indexOf(app("a", 1, 2), app("b", 3)) }

	_, err := engine.Merge(ctx, repo, build(), model.RepoUpdate{})
	require.NoError(t, err)
	stats, err := engine.Merge(ctx, repo, build(), model.RepoUpdate{})
	require.NoError(t, err)
	assert.Zero(t, stats.Writes())
}

func TestMerge_RepositoriesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, main := newStore(t)
	other := &model.Repository{Name: "other", Address: "https://other.example", Enabled: true}
	require.NoError(t, store.AddRepository(ctx, other))
	engine := NewEngine(store)

	_, err := engine.Merge(ctx, main, indexOf(app("shared", 1)), model.RepoUpdate{})
	require.NoError(t, err)
	_, err = engine.Merge(ctx, other, indexOf(app("shared", 2)), model.RepoUpdate{})
	require.NoError(t, err)
	_, err = engine.Merge(ctx, other, indexOf(), model.RepoUpdate{})
	require.NoError(t, err)

	assert.Equal(t, map[string][]int{"shared": {1}}, snapshot(t, store, main.ID))
	assert.Empty(t, snapshot(t, store, other.ID))
}

// failingStore hands out transactions that fail after a number of app inserts.
type failingStore struct {
	catalog.Store
	failAfter int
}

func (s *failingStore) Begin(ctx context.Context) (catalog.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, remaining: s.failAfter}, nil
}

type failingTx struct {
	catalog.Tx
	remaining int
}

func (tx *failingTx) InsertApp(ctx context.Context, a *model.App) error {
	if tx.remaining == 0 {
		return errInjected
	}
	tx.remaining--
	return tx.Tx.InsertApp(ctx, a)
}

func TestMerge_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store, repo := newStore(t)

	_, err := NewEngine(store).Merge(ctx, repo, indexOf(app("keep", 1), app("old", 1)), model.RepoUpdate{ETag: "before"})
	require.NoError(t, err)
	before := snapshot(t, store, repo.ID)

	var apps []*model.App
	for _, id := range []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"} {
		apps = append(apps, app(id, 1))
	}
	_, err = NewEngine(&failingStore{Store: store, failAfter: 3}).Merge(ctx, repo, indexOf(apps...), model.RepoUpdate{ETag: "after"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, pkgerrors.KindMerge, pkgerrors.KindOf(err))

	assert.Equal(t, before, snapshot(t, store, repo.ID))
	stored, err := store.GetRepository(ctx, repo.Address)
	require.NoError(t, err)
	assert.Equal(t, "before", stored.ETag, "metadata is part of the rolled back transaction")
}

func TestMerge_IgnoresCancellationOnceStarted(t *testing.T) {
	store, repo := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := NewEngine(store).Merge(ctx, repo, indexOf(app("a", 1)), model.RepoUpdate{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AppsAdded)
}

func TestCompute(t *testing.T) {
	stored := func() map[string]*model.App {
		a := app("a", 1, 2)
		b := app("b", 1)
		for _, x := range []*model.App{a, b} {
			x.RepoID = 7
			for _, p := range x.Packages {
				p.RepoID = 7
			}
		}
		return map[string]*model.App{"a": a, "b": b}
	}

	tests := []struct {
		name   string
		parsed []*model.App
		want   model.MergeStats
	}{
		{"no change", []*model.App{app("a", 1, 2), app("b", 1)}, model.MergeStats{}},
		{"empty index sweeps all", nil, model.MergeStats{AppsRemoved: 2, PackagesRemoved: 3}},
		{"package field change", func() []*model.App {
			a := app("a", 1, 2)
			a.Packages[1].Size = 10
			return []*model.App{a, app("b", 1)}
		}(), model.MergeStats{PackagesUpdated: 1}},
		{"compatibility verdict change", func() []*model.App {
			a := app("a", 1, 2)
			a.Packages[0].Compatible = false
			a.Packages[0].IncompatibleReason = model.ReasonMissingFeature
			return []*model.App{a, app("b", 1)}
		}(), model.MergeStats{PackagesUpdated: 1}},
		{"duplicates keep first", []*model.App{app("a", 1, 2, 2), app("b", 1), app("a", 9)}, model.MergeStats{}},
		{"new app with packages", []*model.App{app("a", 1, 2), app("b", 1), app("c", 1, 2)},
			model.MergeStats{AppsAdded: 1, PackagesAdded: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Compute(7, stored(), tt.parsed)
			assert.Equal(t, tt.want, plan.Stats())
			assert.Equal(t, tt.want.Writes() == 0, plan.Empty())
			for _, a := range plan.InsertApps {
				assert.Equal(t, int64(7), a.RepoID)
			}
			for _, p := range plan.InsertPackages {
				assert.Equal(t, int64(7), p.RepoID)
			}
		})
	}
}

// mergeDocument parses an index document and merges it with the metadata update a sync builds.
func mergeDocument(t *testing.T, engine *Engine, repo *model.Repository, doc string) {
	t.Helper()
	idx, err := (&index.Parser{RepoID: repo.ID}).Parse(strings.NewReader(doc))
	require.NoError(t, err)
	_, err = engine.Merge(context.Background(), repo, idx, model.RepoUpdate{
		Name:        idx.Repo.Name,
		Description: idx.Repo.Description,
		MaxAge:      idx.Repo.MaxAge,
		Version:     idx.Repo.Version,
		Timestamp:   idx.Repo.Timestamp,
	})
	require.NoError(t, err)
}

func TestMerge_KeepsUndeclaredRepoMetadata(t *testing.T) {
	store, repo := newStore(t)
	engine := NewEngine(store)
	stored := func() *model.Repository {
		r, err := store.GetRepository(context.Background(), repo.Address)
		require.NoError(t, err)
		return r
	}

	mergeDocument(t, engine, repo, `<fdroid><repo name="r" version="12" maxage="14"><description>hello</description></repo></fdroid>`)
	r := stored()
	assert.Equal(t, 12, r.Version)
	assert.Equal(t, 14, r.MaxAge)
	assert.Equal(t, "hello", r.Description)

	mergeDocument(t, engine, repo, `<fdroid><repo name="r"></repo></fdroid>`)
	r = stored()
	assert.Equal(t, 12, r.Version, "undeclared version keeps the stored one")
	assert.Equal(t, 14, r.MaxAge)
	assert.Equal(t, "hello", r.Description)

	mergeDocument(t, engine, repo, `<fdroid><repo name="r" version="9" maxage="0"><description></description></repo></fdroid>`)
	r = stored()
	assert.Equal(t, 12, r.Version, "version never decreases")
	assert.Zero(t, r.MaxAge, "declared values replace stored ones")
	assert.Empty(t, r.Description)

	mergeDocument(t, engine, repo, `<fdroid><repo name="r" version="13"></repo></fdroid>`)
	assert.Equal(t, 13, stored().Version)
}
