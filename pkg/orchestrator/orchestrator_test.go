package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fetch"
	"github.com/glorpus-work/appcat/pkg/index"
	"github.com/glorpus-work/appcat/pkg/model"
	ocmocks "github.com/glorpus-work/appcat/pkg/orchestrator/mocks"
	"github.com/glorpus-work/appcat/pkg/platform"
	"github.com/glorpus-work/appcat/pkg/verify"
)

type fixture struct {
	fetcher  *ocmocks.MockIndexFetcher
	verifier *ocmocks.MockSignatureVerifier
	parser   *ocmocks.MockIndexParser
	merger   *ocmocks.MockMerger
	catalog  *ocmocks.MockCatalog
	notifier *ocmocks.MockNotifier
	orch     *Orchestrator
	events   []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		fetcher:  ocmocks.NewMockIndexFetcher(ctrl),
		verifier: ocmocks.NewMockSignatureVerifier(ctrl),
		parser:   ocmocks.NewMockIndexParser(ctrl),
		merger:   ocmocks.NewMockMerger(ctrl),
		catalog:  ocmocks.NewMockCatalog(ctrl),
		notifier: ocmocks.NewMockNotifier(ctrl),
	}
	f.orch = &Orchestrator{
		Fetcher:  f.fetcher,
		Verifier: f.verifier,
		Parser:   f.parser,
		Merger:   f.merger,
		Catalog:  f.catalog,
		Notifier: f.notifier,
		Options:  Options{Device: platform.Device{SDK: 30}, Concurrency: 2},
		Hooks:    Hooks{OnEvent: func(e Event) { f.events = append(f.events, e) }},
	}
	return f
}

func repo(id int64, name string) *model.Repository {
	return &model.Repository{ID: id, Name: name, Address: "https://" + name + ".example/repo", Enabled: true}
}

func (f *fixture) statuses(name string) []model.Status {
	var out []model.Status
	for _, e := range f.events {
		if e.Repo == name {
			out = append(out, e.Status)
		}
	}
	return out
}

// expectCommit wires a successful verify, parse and merge for r.
func (f *fixture) expectCommit(r *model.Repository, apps ...*model.App) {
	f.verifier.EXPECT().Verify(gomock.Any(), r.Name, r.Trust(), "/nonexistent/"+r.Name).
		Return(&verify.Verified{IndexPath: "/nonexistent/" + r.Name + ".xml"}, nil)
	f.parser.EXPECT().Parse(gomock.Any(), r, "/nonexistent/"+r.Name+".xml", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *model.Repository, _ string, onApp func(*model.App)) (*index.Index, error) {
			for _, a := range apps {
				onApp(a)
			}
			return &index.Index{Apps: apps}, nil
		})
	f.merger.EXPECT().Merge(gomock.Any(), r, gomock.Any(), gomock.Any()).
		Return(model.MergeStats{AppsAdded: len(apps)}, nil)
}

func downloaded(name, etag string) *fetch.Result {
	return &fetch.Result{Path: "/nonexistent/" + name, ETag: etag}
}

func TestRun_Unchanged(t *testing.T) {
	f := newFixture(t)
	r := repo(1, "main")
	r.ETag = `"v1"`

	f.fetcher.EXPECT().FetchIndex(gomock.Any(), fetch.Request{Repo: "main", URL: r.IndexURL(), ETag: `"v1"`}).
		Return(&fetch.Result{Unchanged: true, ETag: `"v1"`}, nil)

	report, err := f.orch.Run(context.Background(), []*model.Repository{r})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, model.StatusUnchanged, report.Outcomes[0].Status)
	assert.True(t, report.Success())
	assert.False(t, report.Changed())
	assert.Equal(t, []model.Status{model.StatusFetching, model.StatusUnchanged}, f.statuses("main"))
}

func TestRun_PartialFailure(t *testing.T) {
	f := newFixture(t)
	broken, good := repo(1, "broken"), repo(2, "good")

	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req fetch.Request) (*fetch.Result, error) {
			if req.Repo == "broken" {
				return nil, pkgerrors.FetchError("broken", errors.New("connection refused"))
			}
			return downloaded("good", `"g1"`), nil
		}).Times(2)
	f.expectCommit(good, &model.App{ID: "a"})
	f.catalog.EXPECT().RecomputeCompatibility(gomock.Any(), f.orch.Options.Device).Return(0, nil)
	f.notifier.EXPECT().SyncFailed(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, o model.Outcome) error {
			assert.Equal(t, "broken", o.Repo.Name)
			return nil
		})
	f.notifier.EXPECT().CatalogChanged(gomock.Any(), gomock.Any()).Return(errors.New("hook exploded"))

	report, err := f.orch.Run(context.Background(), []*model.Repository{broken, good})
	require.NoError(t, err)

	assert.False(t, report.Success())
	assert.True(t, report.Changed())
	assert.True(t, report.AnySucceeded())
	assert.Equal(t, model.StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, pkgerrors.KindFetch, pkgerrors.KindOf(report.Outcomes[0].Err))
	assert.Equal(t, model.StatusCommitted, report.Outcomes[1].Status)
	assert.Equal(t, `"g1"`, report.Outcomes[1].Repo.ETag)
	assert.Contains(t, report.ErrorMessage(), "connection refused")
}

func TestRun_SignatureRejectionSkipsParser(t *testing.T) {
	f := newFixture(t)
	r := repo(1, "signed")
	r.Fingerprint = "aa"

	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).Return(downloaded("signed", ""), nil)
	f.verifier.EXPECT().Verify(gomock.Any(), "signed", model.Signed("aa", ""), "/nonexistent/signed").
		Return(nil, pkgerrors.SignatureError("signed", pkgerrors.ErrMultipleCertificates))
	f.notifier.EXPECT().SyncFailed(gomock.Any(), gomock.Any()).Return(nil)

	report, err := f.orch.Run(context.Background(), []*model.Repository{r})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, pkgerrors.KindSignature, pkgerrors.KindOf(report.Outcomes[0].Err))
	assert.ErrorIs(t, report.Outcomes[0].Err, pkgerrors.ErrMultipleCertificates)
	assert.Equal(t, []model.Status{model.StatusFetching, model.StatusVerifying, model.StatusFailed}, f.statuses("signed"))
}

func TestRun_ParseAndMergeErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, r *model.Repository)
		kind  pkgerrors.Kind
	}{
		{"parse", func(f *fixture, r *model.Repository) {
			f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&verify.Verified{IndexPath: "x"}, nil)
			f.parser.EXPECT().Parse(gomock.Any(), r, "x", gomock.Any()).Return(nil, pkgerrors.ErrUnexpectedNesting)
		}, pkgerrors.KindParse},
		{"merge", func(f *fixture, r *model.Repository) {
			f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&verify.Verified{IndexPath: "x"}, nil)
			f.parser.EXPECT().Parse(gomock.Any(), r, "x", gomock.Any()).Return(&index.Index{}, nil)
			f.merger.EXPECT().Merge(gomock.Any(), r, gomock.Any(), gomock.Any()).Return(model.MergeStats{}, errors.New("disk full"))
		}, pkgerrors.KindMerge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orch.Notifier = nil
			r := repo(1, "main")
			f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).Return(downloaded("main", ""), nil)
			tt.setup(f, r)

			report, err := f.orch.Run(context.Background(), []*model.Repository{r})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, pkgerrors.KindOf(report.Outcomes[0].Err))
			assert.False(t, report.Changed())
		})
	}
}

func TestRun_MergeMetadataAndEscalation(t *testing.T) {
	tests := []struct {
		name      string
		repo      func() *model.Repository
		verified  *verify.Verified
		inline    string
		wantKey   string
		escalated bool
	}{
		{
			name:      "unsigned index announces key",
			repo:      func() *model.Repository { return repo(1, "main") },
			verified:  &verify.Verified{IndexPath: "x"},
			inline:    "ABCD",
			wantKey:   "abcd",
			escalated: true,
		},
		{
			name: "fingerprint pinned repository records its certificate",
			repo: func() *model.Repository {
				r := repo(1, "main")
				r.Fingerprint = "ff"
				return r
			},
			verified:  &verify.Verified{IndexPath: "x", PubKey: "cafe"},
			inline:    "ignored",
			wantKey:   "cafe",
			escalated: true,
		},
		{
			name: "stored key is kept",
			repo: func() *model.Repository {
				r := repo(1, "main")
				r.PubKey = "beef"
				return r
			},
			verified: &verify.Verified{IndexPath: "x", PubKey: "beef"},
			inline:   "cafe",
			wantKey:  "beef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orch.Notifier = nil
			r := tt.repo()
			maxAge, version := 14, 21

			f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).Return(downloaded("main", `"e2"`), nil)
			f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.verified, nil)
			f.parser.EXPECT().Parse(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&index.Index{
				Repo: index.RepoMeta{Name: "Announced", PubKey: tt.inline, MaxAge: &maxAge, Version: &version, Timestamp: 42},
				Apps: []*model.App{{ID: "a", Packages: []*model.Package{{VersionCode: 1, MinSDK: 99}}}},
			}, nil)
			f.merger.EXPECT().Merge(gomock.Any(), r, gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ *model.Repository, idx *index.Index, u model.RepoUpdate) (model.MergeStats, error) {
					assert.Equal(t, `"e2"`, u.ETag)
					assert.Equal(t, tt.wantKey, u.PubKey)
					assert.Equal(t, "Announced", u.Name)
					require.NotNil(t, u.Version)
					assert.Equal(t, 21, *u.Version)
					require.NotNil(t, u.MaxAge)
					assert.Equal(t, 14, *u.MaxAge)
					assert.Nil(t, u.Description, "undeclared description stays unset")
					assert.False(t, u.LastUpdated.IsZero())
					pkg := idx.Apps[0].Packages[0]
					assert.False(t, pkg.Compatible, "packages are annotated before merging")
					assert.Equal(t, model.ReasonPlatformTooNew, pkg.IncompatibleReason)
					return model.MergeStats{AppsAdded: 1}, nil
				})
			f.catalog.EXPECT().RecomputeCompatibility(gomock.Any(), gomock.Any()).Return(0, nil)

			report, err := f.orch.Run(context.Background(), []*model.Repository{r})
			require.NoError(t, err)
			outcome := report.Outcomes[0]
			assert.Equal(t, model.StatusCommitted, outcome.Status)
			assert.Equal(t, tt.escalated, outcome.Escalated)
			assert.Equal(t, tt.wantKey, outcome.Repo.PubKey)
			assert.Equal(t, []model.Status{
				model.StatusFetching, model.StatusVerifying, model.StatusParsing, model.StatusMerging, model.StatusCommitted,
			}, f.statuses("main"))
		})
	}
}

func TestRun_SkipsDisabled(t *testing.T) {
	f := newFixture(t)
	r := repo(1, "off")
	r.Enabled = false

	report, err := f.orch.Run(context.Background(), []*model.Repository{r, nil})
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.True(t, report.Success())
}

func TestRun_NotConfigured(t *testing.T) {
	_, err := (&Orchestrator{}).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRun_BoundsConcurrentFetches(t *testing.T) {
	f := newFixture(t)
	f.orch.Options.Concurrency = 2

	var inFlight, peak atomic.Int32
	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ fetch.Request) (*fetch.Result, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return &fetch.Result{Unchanged: true}, nil
		}).Times(5)

	var repos []*model.Repository
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		repos = append(repos, repo(int64(i+1), name))
	}
	report, err := f.orch.Run(context.Background(), repos)
	require.NoError(t, err)
	assert.Len(t, report.Outcomes, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for i, o := range report.Outcomes {
		assert.Equal(t, repos[i].Name, o.Repo.Name, "report keeps input order")
	}
}

func TestRun_CancelledBeforeMerge(t *testing.T) {
	f := newFixture(t)
	f.orch.Notifier = nil
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ fetch.Request) (*fetch.Result, error) {
			cancel()
			return downloaded("main", ""), nil
		})

	report, err := f.orch.Run(ctx, []*model.Repository{repo(1, "main")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, context.Canceled)
	assert.Equal(t, pkgerrors.KindFetch, pkgerrors.KindOf(report.Outcomes[0].Err))
}

func TestRun_SingleWriter(t *testing.T) {
	f := newFixture(t)
	f.orch.Options.RejectIfBusy = true

	started := make(chan struct{})
	release := make(chan struct{})
	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ fetch.Request) (*fetch.Result, error) {
			close(started)
			<-release
			return &fetch.Result{Unchanged: true}, nil
		})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.orch.Run(context.Background(), []*model.Repository{repo(1, "main")})
		assert.NoError(t, err)
	}()
	<-started

	_, err := f.orch.Run(context.Background(), []*model.Repository{repo(1, "main")})
	assert.ErrorIs(t, err, pkgerrors.ErrSyncInProgress)

	f.orch.Options.RejectIfBusy = false
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.orch.Run(ctx, []*model.Repository{repo(1, "main")})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "waiting honours the context")

	close(release)
	wg.Wait()
}

func TestRun_FetchesIcons(t *testing.T) {
	f := newFixture(t)
	f.orch.Notifier = nil
	f.orch.Options.FetchIcons = true
	f.orch.Options.IconDir = t.TempDir()
	r := repo(4, "main")

	f.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).Return(downloaded("main", ""), nil)
	f.expectCommit(r, &model.App{ID: "a", Icon: "a.png"}, &model.App{ID: "b"})
	f.catalog.EXPECT().RecomputeCompatibility(gomock.Any(), gomock.Any()).Return(1, nil)
	f.fetcher.EXPECT().FetchAll(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []fetch.Item, opts fetch.Options) (map[string]string, error) {
			require.Len(t, items, 1)
			assert.Equal(t, "4/a.png", items[0].Filename)
			assert.Equal(t, "https://main.example/repo/icons/a.png", items[0].URL.String())
			assert.Equal(t, f.orch.Options.IconDir, opts.Dir)
			return nil, errors.New("icon host down")
		})

	report, err := f.orch.Run(context.Background(), []*model.Repository{r})
	require.NoError(t, err)
	assert.True(t, report.Success(), "icon failures never fail the run")
}

func TestRun_LockFileSharedAcrossOrchestrators(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "state", "sync.lock")
	first := newFixture(t)
	first.orch.Options.LockFile = lockPath
	second := newFixture(t)
	second.orch.Options.LockFile = lockPath

	started := make(chan struct{})
	release := make(chan struct{})
	first.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ fetch.Request) (*fetch.Result, error) {
			close(started)
			<-release
			return &fetch.Result{Unchanged: true}, nil
		})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := first.orch.Run(context.Background(), []*model.Repository{repo(1, "main")})
		assert.NoError(t, err)
	}()
	<-started

	second.orch.Options.RejectIfBusy = true
	_, err := second.orch.Run(context.Background(), []*model.Repository{repo(1, "main")})
	assert.ErrorIs(t, err, pkgerrors.ErrSyncInProgress, "a sync holding the lock file rejects another orchestrator")

	second.orch.Options.RejectIfBusy = false
	ctx, cancel := context.WithTimeout(context.Background(), 3*lockPollInterval)
	defer cancel()
	_, err = second.orch.Run(ctx, []*model.Repository{repo(1, "main")})
	assert.ErrorIs(t, err, context.DeadlineExceeded, "waiting on the lock file honours the context")

	close(release)
	wg.Wait()

	second.fetcher.EXPECT().FetchIndex(gomock.Any(), gomock.Any()).Return(&fetch.Result{Unchanged: true}, nil)
	report, err := second.orch.Run(context.Background(), []*model.Repository{repo(1, "main")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnchanged, report.Outcomes[0].Status, "lock file is free once the first run ends")
}
