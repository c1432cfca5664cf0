package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepositoryTrust(t *testing.T) {
	tests := []struct {
		name     string
		repo     Repository
		kind     TrustKind
		indexURL string
	}{
		{"no material", Repository{Address: "https://f.example/repo/"}, TrustUnsigned, "https://f.example/repo/index.xml"},
		{"fingerprint", Repository{Address: "https://f.example/repo", Fingerprint: "AB12"}, TrustSigned, "https://f.example/repo/index.jar"},
		{"pubkey", Repository{Address: "https://f.example/repo", PubKey: "3082"}, TrustSigned, "https://f.example/repo/index.jar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.repo.Trust().Kind)
			assert.Equal(t, tt.indexURL, tt.repo.IndexURL())
		})
	}

	assert.Equal(t, "ab12", Signed(" AB12 ", "").Fingerprint)
	assert.Equal(t, "https://f.example/repo/icons/a.png", (&Repository{Address: "https://f.example/repo/"}).IconURL("a.png"))
}

func TestPackageSameFields(t *testing.T) {
	added := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	a := &Package{AppID: "a", VersionCode: 5, Version: "1.0", Added: added, Permissions: []string{"INTERNET"}}
	b := &Package{AppID: "a", VersionCode: 5, Version: "1.0", Added: added.In(time.FixedZone("x", 3600)), Permissions: []string{"INTERNET"}}
	assert.True(t, a.SameFields(b))

	b.Permissions = nil
	assert.False(t, a.SameFields(b))

	assert.True(t, (&Package{}).SameFields(&Package{Features: []string{}}), "nil and empty lists are equal")
	assert.Equal(t, PackageKey{AppID: "a", VersionCode: 5}, a.Key())
}

func TestAppSameFields(t *testing.T) {
	a := &App{ID: "x", Name: "X", Categories: []string{"Internet"}}
	b := &App{ID: "x", Name: "X", Categories: []string{"Internet"}, Packages: []*Package{{}}}
	assert.True(t, a.SameFields(b), "packages are not part of app identity")

	b.Summary = "changed"
	assert.False(t, a.SameFields(b))
}

func TestReport(t *testing.T) {
	r := &Report{Outcomes: []Outcome{
		{Repo: &Repository{Name: "a"}, Status: StatusCommitted},
		{Repo: &Repository{Name: "b"}, Status: StatusUnchanged},
	}}
	assert.True(t, r.Success())
	assert.True(t, r.Changed())
	assert.Empty(t, r.ErrorMessage())

	r.Outcomes = append(r.Outcomes,
		Outcome{Repo: &Repository{Name: "c"}, Status: StatusFailed, Err: errors.New("c failed")},
		Outcome{Repo: &Repository{Name: "d"}, Status: StatusFailed, Err: errors.New("d failed")},
	)
	assert.False(t, r.Success())
	assert.True(t, r.AnySucceeded())
	assert.Len(t, r.Failed(), 2)
	assert.Equal(t, "c failed\nd failed", r.ErrorMessage())
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "verifying", StatusVerifying.String())
	assert.True(t, StatusUnchanged.Terminal())
	assert.False(t, StatusMerging.Terminal())
	assert.Equal(t, 3, MergeStats{AppsAdded: 1, PackagesAdded: 1, PackagesRemoved: 1}.Writes())
}
