package model

import (
	"slices"
	"time"
)

// App is one application advertised by a repository.
type App struct {
	RepoID               int64      `json:"repo_id"`
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Summary              string     `json:"summary,omitempty"`
	Icon                 string     `json:"icon,omitempty"`
	Description          string     `json:"description,omitempty"`
	License              string     `json:"license,omitempty"`
	Categories           []string   `json:"categories,omitempty"`
	WebURL               string     `json:"web_url,omitempty"`
	SourceURL            string     `json:"source_url,omitempty"`
	TrackerURL           string     `json:"tracker_url,omitempty"`
	DonateURL            string     `json:"donate_url,omitempty"`
	Added                time.Time  `json:"added,omitempty"`
	LastUpdated          time.Time  `json:"last_updated,omitempty"`
	AntiFeatures         []string   `json:"anti_features,omitempty"`
	Requirements         []string   `json:"requirements,omitempty"`
	SuggestedVersionName string     `json:"suggested_version_name,omitempty"`
	SuggestedVersionCode int        `json:"suggested_version_code,omitempty"`
	Packages             []*Package `json:"packages,omitempty"`
}

// SameFields reports whether the stored metadata of a and b is identical. Packages are not compared.
func (a *App) SameFields(b *App) bool {
	return a.Name == b.Name &&
		a.Summary == b.Summary &&
		a.Icon == b.Icon &&
		a.Description == b.Description &&
		a.License == b.License &&
		slices.Equal(a.Categories, b.Categories) &&
		a.WebURL == b.WebURL &&
		a.SourceURL == b.SourceURL &&
		a.TrackerURL == b.TrackerURL &&
		a.DonateURL == b.DonateURL &&
		a.Added.Equal(b.Added) &&
		a.LastUpdated.Equal(b.LastUpdated) &&
		slices.Equal(a.AntiFeatures, b.AntiFeatures) &&
		slices.Equal(a.Requirements, b.Requirements) &&
		a.SuggestedVersionName == b.SuggestedVersionName &&
		a.SuggestedVersionCode == b.SuggestedVersionCode
}

// Reason explains why a package cannot run on the device.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonPlatformTooNew Reason = "platform-version-too-new"
	ReasonPlatformTooOld Reason = "platform-version-too-old"
	ReasonMissingFeature Reason = "missing-feature"
	ReasonUnsupportedABI Reason = "unsupported-architecture"
)

// PackageKey identifies a package within one repository.
type PackageKey struct {
	AppID       string
	VersionCode int
}

// Package is one installable build of an App, scoped to a single repository.
type Package struct {
	RepoID             int64     `json:"repo_id"`
	AppID              string    `json:"app_id"`
	Version            string    `json:"version"`
	VersionCode        int       `json:"version_code"`
	ApkName            string    `json:"apk_name,omitempty"`
	SrcName            string    `json:"src_name,omitempty"`
	Hash               string    `json:"hash,omitempty"`
	HashType           string    `json:"hash_type,omitempty"`
	Size               int64     `json:"size,omitempty"`
	Sig                string    `json:"sig,omitempty"`
	MinSDK             int       `json:"min_sdk,omitempty"`
	MaxSDK             int       `json:"max_sdk,omitempty"`
	TargetSDK          int       `json:"target_sdk,omitempty"`
	Added              time.Time `json:"added,omitempty"`
	Permissions        []string  `json:"permissions,omitempty"`
	Features           []string  `json:"features,omitempty"`
	NativeCode         []string  `json:"native_code,omitempty"`
	Compatible         bool      `json:"compatible"`
	IncompatibleReason Reason    `json:"incompatible_reason,omitempty"`
}

// Key returns the package's identity within its repository.
func (p *Package) Key() PackageKey {
	return PackageKey{AppID: p.AppID, VersionCode: p.VersionCode}
}

// SameFields reports whether every stored field of p and q is identical, including the compatibility verdict.
func (p *Package) SameFields(q *Package) bool {
	return p.Version == q.Version &&
		p.ApkName == q.ApkName &&
		p.SrcName == q.SrcName &&
		p.Hash == q.Hash &&
		p.HashType == q.HashType &&
		p.Size == q.Size &&
		p.Sig == q.Sig &&
		p.MinSDK == q.MinSDK &&
		p.MaxSDK == q.MaxSDK &&
		p.TargetSDK == q.TargetSDK &&
		p.Added.Equal(q.Added) &&
		slices.Equal(p.Permissions, q.Permissions) &&
		slices.Equal(p.Features, q.Features) &&
		slices.Equal(p.NativeCode, q.NativeCode) &&
		p.Compatible == q.Compatible &&
		p.IncompatibleReason == q.IncompatibleReason
}
