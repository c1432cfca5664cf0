// Package model holds the catalog records shared by the fetch, parse, merge and storage layers.
package model

import (
	"strings"
	"time"
)

// Repository is a configured remote catalog source. Address is unique within the catalog.
type Repository struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Fingerprint string    `json:"fingerprint,omitempty"` // hex SHA-256 of the signing certificate
	PubKey      string    `json:"pubkey,omitempty"`      // hex-encoded signing certificate
	ETag        string    `json:"etag,omitempty"`
	MaxAge      int       `json:"max_age,omitempty"` // days
	Version     int       `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   int64     `json:"timestamp,omitempty"`
	Priority    int       `json:"priority"`
	Enabled     bool      `json:"enabled"`
	LastUpdated time.Time `json:"last_updated,omitempty"`

	// ConfiguredPubKey is the key the configuration pinned; PubKey may differ after escalation.
	ConfiguredPubKey string `json:"-"`
}

// TrustKind selects how a repository's index is authenticated.
type TrustKind int

const (
	TrustUnsigned TrustKind = iota
	TrustSigned
)

func (k TrustKind) String() string {
	if k == TrustSigned {
		return "signed"
	}
	return "unsigned"
}

// TrustMode is the tagged trust variant consumed by the verify step.
type TrustMode struct {
	Kind        TrustKind
	Fingerprint string
	PubKey      string
}

// Unsigned returns the trust mode of a repository without trust material.
func Unsigned() TrustMode { return TrustMode{Kind: TrustUnsigned} }

// Signed returns a trust mode pinned to a certificate fingerprint and/or an encoded certificate.
func Signed(fingerprint, pubKey string) TrustMode {
	return TrustMode{
		Kind:        TrustSigned,
		Fingerprint: strings.ToLower(strings.TrimSpace(fingerprint)),
		PubKey:      strings.ToLower(strings.TrimSpace(pubKey)),
	}
}

// Trust derives the repository's trust mode from the material it carries.
func (r *Repository) Trust() TrustMode {
	if r.Fingerprint == "" && r.PubKey == "" {
		return Unsigned()
	}
	return Signed(r.Fingerprint, r.PubKey)
}

// IndexURL returns the index location for the repository's trust mode.
func (r *Repository) IndexURL() string {
	base := strings.TrimRight(r.Address, "/")
	if r.Trust().Kind == TrustSigned {
		return base + "/index.jar"
	}
	return base + "/index.xml"
}

// IconURL returns the location of an icon published by the repository.
func (r *Repository) IconURL(icon string) string {
	return strings.TrimRight(r.Address, "/") + "/icons/" + icon
}

// DisplayName returns Name, falling back to Address.
func (r *Repository) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Address
}

// RepoUpdate carries the repository fields written in the same transaction as a merge.
type RepoUpdate struct {
	ETag        string
	PubKey      string
	Name        string
	// Nil when the index does not declare the value; the stored value is kept.
	Description *string
	MaxAge      *int
	Version     *int
	Timestamp   int64
	LastUpdated time.Time
}
