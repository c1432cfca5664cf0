package model

import (
	"fmt"
	"strings"
)

// Status is a repository's position in the sync state machine:
// Pending → Fetching → (Unchanged | Verifying) → Parsing → Merging → (Committed | Failed).
type Status int

const (
	StatusPending Status = iota
	StatusFetching
	StatusUnchanged
	StatusVerifying
	StatusParsing
	StatusMerging
	StatusCommitted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFetching:
		return "fetching"
	case StatusUnchanged:
		return "unchanged"
	case StatusVerifying:
		return "verifying"
	case StatusParsing:
		return "parsing"
	case StatusMerging:
		return "merging"
	case StatusCommitted:
		return "committed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition can follow s.
func (s Status) Terminal() bool {
	return s == StatusUnchanged || s == StatusCommitted || s == StatusFailed
}

// MergeStats counts the writes one merge applied.
type MergeStats struct {
	AppsAdded       int `json:"apps_added"`
	AppsUpdated     int `json:"apps_updated"`
	AppsRemoved     int `json:"apps_removed"`
	PackagesAdded   int `json:"packages_added"`
	PackagesUpdated int `json:"packages_updated"`
	PackagesRemoved int `json:"packages_removed"`
}

// Writes returns the total number of row mutations.
func (s MergeStats) Writes() int {
	return s.AppsAdded + s.AppsUpdated + s.AppsRemoved + s.PackagesAdded + s.PackagesUpdated + s.PackagesRemoved
}

func (s MergeStats) String() string {
	return fmt.Sprintf("apps +%d ~%d -%d, packages +%d ~%d -%d",
		s.AppsAdded, s.AppsUpdated, s.AppsRemoved, s.PackagesAdded, s.PackagesUpdated, s.PackagesRemoved)
}

// Outcome is the transient per-repository result of a sync run.
type Outcome struct {
	Repo      *Repository
	Status    Status
	Err       error
	Stats     MergeStats
	Escalated bool // trust material was escalated to signed during this run
}

// Report aggregates the outcomes of one sync run.
type Report struct {
	Outcomes []Outcome
}

// Success is true when no repository failed.
func (r *Report) Success() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Changed is true when at least one repository committed.
func (r *Report) Changed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusCommitted {
			return true
		}
	}
	return false
}

// AnySucceeded is true when at least one repository committed or was unchanged.
func (r *Report) AnySucceeded() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusCommitted || o.Status == StatusUnchanged {
			return true
		}
	}
	return false
}

// Failed returns the outcomes that ended in StatusFailed.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// ErrorMessage joins every repository error, one per line.
func (r *Report) ErrorMessage() string {
	msgs := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Failed() {
		if o.Err != nil {
			msgs = append(msgs, o.Err.Error())
		}
	}
	return strings.Join(msgs, "\n")
}
