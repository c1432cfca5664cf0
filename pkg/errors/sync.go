package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a repository-scoped sync failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindFetch
	KindSignature
	KindParse
	KindMerge
)

// String returns the classification name used in reports and hook scripts.
func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "network"
	case KindSignature:
		return "signature"
	case KindParse:
		return "parse"
	case KindMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// SyncError is a failure of one repository's pipeline. It never aborts sibling repositories.
type SyncError struct {
	Kind Kind
	Repo string
	Err  error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Repo != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Repo, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func newSyncError(kind Kind, repo string, err error) error {
	if err == nil {
		return nil
	}
	var se *SyncError
	if stderrors.As(err, &se) && se.Kind == kind && se.Repo == repo {
		return err
	}
	return &SyncError{Kind: kind, Repo: repo, Err: err}
}

// FetchError marks a transport or HTTP status failure.
func FetchError(repo string, err error) error { return newSyncError(KindFetch, repo, err) }

// SignatureError marks a missing, ambiguous or mismatched trust proof.
func SignatureError(repo string, err error) error { return newSyncError(KindSignature, repo, err) }

// ParseError marks a malformed index document.
func ParseError(repo string, err error) error { return newSyncError(KindParse, repo, err) }

// MergeError marks a failed storage transaction. The transaction is rolled back before it surfaces.
func MergeError(repo string, err error) error { return newSyncError(KindMerge, repo, err) }

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join returns an error wrapping every non-nil error in errs, or nil.
func Join(errs ...error) error { return stderrors.Join(errs...) }
