package fetch

import (
	"net/url"

	"github.com/glorpus-work/appcat/pkg/auth"
	"github.com/glorpus-work/appcat/pkg/fsutil"
)

// Request describes one conditional index download.
type Request struct {
	Repo string // repository display name, used in errors
	URL  string
	ETag string // validator from the previous successful fetch; empty forces a full download
	Auth auth.Authenticator
}

// Result is the outcome of FetchIndex. When Unchanged is set there is no file.
type Result struct {
	Unchanged bool
	Path      string
	ETag      string
}

// Cleanup removes the downloaded file. Safe on a nil or unchanged result.
func (r *Result) Cleanup() {
	if r == nil {
		return
	}
	fsutil.RemoveFunc(r.Path)()
}

// Item represents one remote resource of a batch download.
type Item struct {
	ID       string   // stable identifier. Must be unique within a batch.
	URL      *url.URL // source URL to download
	Checksum string   // optional hex-encoded SHA-256 checksum; if provided, will be verified
	Filename string   // optional preferred filename; if empty, a name will be derived
	Auth     auth.Authenticator
}

// Options control batch downloads.
type Options struct {
	Dir         string // destination directory. Must be absolute.
	Concurrency int    // number of parallel downloads; if <=0, a sane default is used
}
