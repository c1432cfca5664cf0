// Package fetch downloads repository indexes and auxiliary files over HTTP.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/auth"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
)

// DefaultUserAgent is sent when none is configured.
const DefaultUserAgent = "appcat/1.0"

// Fetcher is an HTTP client for conditional index downloads and batched file downloads.
type Fetcher struct {
	client    *http.Client
	userAgent string
	tempDir   string
}

// NewFetcher creates a fetcher. Index downloads are written below tempDir; an empty
// tempDir uses the system default.
func NewFetcher(timeout time.Duration, userAgent, tempDir string) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		tempDir:   tempDir,
	}
}

// FetchIndex performs a conditional GET of req.URL. A 304 reply yields an unchanged
// result without a file; a 200 reply is streamed to a temp file owned by the caller.
// Every failure is a fetch error for req.Repo and leaves no file behind.
func (f *Fetcher) FetchIndex(ctx context.Context, req Request) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, pkgerrors.FetchError(req.Repo, pkgerrors.Wrap(err, "failed to create request"))
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip, zstd")
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if err := auth.ApplyTo(req.Auth, httpReq); err != nil {
		return nil, pkgerrors.FetchError(req.Repo, err)
	}

	logger.Debug("Fetching index", logger.Fields{"repo": req.Repo, "url": req.URL, "etag": req.ETag})
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.FetchError(req.Repo, pkgerrors.Wrap(err, "download failed"))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		logger.Debug("Index not modified", logger.Fields{"repo": req.Repo})
		return &Result{Unchanged: true, ETag: req.ETag}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, pkgerrors.FetchError(req.Repo,
			fmt.Errorf("%w: %d from %s", pkgerrors.ErrUnexpectedStatus, resp.StatusCode, req.URL))
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, pkgerrors.FetchError(req.Repo, err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := fsutil.CreateTemp(f.tempDir, "index-*.tmp")
	if err != nil {
		return nil, pkgerrors.FetchError(req.Repo, err)
	}
	defer tmp.Cleanup()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return nil, pkgerrors.FetchError(req.Repo, pkgerrors.Wrap(err, "could not write index"))
	}
	if err := tmp.Finish(); err != nil {
		return nil, pkgerrors.FetchError(req.Repo, err)
	}

	logger.Debug("Index downloaded", logger.Fields{"repo": req.Repo, "bytes": n})
	return &Result{Path: tmp.Keep(), ETag: resp.Header.Get("ETag")}, nil
}

// decodeBody undoes the transfer compression the server applied.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to create gzip reader")
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to create zstd reader")
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q: %w", resp.Header.Get("Content-Encoding"), pkgerrors.ErrDownloadFailed)
	}
}

// FetchAll downloads items with bounded concurrency and returns the local paths of
// the items that succeeded, keyed by Item.ID. A failed item does not stop the others;
// their errors are joined into the returned error.
func (f *Fetcher) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]string, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = max(2, runtime.NumCPU()/2)
	}
	if opts.Dir == "" || !filepath.IsAbs(opts.Dir) {
		return nil, fmt.Errorf("download dir must be absolute: %w: %s", pkgerrors.ErrInvalidPath, opts.Dir)
	}
	if err := os.MkdirAll(opts.Dir, fsutil.DirModeSecure); err != nil {
		return nil, pkgerrors.Wrap(err, "could not create download dir")
	}

	byURL, err := buildURLIndex(items)
	if err != nil {
		return nil, err
	}
	results, errs := f.runDownloadWorkers(ctx, items, byURL, opts)
	return mapResultsByID(items, results), pkgerrors.Join(errs...)
}

func buildURLIndex(items []Item) (map[string][]int, error) {
	byURL := make(map[string][]int)
	for i, it := range items {
		if it.URL == nil {
			return nil, fmt.Errorf("item %d has nil URL: %w", i, pkgerrors.ErrDownloadFailed)
		}
		key := it.URL.String()
		byURL[key] = append(byURL[key], i)
	}
	return byURL, nil
}

func mapResultsByID(items []Item, results []string) map[string]string {
	out := make(map[string]string, len(items))
	for i, it := range items {
		if results[i] != "" {
			out[it.ID] = results[i]
		}
	}
	return out
}

func (f *Fetcher) runDownloadWorkers(ctx context.Context, items []Item, byURL map[string][]int, opts Options) ([]string, []error) {
	results := make([]string, len(items))
	var errs []error
	var mu sync.Mutex

	tasks := make(chan string)
	var wg sync.WaitGroup

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for urlStr := range tasks {
				idx := byURL[urlStr][0]
				path, err := f.fetchOne(ctx, items[idx], opts)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					for _, i := range byURL[urlStr] {
						results[i] = path
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, urlStr := range sortedKeys(byURL) {
		if ctx.Err() != nil {
			break
		}
		tasks <- urlStr
	}
	close(tasks)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return results, errs
}

func (f *Fetcher) fetchOne(ctx context.Context, item Item, opts Options) (string, error) {
	filename := selectFilename(item)
	absPath := filepath.Join(opts.Dir, filename)
	if !strings.HasPrefix(absPath, filepath.Clean(opts.Dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes %s", pkgerrors.ErrInvalidPath, filename, opts.Dir)
	}
	if reuse, ok := tryReuseExisting(absPath, item.Checksum); ok {
		return reuse, nil
	}
	resp, err := f.doRequest(ctx, item)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	tmp, err := fsutil.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Cleanup()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", pkgerrors.Wrap(err, "could not write file")
	}
	if err := tmp.Finish(); err != nil {
		return "", err
	}
	if item.Checksum != "" {
		ok, err := verifySHA256(tmp.Path(), item.Checksum)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("checksum mismatch for %s: %w", item.URL, pkgerrors.ErrDownloadFailed)
		}
	}
	if err := finalizeFile(tmp.Path(), absPath); err != nil {
		return "", err
	}
	tmp.Keep()
	return absPath, nil
}

func selectFilename(item Item) string {
	if item.Filename != "" {
		return item.Filename
	}
	if item.Checksum != "" {
		return item.Checksum
	}
	h := sha256.Sum256([]byte(item.URL.String()))
	return hex.EncodeToString(h[:])
}

func tryReuseExisting(absPath, checksum string) (string, bool) {
	if st, err := os.Stat(absPath); err == nil && st.Size() > 0 {
		if checksum == "" {
			return absPath, true
		}
		ok, err := verifySHA256(absPath, checksum)
		if err == nil && ok {
			return absPath, true
		}
	}
	return "", false
}

func (f *Fetcher) doRequest(ctx context.Context, item Item) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL.String(), http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	if err := auth.ApplyTo(item.Auth, req); err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "download failed")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %d for %s: %w", pkgerrors.ErrUnexpectedStatus, resp.StatusCode, item.URL, pkgerrors.ErrDownloadFailed)
	}
	return resp, nil
}

func finalizeFile(tmpPath, absPath string) error {
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return pkgerrors.Wrap(err, "could not finalize file")
	}
	if err := os.Chmod(absPath, fsutil.FileModeDefault); err != nil {
		return pkgerrors.Wrap(err, "could not set permissions")
	}
	return nil
}

func verifySHA256(path string, wantHex string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	got := hex.EncodeToString(h.Sum(nil))
	return got == strings.ToLower(strings.TrimSpace(wantHex)), nil
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
