package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/appcat/pkg/auth"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
)

const indexBody = `<fdroid><repo name="Test"/></fdroid>`

func TestNewFetcher(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		expectedUA string
	}{
		{name: "default user agent", expectedUA: DefaultUserAgent},
		{name: "custom user agent", userAgent: "test-agent/1.0", expectedUA: "test-agent/1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(time.Second, tt.userAgent, "")
			require.NotNil(t, f)
			assert.Equal(t, time.Second, f.client.Timeout)
			assert.Equal(t, tt.expectedUA, f.userAgent)
		})
	}
}

func TestFetchIndex(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		etag        string
		unchanged   bool
		wantETag    string
		expectError bool
	}{
		{
			name: "full download stores new etag",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("ETag", `"v2"`)
				_, _ = w.Write([]byte(indexBody))
			},
			wantETag: `"v2"`,
		},
		{
			name: "matching etag is unchanged",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("If-None-Match") == `"v1"` {
					w.WriteHeader(http.StatusNotModified)
					return
				}
				_, _ = w.Write([]byte(indexBody))
			},
			etag:      `"v1"`,
			unchanged: true,
			wantETag:  `"v1"`,
		},
		{
			name: "stale etag downloads",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("If-None-Match") == `"v2"` {
					w.WriteHeader(http.StatusNotModified)
					return
				}
				w.Header().Set("ETag", `"v2"`)
				_, _ = w.Write([]byte(indexBody))
			},
			etag:     `"v1"`,
			wantETag: `"v2"`,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectError: true,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			tempDir := t.TempDir()
			f := NewFetcher(5*time.Second, "", tempDir)
			res, err := f.FetchIndex(context.Background(), Request{Repo: "test", URL: server.URL + "/index.xml", ETag: tt.etag})

			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.KindFetch, pkgerrors.KindOf(err))
				assert.ErrorIs(t, err, pkgerrors.ErrUnexpectedStatus)
				entries, _ := os.ReadDir(tempDir)
				assert.Empty(t, entries, "temp file must be removed")
				return
			}

			require.NoError(t, err)
			defer res.Cleanup()
			assert.Equal(t, tt.unchanged, res.Unchanged)
			assert.Equal(t, tt.wantETag, res.ETag)
			if tt.unchanged {
				assert.Empty(t, res.Path)
				return
			}
			data, err := os.ReadFile(res.Path)
			require.NoError(t, err)
			assert.Equal(t, indexBody, string(data))
		})
	}
}

func TestFetchIndex_ContentEncoding(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(indexBody))
	require.NoError(t, zw.Close())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := enc.EncodeAll([]byte(indexBody), nil)
	require.NoError(t, enc.Close())

	tests := []struct {
		encoding string
		body     []byte
	}{
		{"gzip", gz.Bytes()},
		{"zstd", zst},
		{"", []byte(indexBody)},
	}

	for _, tt := range tests {
		t.Run("encoding "+tt.encoding, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			f := NewFetcher(5*time.Second, "", t.TempDir())
			res, err := f.FetchIndex(context.Background(), Request{Repo: "test", URL: server.URL})
			require.NoError(t, err)
			defer res.Cleanup()

			data, err := os.ReadFile(res.Path)
			require.NoError(t, err)
			assert.Equal(t, indexBody, string(data))
		})
	}
}

func TestFetchIndex_HeadersAndAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "appcat-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(indexBody))
	}))
	defer server.Close()

	f := NewFetcher(5*time.Second, "appcat-test", t.TempDir())
	res, err := f.FetchIndex(context.Background(), Request{
		Repo: "test",
		URL:  server.URL,
		Auth: &auth.BearerAuth{Token: "secret"},
	})
	require.NoError(t, err)
	res.Cleanup()
	assert.NoFileExists(t, res.Path)
}

func TestFetchIndex_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	f := NewFetcher(time.Second, "", t.TempDir())
	_, err := f.FetchIndex(context.Background(), Request{Repo: "gone", URL: addr})
	require.Error(t, err)

	var se *pkgerrors.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "gone", se.Repo)
	assert.Equal(t, pkgerrors.KindFetch, se.Kind)
}

func TestFetchAll(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/icons/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("icon:" + r.URL.Path))
	}))
	defer server.Close()

	mustURL := func(p string) *url.URL {
		u, err := url.Parse(server.URL + p)
		require.NoError(t, err)
		return u
	}

	dir := t.TempDir()
	items := []Item{
		{ID: "a", URL: mustURL("/icons/a.png"), Filename: "a.png"},
		{ID: "b", URL: mustURL("/icons/b.png"), Filename: "b.png"},
		{ID: "a-dup", URL: mustURL("/icons/a.png"), Filename: "a.png"},
		{ID: "missing", URL: mustURL("/icons/missing.png"), Filename: "missing.png"},
	}

	f := NewFetcher(5*time.Second, "", "")
	got, err := f.FetchAll(context.Background(), items, Options{Dir: dir, Concurrency: 2})
	require.Error(t, err, "failed item is reported")
	assert.ErrorIs(t, err, pkgerrors.ErrUnexpectedStatus)

	assert.Equal(t, filepath.Join(dir, "a.png"), got["a"])
	assert.Equal(t, got["a"], got["a-dup"])
	assert.Equal(t, filepath.Join(dir, "b.png"), got["b"])
	assert.NotContains(t, got, "missing")
	assert.Equal(t, int32(3), hits.Load(), "duplicate URLs are fetched once")

	// Second run reuses what is on disk.
	_, _ = f.FetchAll(context.Background(), items[:2], Options{Dir: dir})
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAll_Checksum(t *testing.T) {
	content := []byte("payload")
	sum := sha256.Sum256(content)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()
	u, _ := url.Parse(server.URL + "/file")

	f := NewFetcher(5*time.Second, "", "")
	got, err := f.FetchAll(context.Background(), []Item{{ID: "ok", URL: u, Checksum: hex.EncodeToString(sum[:])}}, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.FileExists(t, got["ok"])

	_, err = f.FetchAll(context.Background(), []Item{{ID: "bad", URL: u, Checksum: "00"}}, Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, pkgerrors.ErrDownloadFailed)
}

func TestFetchAll_InvalidOptions(t *testing.T) {
	f := NewFetcher(time.Second, "", "")
	_, err := f.FetchAll(context.Background(), nil, Options{Dir: "relative"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidPath)

	_, err = f.FetchAll(context.Background(), []Item{{ID: "x"}}, Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, pkgerrors.ErrDownloadFailed)

	u, _ := url.Parse("http://127.0.0.1/x")
	_, err = f.FetchAll(context.Background(), []Item{{ID: "x", URL: u, Filename: "../escape"}}, Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidPath)
}
