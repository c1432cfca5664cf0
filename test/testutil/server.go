// Package testutil provides fixtures shared by package and end-to-end tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// RepoServer is a test HTTP server publishing repository files from memory.
// It answers conditional requests with 304 when If-None-Match carries the current ETag.
type RepoServer struct {
	*httptest.Server

	mu       sync.RWMutex
	files    map[string][]byte
	requests atomic.Int32
}

// NewRepoServer starts a server; it is closed when the test ends.
func NewRepoServer(t *testing.T) *RepoServer {
	t.Helper()
	rs := &RepoServer{files: make(map[string][]byte)}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)
	return rs
}

// Put publishes data at path (e.g. "/repo/index.xml").
func (rs *RepoServer) Put(path string, data []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[path] = data
}

// Requests returns how many requests the server handled.
func (rs *RepoServer) Requests() int {
	return int(rs.requests.Load())
}

// ETag returns the entity tag served for data.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func (rs *RepoServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.requests.Add(1)
	rs.mu.RLock()
	data, ok := rs.files[r.URL.Path]
	rs.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	etag := ETag(data)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write(data)
}
