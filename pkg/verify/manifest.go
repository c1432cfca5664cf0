package verify

import (
	"bytes"
	"crypto"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	// Register the hash implementations named by manifest digest attributes.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// section is one attribute block of a manifest or signature file.
type section struct {
	name  string
	attrs map[string]string
	raw   []byte // bytes of the block including its terminating blank line
}

// manifest is a parsed META-INF/MANIFEST.MF or *.SF file.
type manifest struct {
	raw     []byte
	main    section
	entries map[string]section
}

// parseManifest splits a manifest into its main section and named entry sections.
// Continuation lines (leading space) are joined to the previous attribute.
func parseManifest(data []byte) *manifest {
	m := &manifest{raw: data, entries: make(map[string]section)}

	var cur section
	var lastKey string
	start := 0
	first := true

	flush := func(end int) {
		cur.raw = data[start:end]
		if first {
			m.main = cur
			first = false
		} else if cur.name != "" {
			m.entries[cur.name] = cur
		}
		cur = section{}
		lastKey = ""
		start = end
	}

	pos := 0
	for pos < len(data) {
		next := bytes.IndexByte(data[pos:], '\n')
		var line []byte
		if next < 0 {
			line = data[pos:]
			next = len(data)
		} else {
			line = data[pos : pos+next]
			next = pos + next + 1
		}
		line = bytes.TrimSuffix(line, []byte("\r"))

		switch {
		case len(line) == 0:
			if cur.attrs != nil || first {
				flush(next)
			} else {
				start = next
			}
		case line[0] == ' ' && lastKey != "":
			cur.attrs[lastKey] += string(line[1:])
			if lastKey == "Name" {
				cur.name = cur.attrs[lastKey]
			}
		default:
			key, value, ok := strings.Cut(string(line), ":")
			if !ok {
				break
			}
			if cur.attrs == nil {
				cur.attrs = make(map[string]string)
			}
			lastKey = strings.TrimSpace(key)
			cur.attrs[lastKey] = strings.TrimPrefix(value, " ")
			if lastKey == "Name" {
				cur.name = cur.attrs[lastKey]
			}
		}
		pos = next
	}
	if cur.attrs != nil || first {
		flush(len(data))
	}
	return m
}

var digestAlgorithms = map[string]crypto.Hash{
	"SHA-512": crypto.SHA512,
	"SHA-384": crypto.SHA384,
	"SHA-256": crypto.SHA256,
	"SHA1":    crypto.SHA1,
	"SHA-1":   crypto.SHA1,
}

// digestOrder lists the algorithms tried, strongest first.
var digestOrder = []string{"SHA-512", "SHA-384", "SHA-256", "SHA1", "SHA-1"}

// matchDigest reports whether attrs carry a <alg><suffix> digest of data for any supported
// algorithm. found is false when no digest attribute is present at all.
func matchDigest(attrs map[string]string, suffix string, data []byte) (ok, found bool) {
	for _, alg := range digestOrder {
		want, present := attrs[alg+suffix]
		if !present {
			continue
		}
		found = true
		expected, err := base64.StdEncoding.DecodeString(strings.TrimSpace(want))
		if err != nil {
			continue
		}
		h := digestAlgorithms[alg].New()
		h.Write(data)
		if subtle.ConstantTimeCompare(h.Sum(nil), expected) == 1 {
			return true, true
		}
	}
	return false, found
}
