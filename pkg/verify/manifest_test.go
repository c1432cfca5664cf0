package verify

import (
	"crypto/sha1"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	raw := "Manifest-Version: 1.0\r\nCreated-By: 1.8 (Oracle\r\n  Corporation)\r\n\r\n" +
		"Name: index.xml\r\nSHA1-Digest: abc=\r\n\r\n" +
		"Name: res/a-very-long-name-that-wraps-over-the-seventy-two-byte-line-lim\n it.png\nSHA1-Digest: def=\n\n"

	m := parseManifest([]byte(raw))
	assert.Equal(t, "1.0", m.main.attrs["Manifest-Version"])
	assert.Equal(t, "1.8 (Oracle Corporation)", m.main.attrs["Created-By"])
	require.Contains(t, m.entries, "index.xml")
	assert.Equal(t, "Name: index.xml\r\nSHA1-Digest: abc=\r\n\r\n", string(m.entries["index.xml"].raw))
	assert.Contains(t, m.entries, "res/a-very-long-name-that-wraps-over-the-seventy-two-byte-line-limit.png")
}

func TestMatchDigest(t *testing.T) {
	data := []byte("payload")
	sum := sha1.Sum(data)
	attrs := map[string]string{"SHA1-Digest": base64.StdEncoding.EncodeToString(sum[:])}

	ok, found := matchDigest(attrs, "-Digest", data)
	assert.True(t, ok)
	assert.True(t, found)

	ok, found = matchDigest(attrs, "-Digest", []byte("other"))
	assert.False(t, ok)
	assert.True(t, found)

	ok, found = matchDigest(map[string]string{}, "-Digest", data)
	assert.False(t, ok)
	assert.False(t, found)
}
