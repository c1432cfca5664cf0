// Package verify authenticates downloaded repository indexes.
//
// Unsigned repositories pass their download through untouched. Signed repositories
// publish a JAR container whose index.xml entry must be covered by exactly one
// signing certificate matching the repository's pinned trust material.
package verify

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"

	"go.mozilla.org/pkcs7"

	"github.com/glorpus-work/appcat/internal/logger"
	"github.com/glorpus-work/appcat/pkg/archive"
	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/fsutil"
	"github.com/glorpus-work/appcat/pkg/model"
)

// IndexEntry is the name of the index document inside a signed container.
const IndexEntry = "index.xml"

const (
	metaInf      = "META-INF/"
	manifestName = metaInf + "MANIFEST.MF"
)

// Verified is an authenticated index ready for parsing.
type Verified struct {
	IndexPath   string
	Certificate *x509.Certificate // nil for unsigned repositories
	Fingerprint string            // hex SHA-256 of the certificate
	PubKey      string            // hex encoding of the certificate
	cleanup     func()
}

// Cleanup removes the extracted index, if one was created.
func (v *Verified) Cleanup() {
	if v != nil && v.cleanup != nil {
		v.cleanup()
	}
}

// Verifier checks signed containers.
type Verifier struct {
	archives *archive.Manager
	tempDir  string
}

// NewVerifier creates a verifier that extracts indexes below tempDir.
func NewVerifier(tempDir string) *Verifier {
	return &Verifier{archives: archive.NewManager(), tempDir: tempDir}
}

// Verify authenticates the file at downloaded under trust. Failures are signature errors for repo.
func (v *Verifier) Verify(ctx context.Context, repo string, trust model.TrustMode, downloaded string) (*Verified, error) {
	if trust.Kind == model.TrustUnsigned {
		return &Verified{IndexPath: downloaded}, nil
	}
	if trust.Fingerprint == "" && trust.PubKey == "" {
		return nil, pkgerrors.SignatureError(repo, pkgerrors.ErrNoTrustMaterial)
	}

	meta, err := v.archives.ReadEntries(ctx, downloaded, func(name string) bool {
		return strings.HasPrefix(strings.ToUpper(name), metaInf)
	})
	if err != nil {
		return nil, pkgerrors.SignatureError(repo, err)
	}

	tmp, err := fsutil.CreateTemp(v.tempDir, "index-*.xml")
	if err != nil {
		return nil, pkgerrors.SignatureError(repo, err)
	}
	indexPath := tmp.Path()
	tmp.Cleanup()
	cleanup := fsutil.RemoveFunc(indexPath)

	if err := v.archives.ExtractFile(ctx, downloaded, IndexEntry, indexPath); err != nil {
		cleanup()
		return nil, pkgerrors.SignatureError(repo, fmt.Errorf("%w: %w", pkgerrors.ErrIndexEntryMissing, err))
	}

	cert, err := verifyContainer(meta, indexPath)
	if err != nil {
		cleanup()
		return nil, pkgerrors.SignatureError(repo, err)
	}

	fingerprint := Fingerprint(cert)
	pubKey := hex.EncodeToString(cert.Raw)
	if err := checkPin(trust, fingerprint, pubKey); err != nil {
		cleanup()
		return nil, pkgerrors.SignatureError(repo, err)
	}

	logger.Debug("Index signature verified", logger.Fields{"repo": repo, "fingerprint": fingerprint})
	return &Verified{
		IndexPath:   indexPath,
		Certificate: cert,
		Fingerprint: fingerprint,
		PubKey:      pubKey,
		cleanup:     cleanup,
	}, nil
}

// Fingerprint returns the hex SHA-256 digest of a certificate's DER encoding.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// Escalate upgrades current with a public key announced inline by an index. An unsigned
// repository becomes signed and pinned to the key; a signed repository pinned only by
// fingerprint gains the key. A mode that already carries a key is never changed.
func Escalate(current model.TrustMode, inlinePubKey string) (model.TrustMode, bool) {
	inlinePubKey = strings.ToLower(strings.TrimSpace(inlinePubKey))
	if inlinePubKey == "" || current.PubKey != "" {
		return current, false
	}
	return model.Signed(current.Fingerprint, inlinePubKey), true
}

func checkPin(trust model.TrustMode, fingerprint, pubKey string) error {
	if trust.Fingerprint != "" && !strings.EqualFold(trust.Fingerprint, fingerprint) {
		return fmt.Errorf("%w: expected %s, got %s", pkgerrors.ErrFingerprintMismatch, trust.Fingerprint, fingerprint)
	}
	if trust.PubKey != "" && !strings.EqualFold(trust.PubKey, pubKey) {
		return fmt.Errorf("%w: certificate differs from stored public key", pkgerrors.ErrFingerprintMismatch)
	}
	return nil
}

// verifyContainer checks every signature block against its signature file, the manifest
// and the extracted index, and returns the single certificate that signed the index.
func verifyContainer(meta map[string][]byte, indexPath string) (*x509.Certificate, error) {
	rawManifest, ok := meta[manifestName]
	if !ok {
		return nil, fmt.Errorf("%w: no manifest", pkgerrors.ErrNoCertificate)
	}
	mf := parseManifest(rawManifest)

	entry, ok := mf.entries[IndexEntry]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not listed in the manifest", pkgerrors.ErrIndexEntryMissing, IndexEntry)
	}
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted index: %w", err)
	}
	if ok, _ := matchDigest(entry.attrs, "-Digest", indexData); !ok {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrDigestMismatch, IndexEntry)
	}

	certs := make(map[string]*x509.Certificate)
	for name, block := range meta {
		if !isSignatureBlock(name) {
			continue
		}
		sfName := strings.TrimSuffix(name, path.Ext(name)) + ".SF"
		sf, ok := meta[sfName]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no signature file", pkgerrors.ErrDigestMismatch, name)
		}

		p7, err := pkcs7.Parse(block)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		p7.Content = sf
		if err := p7.Verify(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrDigestMismatch, name, err)
		}
		if err := checkSignatureFile(parseManifest(sf), mf); err != nil {
			return nil, fmt.Errorf("%s: %w", sfName, err)
		}
		for _, cert := range p7.Certificates {
			certs[Fingerprint(cert)] = cert
		}
	}

	switch len(certs) {
	case 0:
		return nil, pkgerrors.ErrNoCertificate
	case 1:
		for _, cert := range certs {
			return cert, nil
		}
	}
	return nil, fmt.Errorf("%w: found %d", pkgerrors.ErrMultipleCertificates, len(certs))
}

// checkSignatureFile requires the signature file to cover the index entry of the manifest,
// either through a digest of the whole manifest or through the entry's own section digest.
func checkSignatureFile(sf, mf *manifest) error {
	if ok, _ := matchDigest(sf.main.attrs, "-Digest-Manifest", mf.raw); ok {
		return nil
	}
	entry, ok := sf.entries[IndexEntry]
	if !ok {
		return fmt.Errorf("%w: %s is not signed", pkgerrors.ErrIndexEntryMissing, IndexEntry)
	}
	if ok, _ := matchDigest(entry.attrs, "-Digest", mf.entries[IndexEntry].raw); !ok {
		return fmt.Errorf("%w: manifest section for %s", pkgerrors.ErrDigestMismatch, IndexEntry)
	}
	return nil
}

func isSignatureBlock(name string) bool {
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, metaInf) || strings.Contains(upper[len(metaInf):], "/") {
		return false
	}
	switch path.Ext(upper) {
	case ".RSA", ".DSA", ".EC":
		return true
	}
	return false
}
