package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"

	"github.com/glorpus-work/appcat/pkg/archive"
)

// Signer is a throwaway self-signed code signing identity.
type Signer struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
}

// NewSigner generates a fresh RSA key and self-signed certificate.
func NewSigner(t *testing.T, commonName string) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &Signer{Cert: cert, Key: key}
}

// Fingerprint returns the hex SHA-256 of the certificate.
func (s *Signer) Fingerprint() string {
	sum := sha256.Sum256(s.Cert.Raw)
	return hex.EncodeToString(sum[:])
}

// PubKey returns the hex-encoded certificate as published in index pubkey attributes.
func (s *Signer) PubKey() string {
	return hex.EncodeToString(s.Cert.Raw)
}

// JarOptions tweak a signed container, mostly to produce invalid ones.
type JarOptions struct {
	ExtraCerts  []*x509.Certificate // added to the signature block
	NoSignature bool                // omit META-INF signature files
	NoIndex     bool                // omit index.xml
	TamperIndex bool                // change index.xml after signing
}

// WriteSignedJar writes a signed index container for indexXML to dest.
func WriteSignedJar(t *testing.T, dest string, indexXML []byte, signer *Signer, opts JarOptions) {
	t.Helper()
	src := t.TempDir()
	write := func(name string, data []byte) {
		full := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, data, 0o644))
	}

	manifestSection := fmt.Sprintf("Name: index.xml\r\nSHA-256-Digest: %s\r\n\r\n", b64sha256(indexXML))
	manifest := "Manifest-Version: 1.0\r\nCreated-By: appcat-test\r\n\r\n" + manifestSection
	sf := fmt.Sprintf("Signature-Version: 1.0\r\nSHA-256-Digest-Manifest: %s\r\nCreated-By: appcat-test\r\n\r\n", b64sha256([]byte(manifest))) +
		fmt.Sprintf("Name: index.xml\r\nSHA-256-Digest: %s\r\n\r\n", b64sha256([]byte(manifestSection)))

	if !opts.NoIndex {
		data := indexXML
		if opts.TamperIndex {
			data = append(append([]byte{}, indexXML...), "<!-- tampered -->"...)
		}
		write("index.xml", data)
	}
	write("META-INF/MANIFEST.MF", []byte(manifest))
	if !opts.NoSignature {
		write("META-INF/SIGNER.SF", []byte(sf))
		write("META-INF/SIGNER.RSA", signBlock(t, []byte(sf), signer, opts.ExtraCerts))
	}

	require.NoError(t, archive.NewManager().Create(context.Background(), src, dest))
}

func signBlock(t *testing.T, content []byte, signer *Signer, extra []*x509.Certificate) []byte {
	t.Helper()
	sd, err := pkcs7.NewSignedData(content)
	require.NoError(t, err)
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	require.NoError(t, sd.AddSigner(signer.Cert, signer.Key, pkcs7.SignerInfoConfig{}))
	for _, cert := range extra {
		sd.AddCertificate(cert)
	}
	sd.Detach()
	der, err := sd.Finish()
	require.NoError(t, err)
	return der
}

func b64sha256(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
