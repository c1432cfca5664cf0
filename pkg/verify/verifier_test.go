package verify_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glorpus-work/appcat/pkg/errors"
	"github.com/glorpus-work/appcat/pkg/model"
	"github.com/glorpus-work/appcat/pkg/verify"
	"github.com/glorpus-work/appcat/test/testutil"
)

// jarCase selects a container defect for a table case.
type jarCase struct {
	ExtraCert   bool
	NoSignature bool
	NoIndex     bool
	TamperIndex bool
}

var indexXML = []byte(`<?xml version="1.0" encoding="utf-8"?><fdroid><repo name="Signed"/></fdroid>`)

func TestVerify_Unsigned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.xml")
	require.NoError(t, os.WriteFile(path, indexXML, 0o644))

	v, err := verify.NewVerifier(t.TempDir()).Verify(context.Background(), "plain", model.Unsigned(), path)
	require.NoError(t, err)
	assert.Equal(t, path, v.IndexPath)
	assert.Nil(t, v.Certificate)
	v.Cleanup()
	assert.FileExists(t, path, "unsigned downloads are owned by the fetcher")
}

func TestVerify_Signed(t *testing.T) {
	signer := testutil.NewSigner(t, "repo")
	other := testutil.NewSigner(t, "intruder")

	tests := []struct {
		name  string
		trust model.TrustMode
		opts  jarCase
		errIs error
	}{
		{name: "pinned fingerprint", trust: model.Signed(signer.Fingerprint(), "")},
		{name: "pinned fingerprint upper case", trust: model.Signed(strings.ToUpper(signer.Fingerprint()), "")},
		{name: "pinned pubkey", trust: model.Signed("", signer.PubKey())},
		{name: "fingerprint and pubkey", trust: model.Signed(signer.Fingerprint(), signer.PubKey())},
		{name: "wrong fingerprint", trust: model.Signed(other.Fingerprint(), ""), errIs: pkgerrors.ErrFingerprintMismatch},
		{name: "wrong pubkey", trust: model.Signed(signer.Fingerprint(), other.PubKey()), errIs: pkgerrors.ErrFingerprintMismatch},
		{name: "no trust material", trust: model.TrustMode{Kind: model.TrustSigned}, errIs: pkgerrors.ErrNoTrustMaterial},
		{name: "no signature", trust: model.Signed(signer.Fingerprint(), ""), opts: jarCase{NoSignature: true}, errIs: pkgerrors.ErrNoCertificate},
		{name: "two certificates", trust: model.Signed(signer.Fingerprint(), ""), opts: jarCase{ExtraCert: true}, errIs: pkgerrors.ErrMultipleCertificates},
		{name: "missing index entry", trust: model.Signed(signer.Fingerprint(), ""), opts: jarCase{NoIndex: true}, errIs: pkgerrors.ErrIndexEntryMissing},
		{name: "tampered index", trust: model.Signed(signer.Fingerprint(), ""), opts: jarCase{TamperIndex: true}, errIs: pkgerrors.ErrDigestMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar := filepath.Join(t.TempDir(), "index.jar")
			opts := testutil.JarOptions{NoSignature: tt.opts.NoSignature, NoIndex: tt.opts.NoIndex, TamperIndex: tt.opts.TamperIndex}
			if tt.opts.ExtraCert {
				opts.ExtraCerts = append(opts.ExtraCerts, other.Cert)
			}
			testutil.WriteSignedJar(t, jar, indexXML, signer, opts)

			tempDir := t.TempDir()
			v, err := verify.NewVerifier(tempDir).Verify(context.Background(), "signed", tt.trust, jar)
			if tt.errIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.errIs)
				assert.Equal(t, pkgerrors.KindSignature, pkgerrors.KindOf(err))
				entries, _ := os.ReadDir(tempDir)
				assert.Empty(t, entries, "extracted index removed on failure")
				return
			}

			require.NoError(t, err)
			data, err := os.ReadFile(v.IndexPath)
			require.NoError(t, err)
			assert.Equal(t, indexXML, data)
			assert.Equal(t, signer.Fingerprint(), v.Fingerprint)
			assert.Equal(t, signer.PubKey(), v.PubKey)

			v.Cleanup()
			assert.NoFileExists(t, v.IndexPath)
		})
	}
}

func TestVerify_NotAContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jar")
	require.NoError(t, os.WriteFile(path, indexXML, 0o644))

	_, err := verify.NewVerifier(t.TempDir()).Verify(context.Background(), "r", model.Signed("ab", ""), path)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.KindSignature, pkgerrors.KindOf(err))
}

func TestEscalate(t *testing.T) {
	tests := []struct {
		name      string
		current   model.TrustMode
		inline    string
		want      model.TrustMode
		escalated bool
	}{
		{"unsigned becomes signed", model.Unsigned(), "abcd", model.Signed("", "abcd"), true},
		{"unsigned without inline key", model.Unsigned(), "", model.Unsigned(), false},
		{"fingerprint only gains key", model.Signed("ff", ""), "ABCD", model.Signed("ff", "abcd"), true},
		{"existing key kept", model.Signed("ff", "1234"), "abcd", model.Signed("ff", "1234"), false},
		{"empty inline key", model.Signed("ff", ""), " ", model.Signed("ff", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, escalated := verify.Escalate(tt.current, tt.inline)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.escalated, escalated)
		})
	}
}
