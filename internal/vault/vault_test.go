// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.
package vault_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mike-mehl/nerves-hub-cli/internal/security"
	"github.com/mike-mehl/nerves-hub-cli/internal/testutil"
	"github.com/mike-mehl/nerves-hub-cli/internal/vault"
)

func issueIdentity(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	ca, err := testutil.NewCA()
	if err != nil {
		t.Fatalf("NewCA failed: %v", err)
	}
	certPEM, keyPEM, err = ca.IssueIdentity("alice")
	if err != nil {
		t.Fatalf("IssueIdentity failed: %v", err)
	}
	return certPEM, keyPEM
}

func TestSealOpenRoundTrip(t *testing.T) {
	certPEM, keyPEM := issueIdentity(t)
	password := security.FromString("correct horse")

	rec, err := vault.Seal(certPEM, keyPEM, password)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if rec.KDF.Algorithm != "argon2id" {
		t.Fatalf("unexpected KDF algorithm: %q", rec.KDF.Algorithm)
	}
	if len(rec.KDF.Salt) == 0 || len(rec.Nonce) == 0 {
		t.Fatalf("record missing salt or nonce")
	}
	if bytes.Contains(rec.Ciphertext, keyPEM) {
		t.Fatalf("ciphertext contains the plaintext key")
	}

	gotCert, gotKey, err := vault.Open(rec, password)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(gotCert, certPEM) {
		t.Fatalf("certificate PEM did not round trip")
	}
	if !bytes.Equal(gotKey, keyPEM) {
		t.Fatalf("key PEM did not round trip")
	}
}

func TestOpenWrongPasswordFailsClosed(t *testing.T) {
	certPEM, keyPEM := issueIdentity(t)
	rec, err := vault.Seal(certPEM, keyPEM, security.FromString("right"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	gotCert, gotKey, err := vault.Open(rec, security.FromString("wrong"))
	if !errors.Is(err, vault.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if gotCert != nil || gotKey != nil {
		t.Fatalf("partial plaintext returned on failed open")
	}
}

func TestOpenTamperedRecordFailsClosed(t *testing.T) {
	certPEM, keyPEM := issueIdentity(t)
	password := security.FromString("right")
	rec, err := vault.Seal(certPEM, keyPEM, password)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	rec.Ciphertext[len(rec.Ciphertext)/2] ^= 0x01
	if _, _, err := vault.Open(rec, password); !errors.Is(err, vault.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for tampered ciphertext, got %v", err)
	}

	// A mangled nonce must fail the same way, not panic.
	rec.Ciphertext[len(rec.Ciphertext)/2] ^= 0x01
	rec.Nonce = rec.Nonce[:len(rec.Nonce)-1]
	if _, _, err := vault.Open(rec, password); !errors.Is(err, vault.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for truncated nonce, got %v", err)
	}
}

func TestSealRejectsNonIdentityInput(t *testing.T) {
	certPEM, keyPEM := issueIdentity(t)
	password := security.FromString("pw")

	if _, err := vault.Seal([]byte("garbage"), keyPEM, password); err == nil {
		t.Fatalf("Seal accepted a garbage certificate")
	}
	if _, err := vault.Seal(certPEM, []byte("garbage"), password); err == nil {
		t.Fatalf("Seal accepted a garbage key")
	}
	// Swapped arguments must not slip through either.
	if _, err := vault.Seal(keyPEM, certPEM, password); err == nil {
		t.Fatalf("Seal accepted swapped certificate and key")
	}
}

func TestOpenUnknownKDFRejected(t *testing.T) {
	certPEM, keyPEM := issueIdentity(t)
	password := security.FromString("pw")
	rec, err := vault.Seal(certPEM, keyPEM, password)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	rec.KDF.Algorithm = "scrypt"
	if _, _, err := vault.Open(rec, password); err == nil {
		t.Fatalf("expected error for unknown KDF algorithm")
	}
}

func TestOpenNilRecord(t *testing.T) {
	if _, _, err := vault.Open(nil, security.FromString("pw")); !errors.Is(err, vault.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}
