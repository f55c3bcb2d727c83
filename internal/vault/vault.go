// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package vault seals the user's certificate and private key under a local
// password and persists the encrypted record on disk. The key is derived
// with argon2id and the payload is encrypted with AES-256-GCM, so a wrong
// password and a tampered record are indistinguishable: both fail closed.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"

	"github.com/mike-mehl/nerves-hub-cli/internal/pki"
	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// ErrAuthenticationFailed is returned when a record cannot be decrypted,
// whether the password is wrong or the record was modified.
var ErrAuthenticationFailed = errors.New("vault authentication failed")

// ErrNoRecord is returned when an operation needs a vault record and none
// has been persisted.
var ErrNoRecord = errors.New("no vault record")

const (
	recordVersion = 1
	kdfAlgorithm  = "argon2id"

	// argon2id parameters for newly sealed records. Opening always uses the
	// parameters stored in the record itself.
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32

	saltLen = 16
)

// KDFParams records how the encryption key was derived from the password.
type KDFParams struct {
	Algorithm string `json:"algorithm"`
	Time      uint32 `json:"time"`
	Memory    uint32 `json:"memory"`
	Threads   uint8  `json:"threads"`
	Salt      []byte `json:"salt"`
}

// Record is the on-disk form of a sealed identity. Byte fields serialize as
// base64 through encoding/json.
type Record struct {
	Version    int       `json:"version"`
	KDF        KDFParams `json:"kdf"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Seal encrypts the certificate and private key PEMs under the password.
// Both inputs must decode as their expected PEM types; a record holding
// anything else would be useless, so Seal refuses to produce one.
func Seal(certPEM, keyPEM []byte, password security.Secret) (*Record, error) {
	if _, err := pki.DecodeCertPEM(certPEM); err != nil {
		return nil, fmt.Errorf("refusing to seal certificate: %w", err)
	}
	if _, err := pki.DecodeKeyPEM(keyPEM); err != nil {
		return nil, fmt.Errorf("refusing to seal private key: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	var derived []byte
	_ = password.Use(func(pw []byte) error {
		derived = argon2.IDKey(pw, salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
		return nil
	})
	defer zero(derived)

	gcm, err := newGCM(derived)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext := make([]byte, 0, len(certPEM)+len(keyPEM))
	plaintext = append(plaintext, certPEM...)
	plaintext = append(plaintext, keyPEM...)
	defer zero(plaintext)

	rec := &Record{
		Version: recordVersion,
		KDF: KDFParams{
			Algorithm: kdfAlgorithm,
			Time:      kdfTime,
			Memory:    kdfMemory,
			Threads:   kdfThreads,
			Salt:      salt,
		},
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}
	return rec, nil
}

// Open decrypts a sealed record and returns the certificate and private key
// PEMs. It derives the key from the parameters stored in the record, so
// records sealed with older parameter choices keep opening. Any decryption
// failure reports ErrAuthenticationFailed; no partial plaintext escapes.
func Open(rec *Record, password security.Secret) (certPEM, keyPEM []byte, err error) {
	if rec == nil {
		return nil, nil, ErrNoRecord
	}
	if rec.KDF.Algorithm != kdfAlgorithm {
		return nil, nil, fmt.Errorf("unsupported KDF algorithm %q", rec.KDF.Algorithm)
	}

	var derived []byte
	_ = password.Use(func(pw []byte) error {
		derived = argon2.IDKey(pw, rec.KDF.Salt, rec.KDF.Time, rec.KDF.Memory, rec.KDF.Threads, kdfKeyLen)
		return nil
	})
	defer zero(derived)

	gcm, err := newGCM(derived)
	if err != nil {
		return nil, nil, err
	}
	if len(rec.Nonce) != gcm.NonceSize() {
		return nil, nil, ErrAuthenticationFailed
	}
	plaintext, err := gcm.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return nil, nil, ErrAuthenticationFailed
	}
	return splitIdentity(plaintext)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return gcm, nil
}

// splitIdentity separates the concatenated payload back into certificate and
// key PEMs. The certificate block always comes first; PEM blocks are
// self-delimiting so no explicit separator is stored.
func splitIdentity(plaintext []byte) (certPEM, keyPEM []byte, err error) {
	block, rest := pem.Decode(plaintext)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, nil, errors.New("sealed payload is missing the certificate block")
	}
	certPEM = plaintext[:len(plaintext)-len(rest)]

	keyBlock, _ := pem.Decode(rest)
	if keyBlock == nil || (keyBlock.Type != "PRIVATE KEY" && keyBlock.Type != "EC PRIVATE KEY") {
		return nil, nil, errors.New("sealed payload is missing the private key block")
	}
	keyPEM = rest
	return certPEM, keyPEM, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
