// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package pki holds the pure crypto helpers for the user signing identity:
// EC key generation, CSR creation, PEM encoding and decoding, and the
// certificate/key match check. Nothing in here touches the filesystem or
// the network.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrDecode is returned when PEM input cannot be parsed into the expected
// block type.
var ErrDecode = errors.New("malformed PEM input")

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypePrivateKey  = "PRIVATE KEY"
	pemTypeECKey       = "EC PRIVATE KEY"
	pemTypeCSR         = "CERTIFICATE REQUEST"
)

// GenerateKey creates a fresh NIST P-256 private key. The curve matches what
// the hub expects for user certificates.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}
	return key, nil
}

// CreateCSR builds a DER-encoded certificate signing request whose subject
// carries the account username as the organization (/O=<username>). The hub
// reads the username back out of that field when it signs.
func CreateCSR(key *ecdsa.PrivateKey, username string) ([]byte, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	if username == "" {
		return nil, errors.New("empty username for CSR subject")
	}
	tmpl := &x509.CertificateRequest{
		Subject: pkix.Name{Organization: []string{username}},
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, tmpl, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSR: %w", err)
	}
	return der, nil
}

// EncodeKeyPEM serializes a private key as a PKCS#8 PEM block.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: der}), nil
}

// DecodeKeyPEM parses a PEM-encoded EC private key. PKCS#8 is the format we
// write; SEC 1 blocks are accepted for keys generated elsewhere.
func DecodeKeyPEM(pemData []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrDecode)
	}
	switch block.Type {
	case pemTypePrivateKey:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an EC private key", ErrDecode)
		}
		return key, nil
	case pemTypeECKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrDecode, block.Type)
	}
}

// EncodeCertPEM wraps a DER certificate in a PEM block.
func EncodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der})
}

// EncodeCSRPEM wraps a DER certificate signing request in a PEM block. The
// hub takes CSRs as base64 DER, so this is for saving a request to disk.
func EncodeCSRPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeCSR, Bytes: der})
}

// DecodeCertPEM parses a PEM-encoded X.509 certificate.
func DecodeCertPEM(pemData []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrDecode)
	}
	if block.Type != pemTypeCertificate {
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrDecode, block.Type)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cert, nil
}

// VerifyCertificate checks that the issued certificate's public key matches
// the private key we generated. Sealing a mismatched pair would leave an
// identity that can never authenticate.
func VerifyCertificate(certPEM, keyPEM []byte) error {
	cert, err := DecodeCertPEM(certPEM)
	if err != nil {
		return err
	}
	key, err := DecodeKeyPEM(keyPEM)
	if err != nil {
		return err
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("certificate does not carry an EC public key")
	}
	if !pub.Equal(key.Public()) {
		return errors.New("certificate public key does not match the private key")
	}
	return nil
}

// DefaultDescription returns the hostname for use as the client description
// on signing requests and as the default token note.
func DefaultDescription() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
