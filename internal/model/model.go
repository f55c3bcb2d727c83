// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the core data structures shared across the CLI,
// the account service client, and the local store.
package model

import (
	"fmt"

	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// Account represents the user account on the hub as the server reports it.
type Account struct {
	Username string
	Email    string
}

// String returns the username with the email in parentheses when known.
func (a Account) String() string {
	if a.Email == "" {
		return a.Username
	}
	return fmt.Sprintf("%s (%s)", a.Username, a.Email)
}

// LoginResult is the outcome of a login call. The server answers with either
// an access token or account data that routes the caller into certificate
// issuance; exactly one branch is set.
type LoginResult struct {
	Token   security.Secret
	Account *Account
}

// CredentialKind tags the variant held by a Credential.
type CredentialKind int

const (
	// CredentialNone means no credential is available.
	CredentialNone CredentialKind = iota
	// CredentialToken is a server-issued access token.
	CredentialToken
	// CredentialCertificate is a signed client certificate plus its key.
	CredentialCertificate
)

// String returns a short name for the credential kind.
func (k CredentialKind) String() string {
	switch k {
	case CredentialToken:
		return "token"
	case CredentialCertificate:
		return "certificate"
	default:
		return "none"
	}
}

// Credential is the material the CLI authenticates with. Kind selects the
// variant; only the fields for that variant are populated.
type Credential struct {
	Kind    CredentialKind
	Token   security.Secret // CredentialToken
	CertPEM []byte          // CredentialCertificate
	KeyPEM  []byte          // CredentialCertificate
}

// TokenCredential builds a token credential.
func TokenCredential(token security.Secret) Credential {
	return Credential{Kind: CredentialToken, Token: token}
}

// CertificateCredential builds a certificate credential from PEM material.
func CertificateCredential(certPEM, keyPEM []byte) Credential {
	return Credential{Kind: CredentialCertificate, CertPEM: certPEM, KeyPEM: keyPEM}
}

// String describes the credential without revealing any material.
func (c Credential) String() string {
	return fmt.Sprintf("credential(%s)", c.Kind)
}

// AuditLogEntry is one row of the local activity trail.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Username  string
	Action    string
	Details   string
}

// String renders the entry the way the activity listing prints it.
func (e AuditLogEntry) String() string {
	return fmt.Sprintf("%s  %s  %s", e.Timestamp, e.Action, e.Details)
}
