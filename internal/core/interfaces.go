// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package core drives the provisioning lifecycle of the local user identity:
// registration, authentication, certificate issuance, deauthorization and
// export. It owns the ordering and rollback rules; everything with a side
// effect sits behind one of the small interfaces below so the command layer
// and the tests can swap implementations.
package core

import (
	"context"

	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// AccountService is the hub's user API as the provisioner consumes it.
// internal/api provides the HTTP implementation.
type AccountService interface {
	Register(ctx context.Context, username, email string, password security.Secret) (*model.Account, error)
	// Login may answer with a token or with account data that routes into
	// certificate issuance; both arrive in the LoginResult.
	Login(ctx context.Context, identifier string, password security.Secret, note string) (*model.LoginResult, error)
	PeerAuth(ctx context.Context, identifier string, password security.Secret) (*model.Account, error)
	SignUserCSR(ctx context.Context, identifier string, password security.Secret, csrDER []byte, description string) ([]byte, error)
	Me(ctx context.Context, cred model.Credential) (*model.Account, error)
}

// SettingsStore is the slice of the local store the provisioner needs:
// identity bookkeeping plus the audit trail. db.Store satisfies it.
type SettingsStore interface {
	PutSetting(key, value string) error
	// GetSetting returns ("", nil) when the key is absent.
	GetSetting(key string) (string, error)
	DeleteSetting(key string) error
	// ReplaceSettings applies clears and writes in one transaction.
	ReplaceSettings(set map[string]string, clear []string) error
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
}

// Vault stores the sealed certificate identity. vault.FileVault satisfies it.
type Vault interface {
	Store(certPEM, keyPEM []byte, password security.Secret) error
	Retrieve(password security.Secret) (certPEM, keyPEM []byte, err error)
	Exists() (bool, error)
	Erase() error
}

// Prompter reads secrets from the person at the terminal. Prompts carry
// their own trailing spacing; implementations must not echo the input.
type Prompter interface {
	ReadPassword(prompt string) (security.Secret, error)
}

// Reporter emits progress and retry messages during interactive flows.
// Implementations may write to stderr, logs, or test buffers.
type Reporter interface {
	Reportf(format string, args ...any)
}
