// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
)

// Store defines the interface for all local persistence this CLI needs:
// a small settings table holding the identity bookkeeping and an audit log
// recording what was done to it.
type Store interface {
	// Settings methods
	PutSetting(key, value string) error
	// GetSetting returns ("", nil) when the key is absent; absence is a
	// state, not an error.
	GetSetting(key string) (string, error)
	DeleteSetting(key string) error
	// ReplaceSettings applies the deletes in clear and the writes in set in
	// one transaction, so a credential switch is all-or-nothing.
	ReplaceSettings(set map[string]string, clear []string) error

	// Audit Log methods
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)

	Close() error
}
