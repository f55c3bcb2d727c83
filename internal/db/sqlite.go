// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the SQLite implementation of the Store interface.
package db

import (
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/uptrace/bun"
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// PutSetting writes or overwrites a single setting.
func (s *SqliteStore) PutSetting(key, value string) error {
	return PutSettingBun(s.bun, key, value)
}

// GetSetting retrieves a setting value, or "" when the key is absent.
func (s *SqliteStore) GetSetting(key string) (string, error) {
	return GetSettingBun(s.bun, key)
}

// DeleteSetting removes a setting. Removing an absent key succeeds.
func (s *SqliteStore) DeleteSetting(key string) error {
	return DeleteSettingBun(s.bun, key)
}

// ReplaceSettings applies clears and writes in one transaction.
func (s *SqliteStore) ReplaceSettings(set map[string]string, clear []string) error {
	return ReplaceSettingsBun(s.bun, set, clear)
}

// LogAction appends an entry to the audit log.
func (s *SqliteStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

// GetAllAuditLogEntries retrieves the audit log, newest first.
func (s *SqliteStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// Close releases the underlying database handle.
func (s *SqliteStore) Close() error {
	return s.bun.Close()
}

// compile-time check
var _ Store = (*SqliteStore)(nil)
