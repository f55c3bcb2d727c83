// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// Persist writes a record to path with 0600 permissions. The record is
// written to a temp file in the same directory and renamed into place, so a
// crash mid-write never leaves a partial record: either the old file
// survives or the new one is complete.
func Persist(rec *Record, path string) error {
	if rec == nil {
		return errors.New("nil vault record")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vault record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return fmt.Errorf("failed to create temp vault file: %w", err)
	}
	tmpName := tmp.Name()
	// Remove is a no-op once the rename has happened.
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set vault file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write vault record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close vault file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move vault record into place: %w", err)
	}
	return nil
}

// Load reads a persisted record. A missing file is not an error: it returns
// (nil, nil), because an absent vault is a normal state for this CLI.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read vault record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt vault record: %w", err)
	}
	return &rec, nil
}

// Erase removes the persisted record. Removing an absent record succeeds.
func Erase(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove vault record: %w", err)
	}
	return nil
}

// FileVault binds the seal/open primitives to one on-disk record.
type FileVault struct {
	Path string
}

// NewFileVault returns a FileVault for the given record path.
func NewFileVault(path string) *FileVault {
	return &FileVault{Path: path}
}

// Store seals the identity under the password and persists it.
func (v *FileVault) Store(certPEM, keyPEM []byte, password security.Secret) error {
	rec, err := Seal(certPEM, keyPEM, password)
	if err != nil {
		return err
	}
	return Persist(rec, v.Path)
}

// Retrieve loads and opens the persisted record. ErrNoRecord when nothing
// has been stored.
func (v *FileVault) Retrieve(password security.Secret) (certPEM, keyPEM []byte, err error) {
	rec, err := Load(v.Path)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrNoRecord
	}
	return Open(rec, password)
}

// Exists reports whether a record has been persisted.
func (v *FileVault) Exists() (bool, error) {
	if _, err := os.Stat(v.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Erase removes the persisted record. Idempotent.
func (v *FileVault) Erase() error {
	return Erase(v.Path)
}
