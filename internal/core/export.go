// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"archive/tar"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mike-mehl/nerves-hub-cli/internal/i18n"
	"github.com/mike-mehl/nerves-hub-cli/internal/logging"
)

// Export unlocks the certificate identity and writes it to destDir as a
// tar.gz holding cert.pem and key.pem. The local password is checked before
// anything touches the disk: a wrong password produces no archive. Returns
// the archive path.
func (p *Provisioner) Export(destDir string) (string, error) {
	exists, err := p.Vault.Exists()
	if err != nil {
		return "", fmt.Errorf("check vault: %w", err)
	}
	if !exists {
		return "", ErrNotAuthenticated
	}

	password, err := p.Prompt.ReadPassword(i18n.T("vault.password_open"))
	if err != nil {
		return "", err
	}
	certPEM, keyPEM, err := p.Vault.Retrieve(password)
	password.Zero()
	if err != nil {
		return "", err
	}

	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	archivePath := filepath.Join(destDir, ExportArchiveName)
	if err := writeIdentityArchive(archivePath, certPEM, keyPEM); err != nil {
		return "", err
	}

	if err := p.Settings.LogAction(actionExportArchive, archivePath); err != nil {
		logging.Warnf("could not record export in activity log: %v", err)
	}
	return archivePath, nil
}

// writeIdentityArchive streams the PEM pair through gzip into a tar file.
// The archive holds exactly cert.pem and key.pem, both 0600 inside the tar.
func writeIdentityArchive(path string, certPEM, keyPEM []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	discard := func(err error) error {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	now := time.Now()
	entries := []struct {
		name string
		data []byte
	}{
		{"cert.pem", certPEM},
		{"key.pem", keyPEM},
	}
	for _, entry := range entries {
		hdr := &tar.Header{
			Name:    entry.name,
			Mode:    0o600,
			Size:    int64(len(entry.data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return discard(fmt.Errorf("write archive header: %w", err))
		}
		if _, err := tw.Write(entry.data); err != nil {
			return discard(fmt.Errorf("write archive entry: %w", err))
		}
	}

	if err := tw.Close(); err != nil {
		return discard(fmt.Errorf("finish archive: %w", err))
	}
	if err := gz.Close(); err != nil {
		return discard(fmt.Errorf("finish compression: %w", err))
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
