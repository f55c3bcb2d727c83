// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/mike-mehl/nerves-hub-cli/internal/security"
	"github.com/mike-mehl/nerves-hub-cli/internal/vault"
)

// readArchive returns the entries of a tar.gz keyed by name.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("archive is not gzip: %v", err)
	}
	defer gz.Close()

	entries := map[string][]byte{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading archive entry %s: %v", hdr.Name, err)
		}
		entries[hdr.Name] = data
	}
	return entries
}

func TestExport_WritesArchive(t *testing.T) {
	h := newHarness(t)
	seedCertificateIdentity(t, h, "hunter2")
	h.prompter.answers = append(h.prompter.answers, "hunter2")

	destDir := filepath.Join(t.TempDir(), "out")
	archivePath, err := h.provisioner.Export(destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(archivePath) != ExportArchiveName {
		t.Errorf("archive named %s", archivePath)
	}

	entries := readArchive(t, archivePath)
	if len(entries) != 2 {
		t.Fatalf("archive holds %d entries, want cert.pem and key.pem", len(entries))
	}

	certPEM, keyPEM, err := h.vault.Retrieve(security.FromString("hunter2"))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(entries["cert.pem"]) != string(certPEM) {
		t.Error("cert.pem does not match the stored certificate")
	}
	if string(entries["key.pem"]) != string(keyPEM) {
		t.Error("key.pem does not match the stored key")
	}

	audit, err := h.store.GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries: %v", err)
	}
	if audit[0].Action != "EXPORT_IDENTITY" {
		t.Errorf("newest audit entry = %+v", audit[0])
	}
}

func TestExport_WrongPasswordProducesNoArchive(t *testing.T) {
	h := newHarness(t)
	seedCertificateIdentity(t, h, "hunter2")
	h.prompter.answers = append(h.prompter.answers, "wrong")

	destDir := filepath.Join(t.TempDir(), "out")
	_, err := h.provisioner.Export(destDir)
	if !errors.Is(err, vault.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, ExportArchiveName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("no archive should exist after a failed password check")
	}
}

func TestExport_NotAuthenticated(t *testing.T) {
	h := newHarness(t)
	_, err := h.provisioner.Export(t.TempDir())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
