// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// store_dump prints the contents of a data directory's settings store: the
// identity settings (with the token redacted) and the audit trail. Useful
// when debugging a machine's provisioning state without the CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mike-mehl/nerves-hub-cli/internal/core"
	"github.com/mike-mehl/nerves-hub-cli/internal/db"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory holding the settings store (defaults to ~/.nerves-hub)")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not resolve home directory: %v\n", err)
			os.Exit(1)
		}
		dir = filepath.Join(home, ".nerves-hub")
	}

	store, err := db.NewStore(filepath.Join(dir, core.SettingsFileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open settings store: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	fmt.Println("settings:")
	for _, key := range []string{core.SettingToken, core.SettingEmail, core.SettingOrg} {
		value, err := store.GetSetting(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read setting %s: %v\n", key, err)
			os.Exit(1)
		}
		fmt.Printf("  %-6s %s\n", key, describeSetting(key, value))
	}

	entries, err := store.GetAllAuditLogEntries()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read audit log: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("audit trail (%d entries):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s\n", e.String())
	}
}

// describeSetting renders a setting value for display. The access token is
// never printed, only whether one is present.
func describeSetting(key, value string) string {
	if value == "" {
		return "(unset)"
	}
	if key == core.SettingToken {
		return "(set, redacted)"
	}
	return value
}
