// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks the translation catalogs for drift. It scans the Go
// source for i18n.T() calls and compares the keys against the YAML locale
// files: keys used but not defined fail the build, keys defined but unused
// are reported, and secondary locales are checked against the primary.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
	projectRoot   = "."
)

func main() {
	fmt.Println("Running i18n linter...")

	usedKeys, err := findUsedKeys(projectRoot)
	if err != nil {
		fmt.Printf("error scanning source: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d unique translation keys in source.\n", len(usedKeys))

	localeFiles, err := filepath.Glob(filepath.Join(localesDir, "*.yaml"))
	if err != nil {
		fmt.Printf("error finding locale files: %v\n", err)
		os.Exit(1)
	}

	primaryKeys, err := loadKeysFromLocale(filepath.Join(localesDir, primaryLocale))
	if err != nil {
		fmt.Printf("error loading primary locale %s: %v\n", primaryLocale, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d keys from %s.\n\n", len(primaryKeys), primaryLocale)

	failed := false

	fmt.Println("--- Keys used in source but missing from the primary locale ---")
	undefined := missingFrom(usedKeys, primaryKeys)
	for _, key := range undefined {
		fmt.Printf("  - Undefined: %s\n", key)
		failed = true
	}
	if len(undefined) == 0 {
		fmt.Println("  none")
	}
	fmt.Println()

	fmt.Println("--- Keys in the primary locale not used in source ---")
	orphaned := missingFrom(primaryKeys, usedKeys)
	for _, key := range orphaned {
		fmt.Printf("  - Orphaned: %s\n", key)
	}
	if len(orphaned) == 0 {
		fmt.Println("  none")
	}
	fmt.Println()

	fmt.Println("--- Secondary locales vs primary ---")
	for _, file := range localeFiles {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		fmt.Printf("Checking %s:\n", file)
		secondaryKeys, err := loadKeysFromLocale(file)
		if err != nil {
			fmt.Printf("  - error loading %s: %v\n", file, err)
			failed = true
			continue
		}
		missing := missingFrom(primaryKeys, secondaryKeys)
		for _, key := range missing {
			fmt.Printf("  - Missing: %s\n", key)
			failed = true
		}
		extra := missingFrom(secondaryKeys, primaryKeys)
		for _, key := range extra {
			fmt.Printf("  - Extra: %s\n", key)
		}
		if len(missing) == 0 && len(extra) == 0 {
			fmt.Println("  all keys present")
		}
	}

	fmt.Println()
	if failed {
		fmt.Println("Translation catalogs are inconsistent.")
		os.Exit(1)
	}
	if len(orphaned) > 0 {
		fmt.Println("Catalogs are usable, but orphaned keys should be removed.")
		return
	}
	fmt.Println("All translation catalogs are consistent.")
}

// missingFrom returns the sorted keys of want that are absent from have.
func missingFrom(want, have map[string]struct{}) []string {
	var out []string
	for key := range want {
		if _, ok := have[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// findUsedKeys scans non-test .go files for i18n.T("key") calls. Directories
// the Go toolchain ignores (leading "_" or ".") are skipped, as are the
// tools themselves.
func findUsedKeys(root string) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	re := regexp.MustCompile(`i18n\.T\("([^"]+)"`)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "tools" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, match := range re.FindAllStringSubmatch(string(content), -1) {
			if len(match) > 1 && match[1] != "" {
				keys[match[1]] = struct{}{}
			}
		}
		return nil
	})

	return keys, err
}

// loadKeysFromLocale reads a YAML file and returns a flat map of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML converts a nested map into dot-separated leaf keys.
func flattenYAML(prefix string, node interface{}, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, val := range v {
			newPrefix := k
			if prefix != "" {
				newPrefix = prefix + "." + k
			}
			flattenYAML(newPrefix, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}
