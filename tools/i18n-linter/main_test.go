package main

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestFlattenYAMLAndLoadKeys(t *testing.T) {
	m := map[string]interface{}{
		"auth": map[string]interface{}{
			"success_token": "Authenticated.",
			"error":         "authentication failed: %v",
		},
		"other": "v",
	}
	keys := make(map[string]struct{})
	flattenYAML("", m, keys)
	if _, ok := keys["auth.success_token"]; !ok {
		t.Fatalf("expected auth.success_token in keys")
	}
	if _, ok := keys["other"]; !ok {
		t.Fatalf("expected other in keys")
	}

	dir := t.TempDir()
	p := filepath.Join(dir, "test.yaml")
	data, _ := yaml.Marshal(m)
	if err := os.WriteFile(p, data, 0600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	got, err := loadKeysFromLocale(p)
	if err != nil {
		t.Fatalf("loadKeysFromLocale failed: %v", err)
	}
	if _, ok := got["auth.error"]; !ok {
		t.Fatalf("expected loaded key auth.error")
	}
}

func TestFindUsedKeys(t *testing.T) {
	dir := t.TempDir()
	src := `package foo
func f(){
	_ = i18n.T("auth.success_token")
	_ = i18n.T("deauth.confirm")
}`
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "a.go"), []byte(src), 0644); err != nil {
		t.Fatalf("write go: %v", err)
	}

	// Files in skipped directories must not contribute keys.
	if err := os.MkdirAll(filepath.Join(dir, "_vendor"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	skipped := `package bar
func g(){ _ = i18n.T("skipped.key") }`
	if err := os.WriteFile(filepath.Join(dir, "_vendor", "b.go"), []byte(skipped), 0644); err != nil {
		t.Fatalf("write go: %v", err)
	}

	used, err := findUsedKeys(dir)
	if err != nil {
		t.Fatalf("findUsedKeys failed: %v", err)
	}
	if _, ok := used["auth.success_token"]; !ok {
		t.Fatalf("expected auth.success_token in used keys")
	}
	if _, ok := used["deauth.confirm"]; !ok {
		t.Fatalf("expected deauth.confirm in used keys")
	}
	if _, ok := used["skipped.key"]; ok {
		t.Fatalf("did not expect keys from underscore directories")
	}
}

func TestMissingFrom(t *testing.T) {
	want := map[string]struct{}{"a.one": {}, "a.two": {}, "b.three": {}}
	have := map[string]struct{}{"a.one": {}}
	missing := missingFrom(want, have)
	if len(missing) != 2 || missing[0] != "a.two" || missing[1] != "b.three" {
		t.Fatalf("unexpected missing set: %v", missing)
	}
	if got := missingFrom(have, want); len(got) != 0 {
		t.Fatalf("expected no missing keys, got %v", got)
	}
}
