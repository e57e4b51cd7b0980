package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitCombo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		org     string
		project string
		ok      bool
	}{
		{"combo", "acme/frontend", "acme", "frontend", true},
		{"no slash", "frontend", "", "", false},
		{"leading slash", "/frontend", "", "", false},
		{"trailing slash", "acme/", "", "", false},
		{"empty", "", "", "", false},
		{"nested path keeps remainder", "acme/team/frontend", "acme", "team/frontend", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org, project, ok := SplitCombo(tt.input)
			if ok != tt.ok || org != tt.org || project != tt.project {
				t.Errorf("SplitCombo(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.input, org, project, ok, tt.org, tt.project, tt.ok)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SPYGLASS_URL", "https://errors.corp.example/api/0/")
	t.Setenv("SPYGLASS_ORG", "acme")
	t.Setenv("SPYGLASS_PROJECT", "frontend")
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := Load()
	if cfg.BaseURL != "https://errors.corp.example/api/0" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Org != "acme" || cfg.Project != "frontend" {
		t.Errorf("env target context not honored: %+v", cfg)
	}
}

func TestFindProjectFile(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "services", "web")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "org = \"acme\"\nproject = \"frontend\"\n"
	if err := os.WriteFile(filepath.Join(root, ProjectFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pf := FindProjectFile(sub)
	if pf == nil {
		t.Fatal("expected project file found from nested dir")
	}
	if pf.Org != "acme" || pf.Project != "frontend" {
		t.Errorf("got %+v", pf)
	}

	if got := FindProjectFile(t.TempDir()); got != nil {
		t.Errorf("expected nil for tree without project file, got %+v", got)
	}
}
