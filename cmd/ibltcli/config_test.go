package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, `{"hashcount":6,"cells":2000,"prime":false,"key":"secret","file":"table.snapshot"}`)

	config := defaultConfig()
	if err := parseJSONConfig(&config, path); err != nil {
		t.Fatalf("parseJSONConfig returned error: %v", err)
	}

	if config.HashCount != 6 || config.Cells != 2000 {
		t.Fatalf("unexpected numeric fields: %+v", config)
	}
	if config.Prime {
		t.Fatalf("expected prime to be overridden to false")
	}
	if config.Key != "secret" || config.File != "table.snapshot" {
		t.Fatalf("unexpected string fields: %+v", config)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	config := defaultConfig()
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := parseJSONConfig(&config, missing); err == nil {
		t.Fatalf("parseJSONConfig expected error for missing file")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
