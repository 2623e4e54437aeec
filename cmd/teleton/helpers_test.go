package main

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes a minimal valid teleton.yaml to a temp
// directory and returns its path plus the store path it configures.
func writeTestConfig(t *testing.T) (configPath, storePath string) {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "teleton.db")
	configPath = filepath.Join(dir, "teleton.yaml")

	contents := "store:\n" +
		"  path: " + storePath + "\n" +
		"llm:\n" +
		"  provider: anthropic\n" +
		"  anthropic_api_key: test-key\n"

	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, storePath
}
