package app

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestWriteConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	dsn := "file:keymint.db?_journal_mode=WAL"

	if errWrite := WriteConfigFile(configPath, dsn, 8318); errWrite != nil {
		t.Fatalf("WriteConfigFile: %v", errWrite)
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		t.Fatalf("read config: %v", errRead)
	}

	var parsed map[string]any
	if errUnmarshal := yaml.Unmarshal(data, &parsed); errUnmarshal != nil {
		t.Fatalf("parse config: %v", errUnmarshal)
	}
	if parsed["database-dsn"] != dsn {
		t.Fatalf("expected database-dsn=%q, got %v", dsn, parsed["database-dsn"])
	}
	if parsed["port"] != 8318 {
		t.Fatalf("expected port=8318, got %v", parsed["port"])
	}
	jwt, ok := parsed["jwt"].(map[string]any)
	if !ok {
		t.Fatalf("expected jwt section, got %v", parsed["jwt"])
	}
	if secret, _ := jwt["secret"].(string); secret == "" {
		t.Fatalf("expected non-empty jwt secret")
	}
	if _, found := parsed["tls"]; found {
		t.Fatalf("expected no tls section in generated config")
	}
}
