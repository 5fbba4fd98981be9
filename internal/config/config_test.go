package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 38555 {
		t.Errorf("Port = %d, want 38555", cfg.Server.Port)
	}
	if cfg.Memory.SessionGapMinutes != 30 {
		t.Errorf("SessionGapMinutes = %d, want 30", cfg.Memory.SessionGapMinutes)
	}
	if cfg.ListenAddr() != "127.0.0.1:38555" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 38555 {
		t.Errorf("missing file should yield defaults, got port %d", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9999
llm:
  provider: ollama
  ollama_model: llama3.2
memory:
  session_gap_minutes: 45
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, unset fields should keep defaults", cfg.Server.Bind)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.OllamaModel != "llama3.2" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Memory.SessionGapMinutes != 45 {
		t.Errorf("SessionGapMinutes = %d, want 45", cfg.Memory.SessionGapMinutes)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}
