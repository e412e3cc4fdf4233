package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestHolder_GetAndReload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	defer h.Stop()

	if got := h.Get().Server.Port; got != 9090 {
		t.Fatalf("port = %d, want 9090", got)
	}

	var notified *Config
	h.OnChange(func(cfg *Config) { notified = cfg })

	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := h.Get().Server.Port; got != 7070 {
		t.Errorf("port after reload = %d, want 7070", got)
	}
	if notified == nil || notified.Server.Port != 7070 {
		t.Error("onChange listener did not see the new config")
	}
}

func TestHolder_ReloadKeepsOldOnError(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	h, err := NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("expected reload to fail on invalid config")
	}

	if got := h.Get().Server.Port; got != 9090 {
		t.Errorf("port = %d, old config should survive a failed reload", got)
	}
}

func TestHolder_InitialLoadFailure(t *testing.T) {
	if _, err := NewHolder("/nonexistent/subgate.yaml", zerolog.Nop()); err == nil {
		t.Error("expected error for missing config file")
	}
}
