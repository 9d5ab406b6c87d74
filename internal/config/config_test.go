package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001 from file", cfg.Server.Port)
	}
	if cfg.Session.Lifetime != 172800 {
		t.Errorf("Session.Lifetime = %d, want default 172800", cfg.Session.Lifetime)
	}
	if cfg.Security.MaxLoginAttempts != 5 {
		t.Errorf("Security.MaxLoginAttempts = %d, want default 5", cfg.Security.MaxLoginAttempts)
	}
	if cfg.Upload.MaxFileSize != 5242880 {
		t.Errorf("Upload.MaxFileSize = %d, want default 5242880", cfg.Upload.MaxFileSize)
	}
	if cfg.Posts.AllowedHTMLTags == "" {
		t.Error("Posts.AllowedHTMLTags default missing")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SBC_SERVER_PORT", "9002")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9002 {
		t.Errorf("Server.Port = %d, want 9002 from env", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load with missing file should fail")
	}
}
