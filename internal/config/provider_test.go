package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dns-provider.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `provider: cloudflare
settings:
  api_token: "testtoken"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "cloudflare" {
		t.Errorf("expected provider 'cloudflare', got %q", cfg.Provider)
	}
	if cfg.Settings["api_token"] != "testtoken" {
		t.Errorf("expected api_token 'testtoken', got %q", cfg.Settings["api_token"])
	}
}

func TestLoadFromPath_Defaults(t *testing.T) {
	path := writeConfig(t, `provider: route53
settings:
  region: "eu-west-1"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AllowDeletes {
		t.Error("expected AllowDeletes to default to false")
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Concurrency)
	}
}

func TestLoadFromPath_EngineOptions(t *testing.T) {
	path := writeConfig(t, `provider: cloudflare
allow_deletes: true
concurrency: 8
settings:
  api_token: "testtoken"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.AllowDeletes {
		t.Error("expected AllowDeletes to be true")
	}
	if cfg.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Concurrency)
	}
}

func TestLoadFromPath_NegativeConcurrency(t *testing.T) {
	path := writeConfig(t, `provider: cloudflare
concurrency: -1
settings:
  api_token: "testtoken"
`)

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected error for negative concurrency, got nil")
	}
}

func TestLoadFromPath_MissingProvider(t *testing.T) {
	path := writeConfig(t, `settings:
  api_token: "testtoken"
`)

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected error for missing provider field, got nil")
	}
}

func TestLoadFromPath_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_API_TOKEN", "token-from-env")

	path := writeConfig(t, `provider: cloudflare
settings:
  api_token: "${TEST_API_TOKEN}"
  base_url: "https://api.example.test"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Settings["api_token"] != "token-from-env" {
		t.Errorf("expected api_token 'token-from-env', got %q", cfg.Settings["api_token"])
	}
	// Non-env values should remain unchanged.
	if cfg.Settings["base_url"] != "https://api.example.test" {
		t.Errorf("expected base_url unchanged, got %q", cfg.Settings["base_url"])
	}
}

func TestLoadFromPath_EnvVarUnset(t *testing.T) {
	path := writeConfig(t, `provider: cloudflare
settings:
  api_token: "${UNSET_VAR_THAT_DOES_NOT_EXIST}"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unset env var expands to empty string.
	if cfg.Settings["api_token"] != "" {
		t.Errorf("expected api_token '' for unset env var, got %q", cfg.Settings["api_token"])
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath("/nonexistent/path/dns-provider.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
