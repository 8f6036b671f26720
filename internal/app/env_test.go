package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// This test verifies that LoadEnvFiles reads KEY=VALUE pairs and populates os.Environ.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR='beta'\nBAZ=\"gamma delta\"\nnot a pair\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
	if got := os.Getenv("BAZ"); got != "gamma delta" {
		t.Fatalf("BAZ=%q, want gamma delta", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvOverrides_FromEnv(t *testing.T) {
	t.Setenv(EnvInputs, "a.xml, b.xml,,")
	t.Setenv(EnvNode, "powersave")
	t.Setenv(EnvMaxSize, "4096")
	t.Setenv(EnvFormat, "JSON")
	t.Setenv(EnvCacheDir, "/tmp/rqbconf-cache")
	t.Setenv(EnvCacheMaxAge, "2h")
	t.Setenv(EnvFallback, "yes")
	t.Setenv(EnvWatch, "")

	var cfg Config
	ApplyEnvOverrides(&cfg)
	if len(cfg.Inputs) != 2 || cfg.Inputs[0] != "a.xml" || cfg.Inputs[1] != "b.xml" {
		t.Fatalf("Inputs=%q", cfg.Inputs)
	}
	if cfg.Node != "powersave" || cfg.MaxSize != 4096 || cfg.Format != "json" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.CacheDir != "/tmp/rqbconf-cache" || cfg.CacheMaxAge != 2*time.Hour {
		t.Fatalf("cache cfg=%+v", cfg)
	}
	if !cfg.Fallback || cfg.Watch {
		t.Fatalf("booleans: fallback=%v watch=%v", cfg.Fallback, cfg.Watch)
	}
}

// Set variables replace config values; unset or invalid ones leave them alone.
func TestApplyEnvOverrides_ReplacesSetValues(t *testing.T) {
	t.Setenv(EnvNode, "env-node")
	t.Setenv(EnvFallback, "false")
	t.Setenv(EnvMaxSize, "not-a-number")
	t.Setenv(EnvOutput, "")

	cfg := Config{Node: "file-node", Fallback: true, MaxSize: 100, OutputPath: "out.yaml"}
	ApplyEnvOverrides(&cfg)
	if cfg.Node != "env-node" {
		t.Fatalf("Node=%q, want env-node", cfg.Node)
	}
	if cfg.Fallback {
		t.Fatal("RQB_FALLBACK=false should clear Fallback")
	}
	if cfg.MaxSize != 100 {
		t.Fatalf("invalid RQB_MAX_SIZE applied: %d", cfg.MaxSize)
	}
	if cfg.OutputPath != "out.yaml" {
		t.Fatalf("empty RQB_OUTPUT applied: %q", cfg.OutputPath)
	}
}
