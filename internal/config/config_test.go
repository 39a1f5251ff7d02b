package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "ai:\n  gemini_key: test-key\n")
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8085 {
		t.Fatalf("port default = %d", cfg.Server.Port)
	}
	if cfg.Media.MaxSizeBytes != 50<<20 {
		t.Fatalf("size ceiling default = %d", cfg.Media.MaxSizeBytes)
	}
	if cfg.Media.DownloadTimeout != 60*time.Second {
		t.Fatalf("download timeout default = %v", cfg.Media.DownloadTimeout)
	}
	if len(cfg.Media.AllowedHosts) == 0 {
		t.Fatal("allow-list default missing")
	}
	if cfg.Compare.Mode != "direct" {
		t.Fatalf("mode default = %q", cfg.Compare.Mode)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("storage default = %q", cfg.Storage.Backend)
	}
	if cfg.Prompt.Primary.TimelineMax != 8 || cfg.Prompt.Abbreviated.TimelineMax != 5 {
		t.Fatalf("timeline caps = %d/%d", cfg.Prompt.Primary.TimelineMax, cfg.Prompt.Abbreviated.TimelineMax)
	}
	if len(cfg.Prompt.Primary.Severities) != 4 || len(cfg.Prompt.Abbreviated.Severities) != 3 {
		t.Fatal("severity vocabularies not defaulted per variant")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
ai:
  gemini_key: test-key
  model_budget: 30s
server:
  port: 9000
media:
  max_size_bytes: 1048576
  allowed_hosts: [youtu.be]
prompt:
  primary:
    timeline_max: 4
`)
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.AI.ModelBudget != 30*time.Second {
		t.Fatalf("budget = %v", cfg.AI.ModelBudget)
	}
	if cfg.Media.MaxSizeBytes != 1048576 {
		t.Fatalf("ceiling = %d", cfg.Media.MaxSizeBytes)
	}
	if len(cfg.Media.AllowedHosts) != 1 || cfg.Media.AllowedHosts[0] != "youtu.be" {
		t.Fatalf("allow-list = %v", cfg.Media.AllowedHosts)
	}
	if cfg.Prompt.Primary.TimelineMax != 4 {
		t.Fatalf("timeline cap = %d", cfg.Prompt.Primary.TimelineMax)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("missing key outside dev", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		path := writeConfig(t, "server:\n  port: 8085\n")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error without an api key")
		}
	})

	t.Run("dev mode tolerates missing key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		path := writeConfig(t, "server:\n  port: 8085\n")
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("dev load: %v", err)
		}
		if !cfg.Runtime.Dev {
			t.Fatal("dev flag not carried")
		}
	})

	t.Run("env fallback for key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")
		path := writeConfig(t, "server:\n  port: 8085\n")
		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.AI.GeminiKey != "env-key" {
			t.Fatalf("key = %q", cfg.AI.GeminiKey)
		}
	})

	t.Run("delegate mode needs analyzer url", func(t *testing.T) {
		path := writeConfig(t, "ai:\n  gemini_key: k\ncompare:\n  mode: delegate\n")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for delegate mode without analyzer url")
		}
	})

	t.Run("redis backend needs url", func(t *testing.T) {
		path := writeConfig(t, "ai:\n  gemini_key: k\nstorage:\n  backend: redis\n")
		if _, err := LoadConfig(path, false); err == nil {
			t.Fatal("expected error for redis backend without url")
		}
	})
}
