package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("expected Provider.Name=anthropic, got %s", cfg.Provider.Name)
	}
	if cfg.Router.KeywordThreshold != 0.3 {
		t.Errorf("expected KeywordThreshold=0.3, got %v", cfg.Router.KeywordThreshold)
	}
	if cfg.Router.MinCoveredPhases != 2 {
		t.Errorf("expected MinCoveredPhases=2, got %d", cfg.Router.MinCoveredPhases)
	}
	if cfg.Router.MaxAnalysisChars != 15000 {
		t.Errorf("expected MaxAnalysisChars=15000, got %d", cfg.Router.MaxAnalysisChars)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SIFT_PROVIDER", "")
	t.Setenv("SIFT_MODEL", "")

	home := t.TempDir()

	cfg := DefaultConfig()
	cfg.Home = home
	cfg.Provider.Name = "openai"
	cfg.Provider.APIKey = "sk-test"

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider.Name != "openai" {
		t.Errorf("expected Provider.Name=openai, got %s", loaded.Provider.Name)
	}
	if loaded.Provider.APIKey != "sk-test" {
		t.Errorf("expected APIKey=sk-test, got %s", loaded.Provider.APIKey)
	}
}

func TestConfig_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SIFT_PROVIDER", "")
	t.Setenv("SIFT_MODEL", "")

	home := t.TempDir()
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("expected default provider, got %s", cfg.Provider.Name)
	}
	if cfg.Home != home {
		t.Errorf("expected Home=%s, got %s", home, cfg.Home)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "env-openai-key")
	t.Setenv("SIFT_PROVIDER", "")
	t.Setenv("SIFT_MODEL", "gpt-4o")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Provider.Name != "openai" {
		t.Errorf("expected Provider.Name=openai, got %s", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "env-openai-key" {
		t.Errorf("expected APIKey=env-openai-key, got %s", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "gpt-4o" {
		t.Errorf("expected Model=gpt-4o, got %s", cfg.Provider.Model)
	}
}

func TestConfig_ExplicitProviderWinsOverKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "k-anthropic")
	t.Setenv("OPENAI_API_KEY", "k-openai")
	t.Setenv("SIFT_PROVIDER", "openai")
	t.Setenv("SIFT_MODEL", "")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Provider.Name != "openai" {
		t.Errorf("expected Provider.Name=openai, got %s", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "k-openai" {
		t.Errorf("expected openai key, got %s", cfg.Provider.APIKey)
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SIFT_PROVIDER", "")
	t.Setenv("SIFT_MODEL", "")

	home := t.TempDir()
	partial := "provider:\n  name: anthropic\n  api_key: sk-part\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(partial), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Router.MaxAnalysisChars != 15000 {
		t.Errorf("expected default MaxAnalysisChars, got %d", cfg.Router.MaxAnalysisChars)
	}
	if cfg.Router.MaxTokens != 4000 {
		t.Errorf("expected default Router.MaxTokens, got %d", cfg.Router.MaxTokens)
	}
	if cfg.Provider.Timeout != "120s" {
		t.Errorf("expected default timeout, got %s", cfg.Provider.Timeout)
	}
	if cfg.Provider.APIKey != "sk-part" {
		t.Errorf("expected APIKey=sk-part, got %s", cfg.Provider.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.Provider.Name = "invalid-provider"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}

	cfg = DefaultConfig()
	cfg.Router.KeywordThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for threshold out of range")
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Home = "/tmp/sift-home"

	if cfg.GetProviderTimeout() == 0 {
		t.Error("GetProviderTimeout should return non-zero duration")
	}
	if cfg.SessionsDir() != filepath.Join("/tmp/sift-home", "sessions") {
		t.Errorf("unexpected SessionsDir: %s", cfg.SessionsDir())
	}
	if cfg.TemplatesDir() != filepath.Join("/tmp/sift-home", "templates") {
		t.Errorf("unexpected TemplatesDir: %s", cfg.TemplatesDir())
	}
}

func TestDefaultHome_EnvOverride(t *testing.T) {
	t.Setenv("SIFT_HOME", "/tmp/custom-sift")
	if got := DefaultHome(); got != "/tmp/custom-sift" {
		t.Errorf("DefaultHome=%q, want /tmp/custom-sift", got)
	}
}
