package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/respondo/internal/models"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", config.Server.Port)
	}
	if config.Chunking.ChunkSize != 512 || config.Chunking.ChunkOverlap != 256 {
		t.Fatalf("unexpected chunking defaults: %+v", config.Chunking)
	}
	if config.Retrieval.TopK != 4 {
		t.Fatalf("expected default top_k 4, got %d", config.Retrieval.TopK)
	}
	if config.Answer.MaxWords != 120 {
		t.Fatalf("expected default max_words 120, got %d", config.Answer.MaxWords)
	}
	if config.Gemini.EmbedModel != "gemini-embedding-001" {
		t.Fatalf("unexpected embed model %q", config.Gemini.EmbedModel)
	}
	if config.LLM.DefaultProvider != LLMProviderGemini {
		t.Fatalf("expected gemini as default provider, got %q", config.LLM.DefaultProvider)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadFromFilesOverridesDefaults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "respondo.toml")
	content := `
[server]
port = 9090

[chunking]
chunk_size = 1024
chunk_overlap = 128

[retrieval]
top_k = 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatal(err)
	}

	if config.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", config.Server.Port)
	}
	if config.Chunking.ChunkSize != 1024 || config.Chunking.ChunkOverlap != 128 {
		t.Fatalf("chunking override not applied: %+v", config.Chunking)
	}
	if config.Retrieval.TopK != 8 {
		t.Fatalf("expected top_k 8, got %d", config.Retrieval.TopK)
	}
	// Unmentioned settings keep their defaults
	if config.Answer.MaxWords != 120 {
		t.Fatalf("default max_words lost: %d", config.Answer.MaxWords)
	}
}

func TestLoadFromFilesLaterFileWins(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	base := filepath.Join(tmpDir, "base.toml")
	local := filepath.Join(tmpDir, "local.toml")
	if err := os.WriteFile(base, []byte("[server]\nport = 9000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("[server]\nport = 9001\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFiles(base, local)
	if err != nil {
		t.Fatal(err)
	}
	if config.Server.Port != 9001 {
		t.Fatalf("later file should win, got port %d", config.Server.Port)
	}
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	t.Setenv("RESPONDO_SERVER_PORT", "7070")
	t.Setenv("RESPONDO_TOP_K", "2")
	t.Setenv("RESPONDO_GEMINI_API_KEY", "test-key")

	config, err := LoadFromFiles()
	if err != nil {
		t.Fatal(err)
	}

	if config.Server.Port != 7070 {
		t.Fatalf("env port override not applied, got %d", config.Server.Port)
	}
	if config.Retrieval.TopK != 2 {
		t.Fatalf("env top_k override not applied, got %d", config.Retrieval.TopK)
	}
	if config.Gemini.APIKey != "test-key" {
		t.Fatal("env API key override not applied")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero max_words", func(c *Config) { c.Answer.MaxWords = 0 }},
		{"zero context budget", func(c *Config) { c.Answer.MaxContextChars = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.DefaultProvider = "openai" }},
		{"bad gemini timeout", func(c *Config) { c.Gemini.Timeout = "soon" }},
		{"bad session ttl", func(c *Config) { c.Sessions.TTL = "forever" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			var cfgErr *models.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9999, "0.0.0.0")
	if config.Server.Port != 9999 || config.Server.Host != "0.0.0.0" {
		t.Fatalf("flag overrides not applied: %+v", config.Server)
	}

	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 9999 || config.Server.Host != "0.0.0.0" {
		t.Fatalf("zero flags must not clobber config: %+v", config.Server)
	}
}

func TestSessionTTL(t *testing.T) {
	config := NewDefaultConfig()

	if config.SessionTTL() != 0 {
		t.Fatalf("expected eviction disabled by default, got %v", config.SessionTTL())
	}

	config.Sessions.TTL = "30m"
	if config.SessionTTL() != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", config.SessionTTL())
	}

	config.Sessions.TTL = "0"
	if config.SessionTTL() != 0 {
		t.Fatalf("expected 0 for disabled ttl, got %v", config.SessionTTL())
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles("/nonexistent/respondo.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
