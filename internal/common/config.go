package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/respondo/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Documents   DocumentsConfig `toml:"documents"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Answer      AnswerConfig    `toml:"answer"`
	Sessions    SessionsConfig  `toml:"sessions"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration for index persistence
type BadgerConfig struct {
	Path           string `toml:"path"`             // Index database directory path ("" disables persistence)
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete persisted index on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// DocumentsConfig configures the document source directory
type DocumentsConfig struct {
	Dir        string   `toml:"dir"`        // Directory to ingest at startup ("" = no startup ingest)
	Extensions []string `toml:"extensions"` // File extensions to load (default: .txt, .md, .csv, .pdf)
}

// ChunkingConfig configures how documents are split into passages.
type ChunkingConfig struct {
	ChunkSize    int `toml:"chunk_size" validate:"gt=0"`     // Maximum passage length in characters
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0"` // Characters shared between consecutive passages
}

// RetrievalConfig configures similarity search
type RetrievalConfig struct {
	TopK int `toml:"top_k" validate:"gt=0"` // Passages retrieved per query
}

// AnswerConfig bounds synthesized answers and their context block
type AnswerConfig struct {
	MaxWords        int `toml:"max_words" validate:"gt=0"`         // Answer length ceiling enforced via the system prompt
	MaxContextChars int `toml:"max_context_chars" validate:"gt=0"` // Context block budget; lowest-ranked passages are dropped first
}

// SessionsConfig configures conversation session lifecycle. Eviction is
// disabled by default; the sweep is strictly opt-in.
type SessionsConfig struct {
	TTL           string `toml:"ttl"`            // Idle lifetime before a sweep may evict ("" or "0" = never)
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule for the eviction sweep ("" = disabled)
}

// GeminiConfig contains Google Gemini API configuration for embeddings and chat
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Chat model (default: "gemini-2.0-flash")
	EmbedModel     string  `toml:"embed_model"`     // Embedding model (default: "gemini-embedding-001")
	EmbedDimension int     `toml:"embed_dimension"` // Embedding output dimensionality (default: 768)
	Timeout        string  `toml:"timeout"`         // Operation timeout as duration string (default: "2m")
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between API calls (default: "4s" for free tier)
	Temperature    float32 `toml:"temperature"`     // Chat completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration for chat
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY or config)
	Model       string  `toml:"model"`       // Chat model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2048)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between API calls (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the generative-model provider. Embeddings always come
// from Gemini; answer synthesis and query rewriting follow this setting.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum log level to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Log message patterns to exclude from broadcasting
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings belong in respondo.toml; everything here is a
// working default.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/index",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Documents: DocumentsConfig{
			Dir:        "",
			Extensions: []string{".txt", ".md", ".csv", ".pdf"},
		},
		Chunking: ChunkingConfig{
			ChunkSize:    512,
			ChunkOverlap: 256,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Answer: AnswerConfig{
			MaxWords:        120,
			MaxContextChars: 8000,
		},
		Sessions: SessionsConfig{
			TTL:           "", // Never evict
			SweepSchedule: "",
		},
		Gemini: GeminiConfig{
			APIKey:         "",
			Model:          "gemini-2.0-flash",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Timeout:        "2m",
			RateLimit:      "4s",
			Temperature:    0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   2048,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ExcludePatterns: []string{
				"WebSocket client connected",
				"WebSocket client disconnected",
				"HTTP request",
			},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values over the loaded
// configuration. Zero values leave the config untouched.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the pipeline parameters before any I/O happens. Violations
// are fatal ConfigErrors, not warnings.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := isValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			field := verrs[0].Namespace()
			return models.NewConfigError(field, fmt.Sprintf("failed %q constraint", verrs[0].Tag()))
		}
		return models.NewConfigError("config", err.Error())
	}

	// Cross-field rule the tag syntax cannot express: overlap must leave room
	// for the splitter to advance, otherwise chunking loops or duplicates.
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return models.NewConfigError("chunking.chunk_overlap",
			fmt.Sprintf("must be smaller than chunk_size (%d >= %d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize))
	}

	if c.LLM.DefaultProvider != LLMProviderGemini && c.LLM.DefaultProvider != LLMProviderClaude {
		return models.NewConfigError("llm.default_provider",
			fmt.Sprintf("unknown provider %q (expected gemini or claude)", c.LLM.DefaultProvider))
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"gemini.timeout", c.Gemini.Timeout},
		{"gemini.rate_limit", c.Gemini.RateLimit},
		{"claude.timeout", c.Claude.Timeout},
		{"claude.rate_limit", c.Claude.RateLimit},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return models.NewConfigError(field.name, fmt.Sprintf("invalid duration %q", field.value))
		}
	}

	if c.Sessions.TTL != "" && c.Sessions.TTL != "0" {
		if _, err := time.ParseDuration(c.Sessions.TTL); err != nil {
			return models.NewConfigError("sessions.ttl", fmt.Sprintf("invalid duration %q", c.Sessions.TTL))
		}
	}

	return nil
}

// SessionTTL returns the parsed idle lifetime, or zero when eviction is
// disabled. Validate has already rejected malformed values.
func (c *Config) SessionTTL() time.Duration {
	if c.Sessions.TTL == "" || c.Sessions.TTL == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Sessions.TTL)
	if err != nil {
		return 0
	}
	return d
}

func isValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RESPONDO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("RESPONDO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RESPONDO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("RESPONDO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("RESPONDO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RESPONDO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RESPONDO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Documents configuration
	if dir := os.Getenv("RESPONDO_DOCUMENTS_DIR"); dir != "" {
		config.Documents.Dir = dir
	}

	// Chunking configuration
	if size := os.Getenv("RESPONDO_CHUNK_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			config.Chunking.ChunkSize = s
		}
	}
	if overlap := os.Getenv("RESPONDO_CHUNK_OVERLAP"); overlap != "" {
		if o, err := strconv.Atoi(overlap); err == nil {
			config.Chunking.ChunkOverlap = o
		}
	}

	// Retrieval configuration
	if topK := os.Getenv("RESPONDO_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.TopK = k
		}
	}

	// API keys: dedicated env vars take priority over config values
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("RESPONDO_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("RESPONDO_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	// LLM provider selection
	if provider := os.Getenv("RESPONDO_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
}
