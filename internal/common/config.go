package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Session     SessionConfig   `toml:"session"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Render      RenderConfig    `toml:"render"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Cleanup     CleanupConfig   `toml:"cleanup"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Blob   BlobConfig   `toml:"blob"`
}

// BadgerConfig represents the primary (table-style) session store
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	TimeoutSeconds int    `toml:"timeout_seconds"`  // Per-operation deadline (default: 10)
}

// BlobConfig represents the content-addressed blob store that backs
// offloaded session fields, generated PDFs and extracted photos.
type BlobConfig struct {
	Path string `toml:"path"` // Blob database directory path
}

// SessionConfig contains session lifecycle and feature-flag configuration
type SessionConfig struct {
	TTLHours         int  `toml:"ttl_hours"`          // Session expiry (default: 24)
	EventLogSize     int  `toml:"event_log_size"`     // Bounded event ring (default: 50)
	StageHistorySize int  `toml:"stage_history_size"` // Bounded stage history (default: 100)
	IdempotencyLatch bool `toml:"idempotency_latch"`  // Cache-hit CV generation on unchanged signature
	DeltaMode        bool `toml:"delta_mode"`         // Accept batched edits on update_field
	DebugAllowPages  bool `toml:"debug_allow_pages"`  // Skip the two-page assertion on generate
}

// LLMConfig contains unified configuration for all AI providers plus
// per-stage call budgets.
type LLMConfig struct {
	DefaultProvider string                 `toml:"default_provider"` // "gemini" or "claude"
	Mock            bool                   `toml:"mock"`             // Bypass provider I/O, serve fixtures (LLM_MOCK)
	MockFixtures    string                 `toml:"mock_fixtures"`    // Fixture file path for mock mode (YAML)
	Stages          map[string]StageBudget `toml:"stages"`           // Per-stage overrides keyed by stage name
}

// StageBudget bounds a single stage-specific LLM call
type StageBudget struct {
	MaxTokens  int `toml:"max_tokens"`  // Output token budget for the stage
	MaxRetries int `toml:"max_retries"` // Schema-repair retries (default: 1)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Default: "gemini-3-flash-preview"
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "60s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "4s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Default: "claude-haiku-3-5-20241022"
	MaxTokens   int     `toml:"max_tokens"`  // Hard cap per response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "60s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// RenderConfig contains PDF rendering configuration
type RenderConfig struct {
	ChromeEnabled   bool   `toml:"chrome_enabled"`   // Use headless Chrome for HTML->PDF (default: true)
	TemplateVersion string `toml:"template_version"` // Participates in content signatures
	Timeout         string `toml:"timeout"`          // Renderer deadline as duration string (default: "90s")
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig contains configuration for the session event stream
type WebSocketConfig struct {
	MinLevel      string   `toml:"min_level"`      // Minimum event level to broadcast
	AllowedEvents []string `toml:"allowed_events"` // Whitelist of event types; empty allows all
}

// CleanupConfig contains the expired-session sweep configuration
type CleanupConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule (default: "0 * * * *")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in tailor.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/sessions",
				TimeoutSeconds: 10,
			},
			Blob: BlobConfig{
				Path: "./data/blobs",
			},
		},
		Session: SessionConfig{
			TTLHours:         24,
			EventLogSize:     50,
			StageHistorySize: 100,
			IdempotencyLatch: true,
			DeltaMode:        true,
			DebugAllowPages:  false,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Mock:            false,
			MockFixtures:    "./testdata/llm_fixtures.yaml",
			Stages: map[string]StageBudget{
				"job_posting":     {MaxTokens: 1200, MaxRetries: 1},
				"translate":       {MaxTokens: 2000, MaxRetries: 1},
				"work_experience": {MaxTokens: 2240, MaxRetries: 1},
				"skills":          {MaxTokens: 1200, MaxRetries: 1},
				"further":         {MaxTokens: 1200, MaxRetries: 1},
				"education":       {MaxTokens: 1200, MaxRetries: 1},
				"cover_letter":    {MaxTokens: 1680, MaxRetries: 1},
			},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "60s",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "60s",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		Render: RenderConfig{
			ChromeEnabled:   true,
			TemplateVersion: "cv-a4-v3",
			Timeout:         "90s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			MinLevel:      "info",
			AllowedEvents: []string{},
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Schedule: "0 * * * *",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier ones. Priority: env > last file > ... > first file > defaults.
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

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TAILOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("TAILOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TAILOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("TAILOR_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if path := os.Getenv("TAILOR_BLOB_PATH"); path != "" {
		config.Storage.Blob.Path = path
	}

	// Feature flags keep their bare documented names rather than the TAILOR_ prefix
	if ttl := os.Getenv("SESSION_TTL_HOURS"); ttl != "" {
		if h, err := strconv.Atoi(ttl); err == nil && h > 0 {
			config.Session.TTLHours = h
		}
	}
	if v := os.Getenv("IDEMPOTENCY_LATCH"); v != "" {
		config.Session.IdempotencyLatch = parseBoolFlag(v)
	}
	if v := os.Getenv("DELTA_MODE"); v != "" {
		config.Session.DeltaMode = parseBoolFlag(v)
	}
	if v := os.Getenv("DEBUG_ALLOW_PAGES"); v != "" {
		config.Session.DebugAllowPages = parseBoolFlag(v)
	}
	if v := os.Getenv("LLM_MOCK"); v != "" {
		config.LLM.Mock = parseBoolFlag(v)
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}

	if level := os.Getenv("TAILOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// SessionTTL returns the configured session time-to-live
func (c *Config) SessionTTL() time.Duration {
	hours := c.Session.TTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// StageBudgetFor returns the token/retry budget for a stage, falling back to
// conservative defaults for stages missing from config.
func (c *Config) StageBudgetFor(stage string) StageBudget {
	if b, ok := c.LLM.Stages[stage]; ok {
		if b.MaxTokens <= 0 {
			b.MaxTokens = 1200
		}
		if b.MaxRetries < 0 {
			b.MaxRetries = 1
		}
		return b
	}
	return StageBudget{MaxTokens: 1200, MaxRetries: 1}
}

func parseBoolFlag(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}
