// Package config holds pagepick's configuration: built-in defaults, an optional
// KDL file, .env / environment overrides and finally command-line flags.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete server configuration.
type Config struct {
	// Version is the config file version.
	Version string `json:"version"`

	Server     ServerConfig    `json:"server"`
	Proxy      ProxyConfig     `json:"proxy"`
	Picker     PickerConfig    `json:"picker"`
	Selections SelectionConfig `json:"selections"`
	LLM        LLMConfig       `json:"llm"`
	Log        LogConfig       `json:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Listen is the bind address, e.g. ":3000" or "127.0.0.1:3000".
	Listen string `json:"listen"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// RateLimit is requests per second per client IP (0 = unlimited).
	RateLimit float64 `json:"rate_limit"`
	// RateBurst is the token bucket burst size.
	RateBurst int `json:"rate_burst"`
	// TrustProxy takes the client IP from forwarding headers. Enable only
	// behind a reverse proxy that overwrites them.
	TrustProxy bool `json:"trust_proxy"`
}

// ProxyConfig configures the fetch-and-rewrite proxy.
type ProxyConfig struct {
	// FetchTimeout is the deadline for one upstream fetch.
	FetchTimeout time.Duration `json:"fetch_timeout"`
	// MaxBodyBytes caps the decoded upstream body.
	MaxBodyBytes int64 `json:"max_body_bytes"`
	// UserAgent is sent to external targets.
	UserAgent string `json:"user_agent"`
	// InternalMarkers identify same-origin targets fetched without browser headers.
	InternalMarkers []string `json:"internal_markers"`
	// AllowedHosts restricts target hosts (empty = any host).
	AllowedHosts []string `json:"allowed_hosts,omitempty"`
	// StripScripts removes upstream <script> elements before injection.
	StripScripts bool `json:"strip_scripts"`
	// ConnectSrc, when set, emits a Content-Security-Policy connect-src allow-list.
	ConnectSrc []string `json:"connect_src,omitempty"`
	// FetchLogSize is the number of fetch log entries kept in memory.
	FetchLogSize int `json:"fetch_log_size"`
}

// PickerConfig configures the injected element picker.
type PickerConfig struct {
	// ToggleKey is the KeyboardEvent.key that toggles selection mode.
	ToggleKey string `json:"toggle_key"`
	// BlockedPaths are URL fragments whose fetch/XHR calls are short-circuited.
	BlockedPaths []string `json:"blocked_paths"`
}

// SelectionConfig configures the in-memory selection log.
type SelectionConfig struct {
	BufferSize int `json:"buffer_size"`
}

// LLMConfig configures the copy-generation collaborator.
type LLMConfig struct {
	// Provider is "ollama" or "anthropic".
	Provider string `json:"provider"`
	// BaseURL is the Ollama server URL.
	BaseURL string `json:"base_url"`
	// Model is the model name passed to the provider.
	Model string `json:"model"`
	// APIKey is only used by hosted providers.
	APIKey      string        `json:"-"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	NumPredict  int           `json:"num_predict"`
	Timeout     time.Duration `json:"timeout"`
	// ModelCacheTTL is how long a model listing is reused.
	ModelCacheTTL time.Duration `json:"model_cache_ttl"`
}

// LogConfig configures logrus.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `json:"level"`
	// Format is "auto", "text" or "json".
	Format string `json:"format"`
}

// DefaultUserAgent is the desktop browser identity sent to external sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Listen:          ":3000",
			ShutdownTimeout: 5 * time.Second,
			RateLimit:       0,
			RateBurst:       10,
		},
		Proxy: ProxyConfig{
			FetchTimeout:    30 * time.Second,
			MaxBodyBytes:    10 << 20,
			UserAgent:       DefaultUserAgent,
			InternalMarkers: []string{"localhost", "/api/"},
			FetchLogSize:    200,
		},
		Picker: PickerConfig{
			ToggleKey:    "Escape",
			BlockedPaths: []string{"/api/", "/wp-admin/"},
		},
		Selections: SelectionConfig{
			BufferSize: 500,
		},
		LLM: LLMConfig{
			Provider:      "ollama",
			BaseURL:       "http://localhost:11434",
			Model:         "llama3.2",
			Temperature:   0.7,
			TopP:          0.9,
			NumPredict:    500,
			Timeout:       60 * time.Second,
			ModelCacheTTL: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks the configuration for errors and fills zero values with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate-limit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = def.Server.RateBurst
	}

	if c.Proxy.FetchTimeout <= 0 {
		c.Proxy.FetchTimeout = def.Proxy.FetchTimeout
	}
	if c.Proxy.MaxBodyBytes <= 0 {
		c.Proxy.MaxBodyBytes = def.Proxy.MaxBodyBytes
	}
	if c.Proxy.UserAgent == "" {
		c.Proxy.UserAgent = def.Proxy.UserAgent
	}
	if c.Proxy.FetchLogSize <= 0 {
		c.Proxy.FetchLogSize = def.Proxy.FetchLogSize
	}
	for i, h := range c.Proxy.AllowedHosts {
		c.Proxy.AllowedHosts[i] = strings.ToLower(strings.TrimSpace(h))
	}

	if c.Picker.ToggleKey == "" {
		c.Picker.ToggleKey = def.Picker.ToggleKey
	}
	if c.Selections.BufferSize <= 0 {
		c.Selections.BufferSize = def.Selections.BufferSize
	}

	switch c.LLM.Provider {
	case "":
		c.LLM.Provider = def.LLM.Provider
	case "ollama", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q (want ollama or anthropic)", c.LLM.Provider)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = def.LLM.BaseURL
	}
	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		return fmt.Errorf("invalid llm base-url: %w", err)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature out of range: %v", c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
	if c.LLM.ModelCacheTTL <= 0 {
		c.LLM.ModelCacheTTL = def.LLM.ModelCacheTTL
	}

	switch c.Log.Format {
	case "":
		c.Log.Format = def.Log.Format
	case "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	return nil
}
