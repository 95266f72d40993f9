package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// KDL configuration file names
const (
	GlobalConfigFile  = "config.kdl"
	ProjectConfigFile = "pagepick.kdl"
)

// KDLConfig represents the KDL configuration structure.
// Uses kdl struct tags for unmarshaling. Durations are whole seconds.
type KDLConfig struct {
	Version    string        `kdl:"version"`
	Server     KDLServer     `kdl:"server"`
	Proxy      KDLProxy      `kdl:"proxy"`
	Picker     KDLPicker     `kdl:"picker"`
	Selections KDLSelections `kdl:"selections"`
	LLM        KDLLLM        `kdl:"llm"`
	Log        KDLLog        `kdl:"log"`
}

// KDLServer mirrors ServerConfig.
type KDLServer struct {
	Listen          string  `kdl:"listen"`
	ShutdownTimeout int     `kdl:"shutdown-timeout"`
	RateLimit       float64 `kdl:"rate-limit"`
	RateBurst       int     `kdl:"rate-burst"`
	TrustProxy      bool    `kdl:"trust-proxy"`
}

// KDLProxy mirrors ProxyConfig.
type KDLProxy struct {
	FetchTimeout    int      `kdl:"fetch-timeout"`
	MaxBodyBytes    int64    `kdl:"max-body-bytes"`
	UserAgent       string   `kdl:"user-agent"`
	InternalMarkers []string `kdl:"internal-markers"`
	AllowedHosts    []string `kdl:"allowed-hosts"`
	StripScripts    bool     `kdl:"strip-scripts"`
	ConnectSrc      []string `kdl:"connect-src"`
	FetchLogSize    int      `kdl:"fetch-log-size"`
}

// KDLPicker mirrors PickerConfig.
type KDLPicker struct {
	ToggleKey    string   `kdl:"toggle-key"`
	BlockedPaths []string `kdl:"blocked-paths"`
}

// KDLSelections mirrors SelectionConfig.
type KDLSelections struct {
	BufferSize int `kdl:"buffer-size"`
}

// KDLLLM mirrors LLMConfig.
type KDLLLM struct {
	Provider      string   `kdl:"provider"`
	BaseURL       string   `kdl:"base-url"`
	Model         string   `kdl:"model"`
	Temperature   *float64 `kdl:"temperature"`
	TopP          float64  `kdl:"top-p"`
	NumPredict    int      `kdl:"num-predict"`
	Timeout       int      `kdl:"timeout"`
	ModelCacheTTL int      `kdl:"model-cache-ttl"`
}

// KDLLog mirrors LogConfig.
type KDLLog struct {
	Level  string `kdl:"level"`
	Format string `kdl:"format"`
}

// Load resolves the configuration file and returns a validated config.
// An explicit path must exist; otherwise ./pagepick.kdl and then the global
// config are tried, falling back to defaults when neither is present.
func Load(explicitPath string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := LoadConfigFile(explicitPath)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", explicitPath, err)
		}
		return cfg, explicitPath, cfg.Validate()
	}

	for _, candidate := range []string{ProjectConfigFile, GlobalConfigPath()} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", err
		}
		cfg, err := LoadConfigFile(candidate)
		if err != nil {
			return nil, "", fmt.Errorf("load %s: %w", candidate, err)
		}
		return cfg, candidate, cfg.Validate()
	}

	cfg := DefaultConfig()
	return cfg, "", cfg.Validate()
}

// LoadConfigFile loads configuration from a specific file path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseKDLConfig(string(data))
}

// ParseKDLConfig parses KDL configuration data on top of the defaults.
func ParseKDLConfig(data string) (*Config, error) {
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}

	return kdlConfigToConfig(&kdlCfg), nil
}

// kdlConfigToConfig converts KDL config to our Config type.
func kdlConfigToConfig(k *KDLConfig) *Config {
	cfg := DefaultConfig()

	if k.Version != "" {
		cfg.Version = k.Version
	}

	// Server
	if k.Server.Listen != "" {
		cfg.Server.Listen = k.Server.Listen
	}
	if k.Server.ShutdownTimeout > 0 {
		cfg.Server.ShutdownTimeout = seconds(k.Server.ShutdownTimeout)
	}
	if k.Server.RateLimit != 0 {
		cfg.Server.RateLimit = k.Server.RateLimit
	}
	if k.Server.RateBurst > 0 {
		cfg.Server.RateBurst = k.Server.RateBurst
	}
	if k.Server.TrustProxy {
		cfg.Server.TrustProxy = true
	}

	// Proxy
	if k.Proxy.FetchTimeout > 0 {
		cfg.Proxy.FetchTimeout = seconds(k.Proxy.FetchTimeout)
	}
	if k.Proxy.MaxBodyBytes > 0 {
		cfg.Proxy.MaxBodyBytes = k.Proxy.MaxBodyBytes
	}
	if k.Proxy.UserAgent != "" {
		cfg.Proxy.UserAgent = k.Proxy.UserAgent
	}
	if len(k.Proxy.InternalMarkers) > 0 {
		cfg.Proxy.InternalMarkers = k.Proxy.InternalMarkers
	}
	if len(k.Proxy.AllowedHosts) > 0 {
		cfg.Proxy.AllowedHosts = k.Proxy.AllowedHosts
	}
	cfg.Proxy.StripScripts = k.Proxy.StripScripts
	if len(k.Proxy.ConnectSrc) > 0 {
		cfg.Proxy.ConnectSrc = k.Proxy.ConnectSrc
	}
	if k.Proxy.FetchLogSize > 0 {
		cfg.Proxy.FetchLogSize = k.Proxy.FetchLogSize
	}

	// Picker
	if k.Picker.ToggleKey != "" {
		cfg.Picker.ToggleKey = k.Picker.ToggleKey
	}
	if len(k.Picker.BlockedPaths) > 0 {
		cfg.Picker.BlockedPaths = k.Picker.BlockedPaths
	}

	if k.Selections.BufferSize > 0 {
		cfg.Selections.BufferSize = k.Selections.BufferSize
	}

	// LLM
	if k.LLM.Provider != "" {
		cfg.LLM.Provider = k.LLM.Provider
	}
	if k.LLM.BaseURL != "" {
		cfg.LLM.BaseURL = k.LLM.BaseURL
	}
	if k.LLM.Model != "" {
		cfg.LLM.Model = k.LLM.Model
	}
	// 0 is a valid temperature, so only an absent node keeps the default.
	if k.LLM.Temperature != nil {
		cfg.LLM.Temperature = *k.LLM.Temperature
	}
	if k.LLM.TopP > 0 {
		cfg.LLM.TopP = k.LLM.TopP
	}
	if k.LLM.NumPredict > 0 {
		cfg.LLM.NumPredict = k.LLM.NumPredict
	}
	if k.LLM.Timeout > 0 {
		cfg.LLM.Timeout = seconds(k.LLM.Timeout)
	}
	if k.LLM.ModelCacheTTL > 0 {
		cfg.LLM.ModelCacheTTL = seconds(k.LLM.ModelCacheTTL)
	}

	// Log
	if k.Log.Level != "" {
		cfg.Log.Level = k.Log.Level
	}
	if k.Log.Format != "" {
		cfg.Log.Format = k.Log.Format
	}

	return cfg
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "pagepick", GlobalConfigFile)
}

// DefaultKDL is the documented default configuration written by `config init`.
const DefaultKDL = `// pagepick configuration

version "1.0"

server {
    listen ":3000"
    // Graceful shutdown timeout in seconds
    shutdown-timeout 5
    // Requests per second per client IP (0 = unlimited)
    rate-limit 0.0
    rate-burst 10
    // Take the client IP from X-Forwarded-For / X-Real-IP (only behind a trusted proxy)
    trust-proxy false
}

proxy {
    // Upstream fetch deadline in seconds
    fetch-timeout 30
    max-body-bytes 10485760
    // Targets containing one of these are fetched without browser headers
    internal-markers "localhost" "/api/"
    // Uncomment to restrict which sites may be proxied
    // allowed-hosts "example.com" "www.example.com"
    strip-scripts false
    // connect-src "'self'"
    fetch-log-size 200
}

picker {
    toggle-key "Escape"
    blocked-paths "/api/" "/wp-admin/"
}

selections {
    buffer-size 500
}

llm {
    provider "ollama"
    base-url "http://localhost:11434"
    model "llama3.2"
    temperature 0.7
    top-p 0.9
    num-predict 500
    timeout 60
    model-cache-ttl 60
}

log {
    level "info"
    // auto, text or json
    format "auto"
}
`

// WriteDefaultConfig writes a default config file with documentation.
// It refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	// Create directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(strings.TrimSpace(DefaultKDL)+"\n"), 0644)
}
