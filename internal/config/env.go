package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvListen       = "PAGEPICK_LISTEN"
	EnvOllamaURL    = "PAGEPICK_OLLAMA_URL"
	EnvLLMProvider  = "PAGEPICK_LLM_PROVIDER"
	EnvLLMModel     = "PAGEPICK_LLM_MODEL"
	EnvLogLevel     = "PAGEPICK_LOG_LEVEL"
	EnvLogFormat    = "PAGEPICK_LOG_FORMAT"
	EnvFetchTimeout = "PAGEPICK_FETCH_TIMEOUT"
	EnvAllowedHosts = "PAGEPICK_ALLOWED_HOSTS"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
)

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored; variables already set are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides c with values found through lookup, usually os.LookupEnv.
// Malformed values are reported rather than silently ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvListen); ok {
		c.Server.Listen = v
	}
	if v, ok := get(EnvOllamaURL); ok {
		c.LLM.BaseURL = v
	}
	if v, ok := get(EnvLLMProvider); ok {
		c.LLM.Provider = v
	}
	if v, ok := get(EnvLLMModel); ok {
		c.LLM.Model = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.Log.Format = v
	}
	if v, ok := get(EnvFetchTimeout); ok {
		d, err := parseDuration(v)
		if err != nil {
			return &EnvError{Key: EnvFetchTimeout, Value: v, Err: err}
		}
		c.Proxy.FetchTimeout = d
	}
	if v, ok := get(EnvAllowedHosts); ok {
		c.Proxy.AllowedHosts = splitList(v)
	}
	if v, ok := get(EnvAnthropicKey); ok {
		c.LLM.APIKey = v
	}
	return nil
}

// EnvError reports a malformed environment override.
type EnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return e.Key + "=" + strconv.Quote(e.Value) + ": " + e.Err.Error()
}

func (e *EnvError) Unwrap() error { return e.Err }

// parseDuration accepts Go durations ("45s") or bare seconds ("45").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return seconds(n), nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
