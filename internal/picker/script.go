// Package picker renders the element-picker script injected into proxied pages.
package picker

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/standardbeagle/pagepick/internal/config"
)

//go:embed picker.js
var pickerJS string

var pickerTmpl = template.Must(template.New("picker").Parse(pickerJS))

// Indicator texts shown in the proxied page.
const (
	MessageSelecting = "Element Selection Mode - Click to select"
	MessageSelected  = "Element Selected!"
	MessageDisabled  = "Selection Mode Disabled - Press ESC to enable"
)

// FlashDuration is how long "Element Selected!" stays on the indicator.
const FlashDuration = 2 * time.Second

// Options is the client-side configuration baked into the script.
type Options struct {
	ToggleKey    string   `json:"toggleKey"`
	BlockedPaths []string `json:"blockedPaths"`
	FlashMillis  int64    `json:"flashMillis"`
	Messages     Messages `json:"messages"`
}

// Messages are the indicator texts.
type Messages struct {
	Selecting string `json:"selecting"`
	Selected  string `json:"selected"`
	Disabled  string `json:"disabled"`
}

// OptionsFrom derives script options from the picker configuration.
func OptionsFrom(cfg config.PickerConfig) Options {
	toggle := cfg.ToggleKey
	if toggle == "" {
		toggle = "Escape"
	}
	disabled := MessageDisabled
	if toggle != "Escape" {
		disabled = "Selection Mode Disabled - Press " + toggle + " to enable"
	}
	blocked := cfg.BlockedPaths
	if blocked == nil {
		blocked = []string{}
	}
	return Options{
		ToggleKey:    toggle,
		BlockedPaths: blocked,
		FlashMillis:  FlashDuration.Milliseconds(),
		Messages: Messages{
			Selecting: MessageSelecting,
			Selected:  MessageSelected,
			Disabled:  disabled,
		},
	}
}

// Render executes the picker template for opts.
func Render(opts Options) (string, error) {
	cfgJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode picker options: %w", err)
	}

	var buf bytes.Buffer
	if err := pickerTmpl.Execute(&buf, struct{ ConfigJSON string }{string(cfgJSON)}); err != nil {
		return "", fmt.Errorf("render picker: %w", err)
	}
	return buf.String(), nil
}

var (
	// Rendered scripts keyed by their JSON options
	cache   = map[string]string{}
	cacheMu sync.Mutex
)

// Script returns the rendered script for cfg, rendering each distinct
// configuration only once.
func Script(cfg config.PickerConfig) (string, error) {
	opts := OptionsFrom(cfg)
	key, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if s, ok := cache[string(key)]; ok {
		return s, nil
	}
	s, err := Render(opts)
	if err != nil {
		return "", err
	}
	cache[string(key)] = s
	return s, nil
}
