package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pagepick/internal/config"
)

func TestNewAutoUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "debug", Format: "auto"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("target", "https://example.com").Info("fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetched", entry["msg"])
	assert.Equal(t, "https://example.com", entry["target"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Format: "text"}, &buf)
	require.NoError(t, err)
	log.Warn("slow upstream")
	assert.Contains(t, buf.String(), "slow upstream")
	assert.Contains(t, buf.String(), "level=warning")
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)

	_, err = New(config.LogConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}
