package respond

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "URL parameter required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"URL parameter required"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		URL string `json:"url"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.com"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "https://example.com", v.URL)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	assert.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.EqualError(t, DecodeJSON(req, &v), "request body is empty")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowed(rec, "GET, OPTIONS")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Allow"))
}

func TestJSONEncodeFailureIsLogged(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	SetLogger(log)
	t.Cleanup(func() { SetLogger(logrus.StandardLogger()) })

	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]float64{"score": math.Inf(1)})

	assert.Equal(t, http.StatusOK, rec.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "error encoding JSON response", entry.Message)
	assert.Contains(t, entry.Data, logrus.ErrorKey)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}
