package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/logging"
)

type stubProvider struct {
	available  bool
	completion string
	err        error
	models     []string
	prompts    []string
}

func (s *stubProvider) Name() string                     { return "stub" }
func (s *stubProvider) Model() string                    { return "stub-model" }
func (s *stubProvider) IsAvailable(context.Context) bool { return s.available }
func (s *stubProvider) ListModels(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models, nil
}
func (s *stubProvider) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.prompts = append(s.prompts, req.Prompt)
	return s.completion, s.err
}

var copyReq = CopyRequest{
	OriginalContent: "buy now",
	CampaignName:    "Summer Sale",
	TargetAudience:  "students",
	Restrictions:    []string{"no emoji", "formal"},
	Guidance:        "make it fun",
}

func newGen(p Provider) *Generator {
	return NewGenerator(p, Options{Temperature: Float(0.7), TopP: 0.9, NumPredict: 500}, logging.Discard())
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		isErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"wrapped in prose", "Sure! Here it is:\n{\"a\": {\"b\": 2}}\nHope it helps", `{"a": {"b": 2}}`, false},
		{"array", `["x"]`, `["x"]`, false},
		{"nothing", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.isErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseSuggestionValidatesConfidence(t *testing.T) {
	_, err := ParseSuggestion(`{"generatedContent":"x","reasoning":"y","confidence":1.5}`)
	assert.Error(t, err)

	s, err := ParseSuggestion(`{"generatedContent":"x","reasoning":"y","confidence":0.9,"alternatives":["a","b"]}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, s.Confidence, 1e-9)
	assert.Equal(t, []string{"a", "b"}, s.Alternatives)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(copyReq)
	assert.Contains(t, p, `ORIGINAL CONTENT: "buy now"`)
	assert.Contains(t, p, "- Campaign: Summer Sale")
	assert.Contains(t, p, "- Target Audience: students")
	assert.Contains(t, p, "- Restrictions: no emoji, formal")
	assert.Contains(t, p, "- Guidance: make it fun")
	assert.Contains(t, p, `"originalContent": "buy now"`)

	bare := BuildPrompt(CopyRequest{OriginalContent: "x", CampaignName: "c", TargetAudience: "a"})
	assert.NotContains(t, bare, "Restrictions")
	assert.NotContains(t, bare, "Guidance")
}

func TestGeneratorUsesProvider(t *testing.T) {
	p := &stubProvider{
		available:  true,
		completion: "Here you go: {\"generatedContent\":\"Grab it today\",\"reasoning\":\"urgency\",\"confidence\":0.8}",
	}
	s, err := newGen(p).Generate(context.Background(), copyReq)
	require.NoError(t, err)

	assert.Equal(t, "Grab it today", s.GeneratedContent)
	assert.Equal(t, "buy now", s.OriginalContent)
	assert.Equal(t, "stub", s.Source)
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Summer Sale")
}

func TestGeneratorMockWhenUnavailable(t *testing.T) {
	p := &stubProvider{available: false}
	s, err := newGen(p).Generate(context.Background(), copyReq)
	require.NoError(t, err)

	assert.Equal(t, "[Mock AI] buy now - Optimized for Summer Sale", s.GeneratedContent)
	assert.InDelta(t, 0.75, s.Confidence, 1e-9)
	assert.Equal(t, SourceMock, s.Source)
	assert.Len(t, s.Alternatives, 2)
	assert.Empty(t, p.prompts, "unavailable provider must not be called")
}

func TestGeneratorFallbackOnGarbage(t *testing.T) {
	for name, p := range map[string]*stubProvider{
		"provider error":   {available: true, err: errors.New("boom")},
		"no json":          {available: true, completion: "I cannot help"},
		"bad confidence":   {available: true, completion: `{"generatedContent":"x","reasoning":"y","confidence":7}`},
		"missing required": {available: true, completion: `{"confidence":0.5}`},
	} {
		t.Run(name, func(t *testing.T) {
			s, err := newGen(p).Generate(context.Background(), copyReq)
			require.NoError(t, err)
			assert.Equal(t, "[Enhanced] Buy Now - Tailored for Summer Sale", s.GeneratedContent)
			assert.InDelta(t, 0.6, s.Confidence, 1e-9)
			assert.Equal(t, SourceFallback, s.Source)
		})
	}
}

func TestGeneratorRejectsInvalidRequest(t *testing.T) {
	_, err := newGen(&stubProvider{available: true}).Generate(context.Background(), CopyRequest{OriginalContent: "x"})
	assert.Error(t, err)
}

// fakeOllama answers /api/tags and /api/chat the way an Ollama server does.
func fakeOllama(t *testing.T, reply string) (*httptest.Server, *atomic.Int32, chan []byte) {
	t.Helper()
	var tagCalls atomic.Int32
	bodies := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			tagCalls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"models":[{"name":"llama3.2:latest"},{"name":"mistral:latest"}]}`)
		case "/api/chat", "/api/generate":
			body, _ := io.ReadAll(r.Body)
			bodies <- body
			out, _ := json.Marshal(map[string]any{
				"model":    "llama3.2",
				"message":  map[string]string{"role": "assistant", "content": reply},
				"response": reply,
				"done":     true,
			})
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Write(append(out, '\n'))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &tagCalls, bodies
}

func ollamaConfig(baseURL string) config.LLMConfig {
	cfg := config.DefaultConfig().LLM
	cfg.BaseURL = baseURL
	return cfg
}

func TestOllamaAvailabilityAndModels(t *testing.T) {
	srv, tagCalls, _ := fakeOllama(t, "")
	o, err := NewOllama(ollamaConfig(srv.URL), srv.Client())
	require.NoError(t, err)

	assert.True(t, o.IsAvailable(context.Background()))

	models, err := o.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:latest"}, models)

	// second listing is served from cache
	_, err = o.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), tagCalls.Load())
}

func TestOllamaUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o, err := NewOllama(ollamaConfig(url), nil)
	require.NoError(t, err)
	assert.False(t, o.IsAvailable(context.Background()))

	_, err = o.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrProviderError)
}

func TestOllamaListModelsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, err := NewOllama(ollamaConfig(srv.URL), srv.Client())
	require.NoError(t, err)
	assert.False(t, o.IsAvailable(context.Background()))
	_, err = o.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrProviderError)
}

func TestOllamaGenerate(t *testing.T) {
	srv, _, bodies := fakeOllama(t, "hello from llama")
	o, err := NewOllama(ollamaConfig(srv.URL), srv.Client())
	require.NoError(t, err)

	out, err := o.Generate(context.Background(), GenerateRequest{
		Prompt:  "say hello",
		Options: Options{Temperature: Float(0.2), TopP: 0.9, NumPredict: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from llama", out)

	select {
	case body := <-bodies:
		assert.Contains(t, string(body), "say hello")
		assert.Contains(t, string(body), "llama3.2")
	case <-time.After(time.Second):
		t.Fatal("ollama was not called")
	}
}

func TestOllamaGenerateSendsTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp float64
	}{
		{"zero", 0},
		{"set", 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, bodies := fakeOllama(t, "ok")
			o, err := NewOllama(ollamaConfig(srv.URL), srv.Client())
			require.NoError(t, err)

			_, err = o.Generate(context.Background(), GenerateRequest{
				Prompt:  "x",
				Options: Options{Temperature: Float(tt.temp), TopK: 7},
			})
			require.NoError(t, err)

			var sent struct {
				Options map[string]any `json:"options"`
			}
			require.NoError(t, json.Unmarshal(<-bodies, &sent))
			require.Contains(t, sent.Options, "temperature")
			assert.InDelta(t, tt.temp, sent.Options["temperature"], 1e-6)
			assert.EqualValues(t, 7, sent.Options["top_k"])
		})
	}
}

func TestDefaultOptionsKeepsZeroTemperature(t *testing.T) {
	cfg := config.DefaultConfig().LLM
	cfg.Temperature = 0
	opts := DefaultOptions(cfg)
	require.NotNil(t, opts.Temperature)
	assert.Zero(t, *opts.Temperature)
	assert.InDelta(t, cfg.TopP, opts.TopP, 1e-9)
}

func TestGeneratorEndToEndWithOllama(t *testing.T) {
	reply := `{"generatedContent":"Study hard, save harder","reasoning":"audience","confidence":0.7}`
	srv, _, _ := fakeOllama(t, reply)
	o, err := NewOllama(ollamaConfig(srv.URL), srv.Client())
	require.NoError(t, err)

	s, err := newGen(o).Generate(context.Background(), copyReq)
	require.NoError(t, err)
	assert.Equal(t, "Study hard, save harder", s.GeneratedContent)
	assert.Equal(t, ProviderOllama, s.Source)
}

func TestAnthropicWithoutKey(t *testing.T) {
	cfg := config.DefaultConfig().LLM
	cfg.Provider = ProviderAnthropic
	p := NewAnthropic(cfg, nil)

	assert.Equal(t, DefaultAnthropicModel, p.Model())
	assert.False(t, p.IsAvailable(context.Background()))
	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultAnthropicModel}, models)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig().LLM
	p, err := NewProvider(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p.Name())

	cfg.Provider = ProviderAnthropic
	p, err = NewProvider(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())

	cfg.Provider = "openai"
	_, err = NewProvider(cfg, logging.Discard())
	assert.Error(t, err)
}

func newLLMServer(t *testing.T, p Provider) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(newGen(p), logging.Discard()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateHandler(t *testing.T) {
	srv := newLLMServer(t, &stubProvider{available: false})

	body, _ := json.Marshal(copyReq)
	resp, err := http.Post(srv.URL+"/api/generate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s Suggestion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, SourceMock, s.Source)
}

func TestGenerateHandlerValidation(t *testing.T) {
	srv := newLLMServer(t, &stubProvider{available: true})

	resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(`{"originalContent":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.ElementsMatch(t, []string{"campaignName", "targetAudience"}, body.Fields)

	get, err := http.Get(srv.URL + "/api/generate")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestHealthAndModelsHandlers(t *testing.T) {
	srv := newLLMServer(t, &stubProvider{available: true, models: []string{"a", "b"}})

	resp, err := http.Get(srv.URL + "/api/llm/health")
	require.NoError(t, err)
	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	resp.Body.Close()
	assert.Equal(t, Health{Provider: "stub", Model: "stub-model", Available: true}, h)

	resp, err = http.Get(srv.URL + "/api/llm/models")
	require.NoError(t, err)
	var m struct {
		Models []string `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	resp.Body.Close()
	assert.Equal(t, []string{"a", "b"}, m.Models)
}

func TestModelsHandlerUpstreamFailure(t *testing.T) {
	srv := newLLMServer(t, &stubProvider{err: ErrProviderError})
	resp, err := http.Get(srv.URL + "/api/llm/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
