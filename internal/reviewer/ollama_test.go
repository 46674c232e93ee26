package reviewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/featureflow/internal/config"
)

func newTagsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaAdapter_CheckAvailability(t *testing.T) {
	tags := `{"models":[{"name":"llama3.1:latest","model":"llama3.1:latest"},{"name":"qwen2.5:7b","model":"qwen2.5:7b"}]}`

	tests := []struct {
		name        string
		model       string
		status      int
		body        string
		wantOK      bool
		wantReason  string
		wantInstall string
	}{
		{name: "latest tag matches bare name", model: "llama3.1", status: http.StatusOK, body: tags, wantOK: true},
		{name: "exact tag", model: "qwen2.5:7b", status: http.StatusOK, body: tags, wantOK: true},
		{
			name: "model not pulled", model: "mistral", status: http.StatusOK, body: tags,
			wantReason: `model "mistral" is not pulled`, wantInstall: "ollama pull mistral",
		},
		{
			name: "server error", model: "llama3.1", status: http.StatusInternalServerError, body: "boom",
			wantReason: "500", wantInstall: "start ollama (ollama serve) and run: ollama pull llama3.1",
		},
		{
			name: "bad body", model: "llama3.1", status: http.StatusOK, body: "not json",
			wantReason: "decode ollama tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTagsServer(t, tt.status, tt.body)
			a := NewOllamaAdapter(config.ReviewerConfig{
				Name: "ollama", Type: config.ReviewerTypeOllama, Model: tt.model, Endpoint: srv.URL,
			}, srv.Client())

			got := a.CheckAvailability(context.Background())
			assert.Equal(t, tt.wantOK, got.Available)
			if tt.wantReason != "" {
				assert.Contains(t, got.Reason, tt.wantReason)
			}
			if tt.wantInstall != "" {
				assert.Equal(t, tt.wantInstall, got.InstallInstructions)
			}
		})
	}
}

func TestOllamaAdapter_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewOllamaAdapter(config.ReviewerConfig{Name: "ollama", Type: config.ReviewerTypeOllama, Model: "llama3.1", Endpoint: url}, nil)
	got := a.CheckAvailability(context.Background())

	assert.False(t, got.Available)
	assert.NotEmpty(t, got.Reason)
	assert.NotContains(t, got.Reason, "127.0.0.1")
	assert.NotEmpty(t, got.InstallInstructions)
}

func TestOllamaAdapter_ReviewCommand(t *testing.T) {
	a := NewOllamaAdapter(config.ReviewerConfig{Name: "ollama", Type: config.ReviewerTypeOllama, Model: "llama3.1"}, nil)
	cmd := a.ReviewCommand("spec", Request{})
	assert.True(t, strings.HasPrefix(cmd, "ollama run llama3.1 <<'FEATUREFLOW_SPEC_EOF'\n"), cmd)

	remote := NewOllamaAdapter(config.ReviewerConfig{
		Name: "gpu", Type: config.ReviewerTypeOllama, Model: "llama3.1", Endpoint: "http://10.0.0.5:11434",
	}, nil)
	cmd = remote.ReviewCommand("spec", Request{})
	assert.True(t, strings.HasPrefix(cmd, "OLLAMA_HOST=http://10.0.0.5:11434 ollama run llama3.1 <<"), cmd)
}

func TestOllamaAdapter_ParseReviewOutput(t *testing.T) {
	a := NewOllamaAdapter(config.ReviewerConfig{Name: "local", Type: config.ReviewerTypeOllama, Model: "llama3.1"}, nil)
	got := a.ParseReviewOutput("Suggestions:\n- cache results")

	assert.Equal(t, "local", got.Reviewer)
	assert.Equal(t, BackendOllama, got.Backend)
	assert.Equal(t, "llama3.1", got.Model)
	assert.Equal(t, []string{"cache results"}, got.Suggestions)
}

func TestModelMatches(t *testing.T) {
	assert.True(t, modelMatches("llama3.1", "llama3.1"))
	assert.True(t, modelMatches("llama3.1", "llama3.1:latest"))
	assert.False(t, modelMatches("llama3.1:8b", "llama3.1:latest"))
	assert.False(t, modelMatches("llama3.1", "llama3.1:8b"))
	assert.False(t, modelMatches("llama3.1", ""))
}
