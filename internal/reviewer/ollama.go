package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
)

// maxTagsResponse bounds the /api/tags body read during a probe.
const maxTagsResponse = 4 << 20

// OllamaAdapter reviews through a local ollama model.
type OllamaAdapter struct {
	def    config.ReviewerConfig
	client *http.Client
}

// NewOllamaAdapter creates an adapter for an "ollama" reviewer definition.
// A nil client uses http.DefaultClient; callers bound probes with the context.
func NewOllamaAdapter(def config.ReviewerConfig, client *http.Client) *OllamaAdapter {
	if def.Endpoint == "" {
		def.Endpoint = config.DefaultOllamaEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaAdapter{def: def, client: client}
}

func (a *OllamaAdapter) Name() string    { return a.def.Name }
func (a *OllamaAdapter) Backend() string { return BackendOllama }
func (a *OllamaAdapter) Model() string   { return a.def.Model }

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// CheckAvailability asks the ollama API which models are pulled.
func (a *OllamaAdapter) CheckAvailability(ctx context.Context) Availability {
	url := strings.TrimRight(a.def.Endpoint, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return a.unavailable(err.Error(), a.serverInstructions())
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return a.unavailable(err.Error(), a.serverInstructions())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return a.unavailable(fmt.Sprintf("ollama API returned %s", resp.Status), a.serverInstructions())
	}

	var tags tagsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTagsResponse)).Decode(&tags); err != nil {
		return a.unavailable(fmt.Sprintf("decode ollama tags: %v", err), a.serverInstructions())
	}

	for _, m := range tags.Models {
		if modelMatches(a.def.Model, m.Name) || modelMatches(a.def.Model, m.Model) {
			return Availability{Available: true}
		}
	}
	return a.unavailable(
		fmt.Sprintf("model %q is not pulled", a.def.Model),
		fmt.Sprintf("ollama pull %s", a.def.Model),
	)
}

// modelMatches treats "llama3.1" and "llama3.1:latest" as the same model.
func modelMatches(want, have string) bool {
	if have == "" {
		return false
	}
	if want == have {
		return true
	}
	if !strings.Contains(want, ":") {
		return have == want+":latest"
	}
	return false
}

func (a *OllamaAdapter) serverInstructions() string {
	if a.def.InstallInstructions != "" {
		return a.def.InstallInstructions
	}
	return fmt.Sprintf("start ollama (ollama serve) and run: ollama pull %s", a.def.Model)
}

func (a *OllamaAdapter) unavailable(reason, install string) Availability {
	return Availability{
		Reason:              sanitize.Reason(reason),
		InstallInstructions: install,
	}
}

// ReviewCommand pipes the prompt into `ollama run <model>`.
func (a *OllamaAdapter) ReviewCommand(specText string, req Request) string {
	cmd := joinCommand("ollama", "run", a.def.Model)
	if strings.TrimRight(a.def.Endpoint, "/") != config.DefaultOllamaEndpoint {
		cmd = "OLLAMA_HOST=" + shellQuote(a.def.Endpoint) + " " + cmd
	}
	return heredoc(cmd, Prompt(specText, req))
}

// ParseReviewOutput parses the model's reply.
func (a *OllamaAdapter) ParseReviewOutput(raw string) Result {
	return stamp(ParseOutput(raw), a)
}
