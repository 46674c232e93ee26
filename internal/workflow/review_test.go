package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesize(t *testing.T) {
	wc := &WorkflowContext{
		CompletedReviewers: []string{"zeta", "alpha", "ghost", "local"},
		Reviews: map[string]ReviewResult{
			"alpha": {Backend: "cli", Model: "opus", Feedback: "solid", Suggestions: []string{}, Concerns: []string{"no limits"}},
			"zeta":  {Backend: "cli", Model: "", Feedback: "fine", Suggestions: []string{"add a, b", "c"}},
			"local": {Backend: "ollama", Model: "llama3.1", Feedback: "ok"},
		},
	}

	want := strings.Join([]string{
		"### zeta\nFeedback: fine\nSuggestions: add a, b, c",
		"### alpha (cli/opus)\nFeedback: solid\nConcerns: no limits",
		"### local (ollama/llama3.1)\nFeedback: ok",
	}, "\n\n")
	assert.Equal(t, want, Synthesize(wc))
}

func TestSynthesize_EachReviewerOnce(t *testing.T) {
	wc := &WorkflowContext{
		CompletedReviewers: []string{"a", "b"},
		Reviews: map[string]ReviewResult{
			"a": {Feedback: "x"},
			"b": {Feedback: "y"},
		},
	}
	got := Synthesize(wc)
	assert.Equal(t, 1, strings.Count(got, "### a\n"))
	assert.Equal(t, 1, strings.Count(got, "### b\n"))
	assert.Less(t, strings.Index(got, "### a"), strings.Index(got, "### b"))
}

func TestSynthesize_Empty(t *testing.T) {
	assert.Empty(t, Synthesize(&WorkflowContext{}))
	assert.Contains(t, refineInstruction("/p/spec.md", ""), "Finalize the spec")
}
