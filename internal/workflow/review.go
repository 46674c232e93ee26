package workflow

import (
	"fmt"
	"strings"
)

// Synthesize merges stored reviews into one markdown document.
//
// Reviewers are visited in CompletedReviewers order so the output is
// deterministic. A reviewer without a stored result is skipped.
func Synthesize(wc *WorkflowContext) string {
	blocks := make([]string, 0, len(wc.CompletedReviewers))
	for _, name := range wc.CompletedReviewers {
		r, ok := wc.Reviews[name]
		if !ok {
			continue
		}
		blocks = append(blocks, reviewBlock(name, r))
	}
	return strings.Join(blocks, "\n\n")
}

func reviewBlock(name string, r ReviewResult) string {
	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(name)
	if r.Backend != "" && r.Model != "" {
		fmt.Fprintf(&b, " (%s/%s)", r.Backend, r.Model)
	}
	fmt.Fprintf(&b, "\nFeedback: %s", r.Feedback)
	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&b, "\nSuggestions: %s", strings.Join(r.Suggestions, ", "))
	}
	if len(r.Concerns) > 0 {
		fmt.Fprintf(&b, "\nConcerns: %s", strings.Join(r.Concerns, ", "))
	}
	return b.String()
}
