package reviewer

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches a JSON object inside a markdown code fence.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern is the greedy fallback for an unfenced object.
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	// ansiPattern matches terminal escape sequences some CLIs emit even when piped.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

	// labelPattern matches "Suggestions: a, b", "**Concerns**:" and "**Concerns:**".
	labelPattern = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(feedback|summary|suggestions?|concerns?|risks?|issues?)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.*)$`)
	// headingPattern matches "## Suggestions" style headings.
	headingPattern = regexp.MustCompile(`(?i)^\s*#+\s*(feedback|summary|suggestions?|concerns?|risks?|issues?)\s*:?\s*$`)
	// bulletPattern matches "- x", "* x", "• x" and "1. x" list items.
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	// approvedPattern matches an explicit approval line.
	approvedPattern = regexp.MustCompile(`(?i)^\s*(?:\*\*)?approved?(?:\*\*)?\s*[:=]\s*(?:\*\*)?\s*(yes|true|no|false)\b`)
)

// reviewJSON is the shape reviewers are asked to reply with.
// Summary is accepted as an alias for Feedback.
type reviewJSON struct {
	Feedback    string   `json:"feedback"`
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
	Concerns    []string `json:"concerns"`
	Approved    *bool    `json:"approved"`
}

// ParseOutput parses raw reviewer output tolerantly:
//  1. a JSON object, fenced or bare, with comments and trailing commas allowed
//  2. markdown sections with bullet lists (Suggestions:, Concerns:)
//  3. the whole text as feedback
//
// Suggestions and Concerns are never nil.
func ParseOutput(raw string) Result {
	text := strings.TrimSpace(ansiPattern.ReplaceAllString(raw, ""))

	if r, ok := parseJSON(text); ok {
		return r
	}
	if r, ok := parseMarkdown(text); ok {
		return r
	}
	return Result{Feedback: text, Suggestions: []string{}, Concerns: []string{}}
}

func parseJSON(text string) (Result, bool) {
	raw := extractJSON(text)
	if raw == "" {
		return Result{}, false
	}
	var rj reviewJSON
	if err := json.Unmarshal([]byte(raw), &rj); err != nil {
		return Result{}, false
	}

	feedback := strings.TrimSpace(rj.Feedback)
	if feedback == "" {
		feedback = strings.TrimSpace(rj.Summary)
	}
	if feedback == "" && len(rj.Suggestions) == 0 && len(rj.Concerns) == 0 && rj.Approved == nil {
		return Result{}, false
	}

	r := Result{
		Feedback:    feedback,
		Suggestions: compact(rj.Suggestions),
		Concerns:    compact(rj.Concerns),
	}
	if rj.Approved != nil {
		r.Approved = *rj.Approved
	}
	return r, true
}

// extractJSON returns the cleaned JSON object in text, or "".
func extractJSON(text string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		raw = m[1]
	} else if m := jsonObjectPattern.FindString(text); m != "" {
		raw = m
	}
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment outside string literals.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func parseMarkdown(text string) (Result, bool) {
	r := Result{Suggestions: []string{}, Concerns: []string{}}
	var feedback []string
	section := "feedback"
	found := false

	for _, line := range strings.Split(text, "\n") {
		if m := approvedPattern.FindStringSubmatch(line); m != nil {
			v := strings.ToLower(m[1])
			r.Approved = v == "yes" || v == "true"
			found = true
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			section = normalizeSection(m[1])
			found = true
			continue
		}
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			section = normalizeSection(m[1])
			found = true
			rest := strings.TrimSpace(m[2])
			switch {
			case rest == "":
			case section == "feedback":
				feedback = append(feedback, rest)
			default:
				appendTo(&r, &feedback, section, splitInline(rest)...)
			}
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			appendTo(&r, &feedback, section, strings.TrimSpace(m[1]))
			continue
		}
		if t := strings.TrimSpace(line); t != "" && section == "feedback" {
			feedback = append(feedback, t)
		}
	}

	if !found {
		return Result{}, false
	}
	r.Feedback = strings.Join(feedback, " ")
	return r, true
}

func normalizeSection(name string) string {
	switch n := strings.ToLower(name); {
	case strings.HasPrefix(n, "suggestion"):
		return "suggestions"
	case strings.HasPrefix(n, "concern"), strings.HasPrefix(n, "risk"), strings.HasPrefix(n, "issue"):
		return "concerns"
	default:
		return "feedback"
	}
}

// appendTo adds items to the current section.
func appendTo(r *Result, feedback *[]string, section string, items ...string) {
	switch section {
	case "suggestions":
		r.Suggestions = append(r.Suggestions, items...)
	case "concerns":
		r.Concerns = append(r.Concerns, items...)
	default:
		*feedback = append(*feedback, items...)
	}
}

// splitInline splits "Suggestions: a, b" label values.
func splitInline(item string) []string {
	if strings.EqualFold(item, "none") || item == "-" {
		return nil
	}
	return compact(strings.Split(item, ", "))
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stamp fills adapter identity where the parsed result has none. The
// workflow engine sets the timestamp from its own clock.
func stamp(r Result, a Adapter) Result {
	if r.Reviewer == "" {
		r.Reviewer = a.Name()
	}
	if r.Backend == "" {
		r.Backend = a.Backend()
	}
	if r.Model == "" {
		r.Model = a.Model()
	}
	return r
}
