package reviewer

import (
	"fmt"
	"strings"
)

const heredocMarker = "FEATUREFLOW_SPEC_EOF"

// Prompt renders the review request sent to every backend.
func Prompt(specText string, req Request) string {
	var b strings.Builder
	b.WriteString("You are reviewing a feature specification before implementation starts.\n")
	if req.Description != "" {
		fmt.Fprintf(&b, "Feature: %s\n", req.Description)
	}
	if req.SpecPath != "" {
		fmt.Fprintf(&b, "Spec file: %s\n", req.SpecPath)
	}
	b.WriteString(`
Check the spec for missing requirements, ambiguous behavior, untestable acceptance
criteria and risky edge cases. Reply with a single JSON object and nothing else:

{"feedback": "<overall assessment>", "suggestions": ["..."], "concerns": ["..."], "approved": true|false}

--- SPEC START ---
`)
	b.WriteString(strings.TrimRight(specText, "\n"))
	b.WriteString("\n--- SPEC END ---\n")
	return b.String()
}

// heredoc pipes body into command through a quoted heredoc.
// The marker gets a numeric suffix until no body line equals it.
func heredoc(command, body string) string {
	marker := heredocMarker
	for i := 1; containsLine(body, marker); i++ {
		marker = fmt.Sprintf("%s_%d", heredocMarker, i)
	}
	return fmt.Sprintf("%s <<'%s'\n%s\n%s", command, marker, strings.TrimRight(body, "\n"), marker)
}

func containsLine(body, line string) bool {
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimRight(l, "\r") == line {
			return true
		}
	}
	return false
}

// shellQuote quotes s for POSIX shells when it contains anything but safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinCommand(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, shellQuote(p))
	}
	return strings.Join(quoted, " ")
}
