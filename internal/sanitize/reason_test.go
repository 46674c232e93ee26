package sanitize

import (
	"strings"
	"testing"
)

func TestReason(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ollama probe error",
			input:    `Get "http://127.0.0.1:11434/api/tags?key=abc": dial tcp 127.0.0.1:11434: connection refused`,
			expected: `Get "http://<addr>/api/tags?<redacted>": dial tcp <addr>: connection refused`,
		},
		{
			name:     "ipv4 address",
			input:    "dial tcp 10.0.0.5:8080: connection refused",
			expected: "dial tcp <addr>: connection refused",
		},
		{
			name:     "ipv6 address",
			input:    "dial tcp [::1]:11434: connect: connection refused",
			expected: "dial tcp <addr>: connect: connection refused",
		},
		{
			name:     "localhost without scheme",
			input:    "ollama not reachable at localhost:11434",
			expected: "ollama not reachable at <addr>",
		},
		{
			name:     "absolute path",
			input:    "open /home/alice/.config/featureflow/config.yaml: permission denied",
			expected: "open <path>: permission denied",
		},
		{
			name:     "home relative path",
			input:    "missing ~/bin/ollama",
			expected: "missing <path>",
		},
		{
			name:     "quoted path",
			input:    `stat "/opt/tools/claude": no such file`,
			expected: `stat "<path>": no such file`,
		},
		{
			name:     "windows path",
			input:    `cannot find C:\Users\bob\ollama.exe`,
			expected: "cannot find <path>",
		},
		{
			name:     "url query string",
			input:    "GET https://api.example.com/v1/models?api_key=secret failed",
			expected: "GET https://api.example.com/v1/models?<redacted> failed",
		},
		{
			name:     "nothing sensitive",
			input:    `exec: "claude": executable file not found in $PATH`,
			expected: `exec: "claude": executable file not found in $PATH`,
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.input); got != tt.expected {
				t.Errorf("Reason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestReason_NoLeaks(t *testing.T) {
	input := "probe http://192.168.1.20:8080/health?token=t0ps3cret from /var/lib/featureflow/state failed"
	got := Reason(input)

	for _, leak := range []string{"192.168.1.20", "8080", "t0ps3cret", "/var/lib"} {
		if strings.Contains(got, leak) {
			t.Errorf("Reason leaked %q: %q", leak, got)
		}
	}
}
