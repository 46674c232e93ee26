// Package redact removes secrets from text reported by the workflow driver
// (reviewer feedback, lint/build/test output) before it is persisted.
//
// Detection uses the gitleaks default rule set. Matches are replaced with
// [REDACTED:rule-id] markers so the surrounding output stays readable.
// Projects can allowlist known test fixtures in .gitleaks.toml.
package redact

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is one redacted secret. It never carries the secret itself.
// Line is 1-based.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Line        int    `json:"line"`
	Length      int    `json:"length"`
}

// Result is redacted content plus what was removed.
type Result struct {
	Content  string
	Findings []Finding
}

// RuleCounts returns the number of findings per rule.
func (r *Result) RuleCounts() map[string]int {
	counts := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		counts[f.RuleID]++
	}
	return counts
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithUserAllowlist adds a user-wide allowlist file.
func WithUserAllowlist(path string) Option {
	return func(r *Redactor) { r.userAllowlist = path }
}

// Redactor detects and redacts secrets. It is safe for concurrent use.
type Redactor struct {
	mu            sync.Mutex
	detector      *detect.Detector
	userAllowlist string
}

// New compiles the gitleaks default rules.
func New(opts ...Option) (*Redactor, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("load gitleaks rules: %w", err)
	}
	r := &Redactor{detector: d}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Scan redacts content, honoring the allowlists of projectPath and the user.
func (r *Redactor) Scan(projectPath, content string) (*Result, error) {
	if content == "" {
		return &Result{Content: content}, nil
	}
	allow, err := LoadAllowlist(projectPath, r.userAllowlist)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	found := r.detector.DetectString(content)
	r.mu.Unlock()

	res := &Result{Content: content}
	seen := make(map[string]bool, len(found))
	type replacement struct{ secret, marker string }
	var replacements []replacement
	for _, f := range found {
		if f.Secret == "" || allow.Allows(f.Secret) {
			continue
		}
		res.Findings = append(res.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine + 1,
			Length:      len(f.Secret),
		})
		if !seen[f.Secret] {
			seen[f.Secret] = true
			replacements = append(replacements, replacement{f.Secret, "[REDACTED:" + f.RuleID + "]"})
		}
	}

	// Longest first so a secret containing another is replaced whole.
	sort.SliceStable(replacements, func(i, j int) bool {
		return len(replacements[i].secret) > len(replacements[j].secret)
	})
	for _, rep := range replacements {
		res.Content = strings.ReplaceAll(res.Content, rep.secret, rep.marker)
	}
	return res, nil
}

// Redact returns content with secrets replaced.
func (r *Redactor) Redact(projectPath, content string) (string, error) {
	res, err := r.Scan(projectPath, content)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
