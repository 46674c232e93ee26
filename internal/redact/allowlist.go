package redact

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ProjectAllowlistFile is the per-project allowlist, in gitleaks format.
const ProjectAllowlistFile = ".gitleaks.toml"

var (
	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")

	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")
)

// Allowlist holds content patterns that are never redacted.
type Allowlist struct {
	Regexes []*regexp.Regexp
}

// Allows reports whether secret matches an allowlisted pattern.
func (a *Allowlist) Allows(secret string) bool {
	if a == nil {
		return false
	}
	for _, re := range a.Regexes {
		if re.MatchString(secret) {
			return true
		}
	}
	return false
}

// LoadAllowlist merges the project's .gitleaks.toml and the user allowlist
// file. Missing files are skipped; invalid files are errors.
func LoadAllowlist(projectPath, userPath string) (*Allowlist, error) {
	merged := &Allowlist{}
	var paths []string
	if projectPath != "" {
		paths = append(paths, filepath.Join(projectPath, ProjectAllowlistFile))
	}
	if userPath != "" {
		paths = append(paths, userPath)
	}

	for _, path := range paths {
		regexes, err := loadTOML(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.Regexes = append(merged.Regexes, regexes...)
	}
	return merged, nil
}

// loadTOML reads the [allowlist] table of a gitleaks config:
//
//	[allowlist]
//	regexes = ['''EXAMPLE-[0-9]+''']
func loadTOML(path string) ([]*regexp.Regexp, error) {
	var doc struct {
		Allowlist struct {
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	out := make([]*regexp.Regexp, 0, len(doc.Allowlist.Regexes))
	for _, pattern := range doc.Allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
		out = append(out, re)
	}
	return out, nil
}
