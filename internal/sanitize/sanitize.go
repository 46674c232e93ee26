// Package sanitize provides shared slug generation, reason scrubbing and input validation.
//
// Workflow ids and spec file names are derived from free-text feature descriptions,
// so they must be normalized before they touch the filesystem.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxSlugLength is the maximum length of a slug produced by Slug.
	MaxSlugLength = 48

	// HashSuffixLength is the length of the hash suffix added to truncated slugs.
	// Format: -<8-char-hash> = 9 characters total
	HashSuffixLength = 9

	// DefaultSlug is used when slugification produces an empty result.
	DefaultSlug = "feature"
)

// Slug converts free text into a filesystem-safe slug.
//
// Rules applied:
//   - Converts to lowercase
//   - Replaces every run of non [a-z0-9] characters with a single hyphen
//   - Trims leading/trailing hyphens
//   - Truncates to MaxSlugLength with a hash suffix if too long
//   - Returns DefaultSlug if result would be empty
//
// Examples:
//
//	"Add dark mode toggle" -> "add-dark-mode-toggle"
//	"OAuth2: PKCE flow!"   -> "oauth2-pkce-flow"
//	"" or "!!!"            -> "feature"
func Slug(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return DefaultSlug
	}
	if len(slug) > MaxSlugLength {
		slug = truncateWithHash(slug, MaxSlugLength)
	}
	return slug
}

// Prefix returns at most n characters of Slug(s), cut on a hyphen boundary when possible.
// It is used for the human-readable part of workflow ids.
func Prefix(s string, n int) string {
	slug := Slug(s)
	if n <= 0 || len(slug) <= n {
		return slug
	}
	cut := slug[:n]
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.Trim(cut, "-")
}

// truncateWithHash truncates a slug to fit within max, appending a hash
// suffix of the original to preserve uniqueness.
//
// Format: <truncated>-<8-char-hash>
func truncateWithHash(s string, max int) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "-" + hex.EncodeToString(hash[:])[:8]

	truncated := strings.TrimRight(s[:max-HashSuffixLength], "-")
	return truncated + suffix
}
