package sanitize

import (
	"regexp"
	"strings"
)

// Placeholders substituted by Reason.
const (
	PathPlaceholder  = "<path>"
	AddrPlaceholder  = "<addr>"
	QueryPlaceholder = "?<redacted>"
)

var (
	// queryPattern matches the query string of a URL.
	queryPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^\s?#"']+)\?[^\s#"']*`)

	// schemeHostPortPattern matches host:port right after a URL scheme.
	schemeHostPortPattern = regexp.MustCompile(`(://)[A-Za-z0-9.-]+:\d{1,5}`)

	// ipv4PortPattern matches IPv4:port pairs.
	ipv4PortPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}:\d{1,5}\b`)

	// ipv6PortPattern matches [v6]:port pairs.
	ipv6PortPattern = regexp.MustCompile(`\[[0-9a-fA-F:.%a-zA-Z]+\]:\d{1,5}`)

	// localhostPortPattern matches localhost:port without a scheme.
	localhostPortPattern = regexp.MustCompile(`\blocalhost:\d{1,5}\b`)

	// unixPathPattern matches absolute or home-relative unix paths that start a token.
	unixPathPattern = regexp.MustCompile(`(^|[\s"'(=\[])(~?/[^\s"'()<>:;,\]]+)`)

	// windowsPathPattern matches drive-letter paths.
	windowsPathPattern = regexp.MustCompile(`\b[A-Za-z]:\\[^\s"'()<>;,]+`)
)

// Reason scrubs a free-text failure reason before it is surfaced to a caller.
//
// Availability checks run against the local machine and may embed file paths,
// network addresses or credentials-bearing URLs in their error text. Scrubbed:
//   - URL query strings           -> ?<redacted>
//   - host:port after a scheme    -> <addr>
//   - IPv4:port and [IPv6]:port   -> <addr>
//   - localhost:port              -> <addr>
//   - absolute, ~/ and C:\ paths  -> <path>
//
// Example:
//
//	`Get "http://127.0.0.1:11434/api/tags?key=abc": dial tcp 127.0.0.1:11434: refused`
//	-> `Get "http://<addr>/api/tags?<redacted>": dial tcp <addr>: refused`
func Reason(s string) string {
	if s == "" {
		return ""
	}

	s = queryPattern.ReplaceAllString(s, "${1}"+QueryPlaceholder)
	s = schemeHostPortPattern.ReplaceAllString(s, "${1}"+AddrPlaceholder)
	s = ipv6PortPattern.ReplaceAllString(s, AddrPlaceholder)
	s = ipv4PortPattern.ReplaceAllString(s, AddrPlaceholder)
	s = localhostPortPattern.ReplaceAllString(s, AddrPlaceholder)
	s = windowsPathPattern.ReplaceAllString(s, PathPlaceholder)
	s = unixPathPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := unixPathPattern.FindStringSubmatch(m)
		path := sub[2]
		// A URL path following a scrubbed address stays readable.
		if strings.HasPrefix(path, "//") {
			return m
		}
		return sub[1] + PathPlaceholder
	})

	return strings.TrimSpace(s)
}
