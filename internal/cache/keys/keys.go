// Package keys builds Redis keys for raw dataset files and stored
// preferences.
package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const prefix = "obras"

// Raw is the key of one raw file fetched from a named source. The path is
// sanitized for readability and disambiguated with its xxhash.
func Raw(source, path string) string {
	p := strings.TrimSpace(path)
	safe := sanitize(p)
	const maxPathLen = 120
	if len(safe) > maxPathLen {
		safe = safe[:maxPathLen]
	}
	return fmt.Sprintf("%s%s:p=%016x", RawPrefix(source), safe, xxhash.Sum64String(p))
}

// RawPrefix is the common prefix of every raw key of source.
func RawPrefix(source string) string {
	return prefix + ":raw:" + sanitize(strings.TrimSpace(source)) + ":"
}

// Prefs is the single key holding one client's serialized preferences.
func Prefs(client string) string {
	c := sanitize(strings.TrimSpace(client))
	if c == "" {
		c = "default"
	}
	return prefix + ":prefs:" + c
}

// Content fingerprints a payload.
func Content(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including '/', ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
