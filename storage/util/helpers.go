package util

import (
	"strings"
)

// DefaultTablePrefix names the asset table when no prefix is configured.
const DefaultTablePrefix = "mediadrop"

// NormalizeBaseURL trims the configured public URL and ends it with exactly one slash.
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/") + "/"
}

// PublicURL resolves a slash-separated path against a public base URL.
func PublicURL(base string, elems ...string) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return NormalizeBaseURL(base) + strings.Join(parts, "/")
}

// AssetTableName names the table holding asset records. A nil prefix selects
// DefaultTablePrefix and an empty one leaves the table unprefixed.
func AssetTableName(prefix *string) string {
	p := DefaultTablePrefix
	if prefix != nil {
		p = strings.TrimSpace(*prefix)
	}
	if p == "" {
		return "assets"
	}
	return p + "_assets"
}
