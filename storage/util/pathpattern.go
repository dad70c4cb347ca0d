package util

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PathPattern represents a configurable pattern for generating object keys and file paths.
// It supports placeholders that get replaced with actual values:
//   - {year}     - 4-digit year (e.g., "2026")
//   - {month}    - 2-digit month (e.g., "01")
//   - {day}      - 2-digit day (e.g., "15")
//   - {slug}     - the slugged file name without extension
//   - {ext}      - file extension (with leading dot, e.g., ".mp4")
//   - {filename} - slug plus extension
//   - {uuid}     - a random UUID, fresh for every call
//
// Example patterns:
//   - "{year}/{month}/{uuid}/{filename}" → "2026/01/0b6e.../interview.mp4"
//   - "audio/{slug}-{uuid}{ext}" → "audio/podcast-0b6e....mp3"
type PathPattern struct {
	pattern string
	newID   func() string
}

// NewPathPattern creates a new PathPattern from a template string.
func NewPathPattern(pattern string) *PathPattern {
	return &PathPattern{pattern: pattern, newID: uuid.NewString}
}

func (p *PathPattern) String() string {
	return p.pattern
}

// Generate produces a forward-slash key by replacing placeholders with actual values.
// The slug parameter is required. The timestamp is optional (pass time.Time{} to skip
// date-based placeholders). The extension is optional.
func (p *PathPattern) Generate(slug string, timestamp time.Time, ext string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("slug cannot be empty")
	}

	result := p.pattern

	if !timestamp.IsZero() {
		result = strings.ReplaceAll(result, "{year}", fmt.Sprintf("%04d", timestamp.Year()))
		result = strings.ReplaceAll(result, "{month}", fmt.Sprintf("%02d", timestamp.Month()))
		result = strings.ReplaceAll(result, "{day}", fmt.Sprintf("%02d", timestamp.Day()))
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if strings.Contains(result, "{uuid}") {
		result = strings.ReplaceAll(result, "{uuid}", p.newID())
	}

	result = strings.ReplaceAll(result, "{slug}", slug)
	result = strings.ReplaceAll(result, "{filename}", slug+ext)
	result = strings.ReplaceAll(result, "{ext}", ext)

	// Keys are URL paths, so clean with forward slashes regardless of OS.
	result = strings.TrimPrefix(path.Clean("/"+result), "/")
	if result == "" {
		return "", fmt.Errorf("pattern %q produced an empty path", p.pattern)
	}

	return result, nil
}

// DefaultMediaPattern returns the default pattern for uploaded media.
// Pattern: "{year}/{month}/{uuid}/{filename}" (organized by date, collision free)
func DefaultMediaPattern() *PathPattern {
	return NewPathPattern("{year}/{month}/{uuid}/{filename}")
}

// PatternOrDefault returns the configured pattern, falling back to DefaultMediaPattern.
func PatternOrDefault(pattern string) *PathPattern {
	if strings.TrimSpace(pattern) == "" {
		return DefaultMediaPattern()
	}
	return NewPathPattern(pattern)
}
