package storage

import (
	"strings"
	"unicode"
)

// maxFilenameLength bounds sanitized names so the resulting path stays
// well under common filesystem limits once the extension is appended.
const maxFilenameLength = 120

// SanitizeFilename reduces a free-text label (original filename, video
// title) to a safe download filename component. The allow-list is
// letters, digits, '-', '_', '.' and ' '; every other rune becomes '_'.
// Leading/trailing dots and spaces are trimmed so the result can never
// be a dotfile or a relative path component, and the empty result falls
// back to "download".
func SanitizeFilename(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	for _, r := range label {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), ". ")

	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = strings.Trim(string(runes[:maxFilenameLength]), ". ")
	}

	if name == "" {
		return "download"
	}
	return name
}

// StripExtension removes a trailing extension from a label so the
// output format's extension can be appended without doubling up.
func StripExtension(label string) string {
	if idx := strings.LastIndex(label, "."); idx > 0 {
		return label[:idx]
	}
	return label
}
