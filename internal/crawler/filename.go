package crawler

import (
	"path/filepath"
	"regexp"
	"strings"
)

const bookExtension = ".epub"

var (
	regInvalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	regTrailingDots     = regexp.MustCompile(`\.+$`)
	regWhitespace       = regexp.MustCompile(`\s+`)
)

// SanitizeFileName replaces characters that are invalid in file names on
// any common filesystem with underscores, drops trailing dots and collapses
// whitespace.
func SanitizeFileName(name string) string {
	name = regInvalidFileChars.ReplaceAllString(name, "_")
	name = regWhitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = regTrailingDots.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}

// BookPath is where the EPUB of a book with the given title is saved.
// Empty string is returned when nothing usable is left of the title.
func BookPath(dir, title string) string {
	name := SanitizeFileName(title)
	if name == "" {
		return ""
	}

	return filepath.Join(dir, name+bookExtension)
}

// AggregatePath is where the aggregate of a language is saved.
func AggregatePath(dir, languageName string) string {
	return filepath.Join(dir, "All"+SanitizeFileName(languageName)+"Entries.opds")
}
