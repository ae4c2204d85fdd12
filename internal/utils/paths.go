package utils

import (
	"strings"
	"unicode/utf8"
)

// filesystems limit a path component to 255 bytes, not characters
const maxFolderNameBytes = 255

// SanitizeFilename swaps every filesystem-unsafe character for an underscore.
// The result has exactly as many characters as the input.
func SanitizeFilename(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// ExtensionFor picks the on-disk extension for a resource. The URL wins when it
// names a recognized extension, then a concrete type hint; anything else is
// treated as an HTML landing page.
func ExtensionFor(rawURL, typeHint string) string {
	lower := strings.ToLower(rawURL)
	for _, ext := range knownExtensions {
		if strings.Contains(lower, "."+ext) {
			return "." + ext
		}
	}
	if strings.Contains(lower, "accept=zip") {
		return ".zip"
	}
	hint := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(typeHint)), ".")
	if hint != "" && hint != "unknown" {
		return "." + hint
	}
	return ".html"
}

// NormalizeFolderName drops unsafe characters, collapses whitespace and caps the length
// at 255 bytes without splitting a character.
func NormalizeFolderName(name string) string {
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	if len(name) > maxFolderNameBytes {
		cut := maxFolderNameBytes
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}
