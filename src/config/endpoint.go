package consoleconfig

import "strings"

// Trims surrounding whitespace and all trailing slashes from a user supplied base URL
func NormalizeBase(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// Appends path to the normalized base URL. Returns the empty string if there is no base
func Endpoint(base string, path string) string {
	b := NormalizeBase(base)
	if b == "" {
		return ""
	}
	return b + path
}
