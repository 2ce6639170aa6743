package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a title and collapses everything non-alphanumeric into
// single hyphens, for use as an output filename.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "book"
	}
	return s
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SanitizeFilename strips characters that are invalid in file names.
func SanitizeFilename(name string) string {
	out := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if out == "" {
		return "book"
	}
	return out
}

// AbsoluteURL resolves scheme-relative and site-relative references against
// a base site origin. Already-absolute references pass through unchanged.
func AbsoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(base, "/") + href
	}
	return href
}

// ValidateURL rejects anything that is not an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL is missing a host")
	}
	return nil
}
