package ioutils

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// URLToSlug encodes a URL as unpadded base64url so it can name a directory
// and be decoded again with SlugToURL.
func URLToSlug(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// SlugToURL reverses URLToSlug.
func SlugToURL(slug string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(slug, "="))
	if err != nil {
		return "", fmt.Errorf("invalid slug %q: %w", slug, err)
	}
	return string(b), nil
}

// Domain returns the host of rawURL without port, or "unknown" when the URL
// has none.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// LastPathSegment returns the final non-empty path segment of rawURL.
func LastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}
