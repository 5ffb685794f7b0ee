package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// SanitizeTrustedDomain normalizes a trusted origin to a lowercase host[:port].
// Schemes are stripped. Paths, queries, fragments, wildcards and blanks are rejected.
func SanitizeTrustedDomain(raw string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("domain cannot be empty")
	}

	for _, scheme := range []string{"http://", "https://"} {
		cleaned = strings.TrimPrefix(cleaned, scheme)
	}
	cleaned = strings.TrimSuffix(cleaned, "/")

	switch {
	case strings.ContainsAny(cleaned, " \t\r\n"):
		return "", fmt.Errorf("domain cannot contain whitespace")
	case strings.Contains(cleaned, "*"):
		return "", fmt.Errorf("wildcards are not allowed in trusted origins")
	}

	u, err := url.Parse("http://" + cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid domain format")
	}
	if u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("domain must not include path, query, or fragment")
	}

	return u.Host, nil
}

// OriginAllowed reports whether a browser Origin header matches a trusted
// origin. "localhost" also admits any localhost port.
func (c *Config) OriginAllowed(origin string) bool {
	host, err := SanitizeTrustedDomain(origin)
	if err != nil {
		return false
	}
	if slices.Contains(c.TrustedOrigins, host) {
		return true
	}
	bare, _, found := strings.Cut(host, ":")
	return found && bare == "localhost" && slices.Contains(c.TrustedOrigins, "localhost")
}
