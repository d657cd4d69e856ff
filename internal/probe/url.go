package probe

import (
	"net/url"
	"strings"
)

// knownPlatforms are well-tested hosts; other hosts may still work and are
// only mentioned in suggestions.
var knownPlatforms = []string{
	"youtube.com",
	"youtu.be",
	"tiktok.com",
	"x.com",
	"twitter.com",
	"instagram.com",
	"facebook.com",
	"vimeo.com",
	"dailymotion.com",
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Error{Kind: KindUnsupported, Detail: "empty url"}
	}
	if strings.ContainsAny(raw, " \t\n") {
		return &Error{Kind: KindUnsupported, Detail: "url contains whitespace"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return &Error{Kind: KindUnsupported, Detail: "malformed url"}
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return &Error{Kind: KindUnsupported, Detail: "scheme must be http or https"}
	}
	if parsed.Hostname() == "" {
		return &Error{Kind: KindUnsupported, Detail: "url has no host"}
	}
	return nil
}

// LooksLikeURL reports whether text should be treated as a submission.
func LooksLikeURL(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

// IsKnownPlatform reports whether the URL's host is a well-known platform.
func IsKnownPlatform(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range knownPlatforms {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
