package logging

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	redactedMarker  = "[redacted]"
	maxURLLogLength = 48
)

var urlPattern = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s"'<>]+`)

// RedactURL reduces a source URL to scheme, host, and a truncated path.
// Query strings, fragments, and userinfo are dropped because they often carry
// tokens or signed parameters.
func RedactURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return Truncate(raw, maxURLLogLength)
	}
	out := parsed.Scheme + "://" + parsed.Host + parsed.EscapedPath()
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		out += "?…"
	}
	return Truncate(out, maxURLLogLength)
}

// RedactLine scrubs every URL and each provided secret from a free-form line,
// such as subprocess stderr.
func RedactLine(line string, secrets ...string) string {
	line = scrubSecrets(line, secrets)
	return urlPattern.ReplaceAllStringFunc(line, RedactURL)
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

func scrubSecrets(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redactedMarker)
	}
	return s
}
