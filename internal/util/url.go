package util

import (
	"net/url"
	"strings"
)

// ValidWebhookURL reports whether raw is a syntactically valid http(s) URL
// with a host. Reachability is not checked.
func ValidWebhookURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
