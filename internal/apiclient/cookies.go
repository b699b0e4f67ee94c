package apiclient

import (
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"
)

// mergeCookies applies upstream Set-Cookie headers to a stored Cookie header value.
// Cookies removed by the upstream (Max-Age < 0 or an expiry in the past) are dropped.
// When names is non-empty only those cookies are tracked.
func mergeCookies(stored string, set []*http.Cookie, names []string, now time.Time) string {
	if len(set) == 0 {
		return stored
	}

	jar := parseCookieHeader(stored)
	for _, c := range set {
		if c == nil || c.Name == "" {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, c.Name) {
			continue
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) || c.Value == "" {
			delete(jar, c.Name)
			continue
		}
		jar[c.Name] = c.Value
	}
	return formatCookieHeader(jar)
}

func parseCookieHeader(header string) map[string]string {
	jar := make(map[string]string)
	if strings.TrimSpace(header) == "" {
		return jar
	}
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return jar
	}
	for _, c := range cookies {
		jar[c.Name] = c.Value
	}
	return jar
}

func formatCookieHeader(jar map[string]string) string {
	if len(jar) == 0 {
		return ""
	}
	names := make([]string, 0, len(jar))
	for name := range jar {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = (&http.Cookie{Name: name, Value: jar[name]}).String()
	}
	return strings.Join(parts, "; ")
}
