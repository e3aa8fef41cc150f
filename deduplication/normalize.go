package deduplication

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a URL for duplicate comparison: lowercase scheme
// and host, fragment stripped, query optionally dropped, trailing slash
// removed. Normalization is idempotent.
func Normalize(raw string, dropQuery bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if dropQuery {
		u.RawQuery = ""
	}

	out := u.String()
	return strings.TrimRight(out, "/")
}

// AreDuplicates reports whether two URLs refer to the same saved resource.
// URLs match when they normalize identically either with the query kept or
// with it stripped, which tolerates tracking-parameter variance while still
// catching exact re-saves.
func AreDuplicates(a, b string) bool {
	if Normalize(a, false) == Normalize(b, false) {
		return true
	}
	return Normalize(a, true) == Normalize(b, true)
}
