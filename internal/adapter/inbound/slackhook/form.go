package slackhook

import (
	"net/url"
	"strings"
)

// ParseForm decodes a percent-encoded form body into a field map. Pairs
// without a value and pairs that fail percent-decoding are skipped; decoding
// is a left-inverse of standard form encoding.
func ParseForm(body string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}
