// Package resolver decodes aggregator redirect URLs into publisher URLs.
package resolver

import (
	"encoding/base64"
	"net/url"
	"strings"
)

const (
	googleNewsHost = "news.google.com"

	// Tokens minted by the newer Google News encoder carry no embedded URL
	// and cannot be decoded offline.
	opaqueTokenPrefix = "AU_yqL"
)

// DecodePublisherURL unwraps a news.google.com article link and returns the
// underlying publisher URL. The legacy token format base64-encodes the target
// URL behind a short binary envelope. Returns ok=false whenever the token is
// malformed or uses the opaque format; callers skip the candidate instead of
// storing a broken link.
func DecodePublisherURL(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	if u.Hostname() == "" {
		return "", false
	}
	if !strings.EqualFold(u.Hostname(), googleNewsHost) {
		// Not a redirector link; already a publisher URL.
		return rawURL, true
	}

	token := articleToken(u.Path)
	if token == "" || strings.HasPrefix(token, opaqueTokenPrefix) {
		return "", false
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", false
	}
	target, ok := unwrapToken(data)
	if !ok {
		return "", false
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		return "", false
	}
	return target, true
}

func articleToken(path string) string {
	for _, marker := range []string{"/rss/articles/", "/articles/", "/read/"} {
		if idx := strings.Index(path, marker); idx >= 0 {
			rest := path[idx+len(marker):]
			if slash := strings.IndexByte(rest, '/'); slash >= 0 {
				rest = rest[:slash]
			}
			return rest
		}
	}
	return ""
}

// unwrapToken strips the binary envelope around the embedded URL: a fixed
// three-byte header, an optional trailer, and a one- or two-byte length
// prefix before the URL bytes.
func unwrapToken(data []byte) (string, bool) {
	prefix := []byte{0x08, 0x13, 0x22}
	if len(data) < len(prefix)+2 || !strings.HasPrefix(string(data), string(prefix)) {
		return "", false
	}
	data = data[len(prefix):]

	suffix := []byte{0xd2, 0x01, 0x00}
	if len(data) >= len(suffix) && data[len(data)-3] == suffix[0] && data[len(data)-2] == suffix[1] {
		data = data[:len(data)-3]
	}

	if len(data) < 2 {
		return "", false
	}
	length := int(data[0])
	data = data[1:]
	if length >= 0x80 {
		// Two-byte varint length; the low seven bits of the first byte are
		// the least-significant bits.
		if len(data) < 1 {
			return "", false
		}
		length = (length & 0x7f) | int(data[0])<<7
		data = data[1:]
	}
	if length <= 0 || length > len(data) {
		return "", false
	}
	target := string(data[:length])
	if !strings.HasPrefix(target, "http") {
		return "", false
	}
	return target, true
}

// Deduper suppresses URLs already seen in the current batch so cluster
// expansion cannot queue the same story twice.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// MarkIfNew records url and reports whether it was unseen.
func (d *Deduper) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := d.seen[url]; ok {
		return false
	}
	d.seen[url] = struct{}{}
	return true
}
