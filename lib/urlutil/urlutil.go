package urlutil

import (
	"net/url"
	"strings"
)

// Canonicalize rewrites a URL into a stable form so that two links
// to the same page hash identically: scheme and host are lowercased
// and the query is re-encoded with its keys sorted. url.Values.Encode
// sorts by key, so parameter order differences collapse.
func Canonicalize(raw string) (string, error) {
	link, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	link.Scheme = strings.ToLower(link.Scheme)
	link.Host = strings.ToLower(link.Host)
	link.RawQuery = link.Query().Encode()
	link.Fragment = ""
	return link.String(), nil
}

// ResolveRef resolves a possibly-relative href against a base page URL.
func ResolveRef(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
