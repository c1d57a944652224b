package hover

import (
	"net/url"
	"strings"
)

// Qualify resolves href against the page URL and reports whether it is an
// external http(s) link worth scanning. Same-page, fragment, mailto: and
// javascript: links never qualify.
func Qualify(href, pageURL string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	var base *url.URL
	if pageURL != "" {
		if b, err := url.Parse(pageURL); err == nil && b.IsAbs() {
			base = b
			ref = base.ResolveReference(ref)
		}
	}

	scheme := strings.ToLower(ref.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if ref.Host == "" {
		return "", false
	}
	if base != nil && samePage(ref, base) {
		return "", false
	}
	return ref.String(), true
}

func samePage(a, b *url.URL) bool {
	x, y := *a, *b
	x.Fragment, x.RawFragment = "", ""
	y.Fragment, y.RawFragment = "", ""
	return strings.EqualFold(x.Scheme, y.Scheme) &&
		strings.EqualFold(x.Host, y.Host) &&
		x.EscapedPath() == y.EscapedPath() &&
		x.RawQuery == y.RawQuery
}
