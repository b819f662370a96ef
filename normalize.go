package webcrawl

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Normalize canonicalizes an absolute URL so that semantically equal URLs
// compare equal: lowercase scheme and host, IDNA hosts in ASCII form, default
// ports stripped, dot segments resolved, fragment removed, empty path as "/",
// and no trailing slash on non-root paths.
//
// Returns EINVALIDURL if rawURL cannot be parsed into an http(s) scheme and host.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", Errorf(EINVALIDURL, "invalid URL %q: %v", rawURL, err)
	}
	n, err := NormalizeURL(u)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// ResolveReference resolves ref relative to base and normalizes the result.
func ResolveReference(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", Errorf(EINVALIDURL, "invalid URL %q: %v", ref, err)
	}
	n, err := NormalizeURL(base.ResolveReference(r))
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// NormalizeURL returns a normalized copy of u. The input is not modified.
func NormalizeURL(u *url.URL) (*url.URL, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, Errorf(EINVALIDURL, "unsupported scheme %q in %q", u.Scheme, u.String())
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return nil, Errorf(EINVALIDURL, "invalid host in %q: %v", u.String(), err)
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	// Resolving against an empty reference removes dot segments.
	n := new(url.URL).ResolveReference(u)
	n.Scheme = scheme
	switch {
	case port != "":
		n.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		n.Host = "[" + host + "]"
	default:
		n.Host = host
	}
	n.Fragment = ""
	n.RawFragment = ""
	n.ForceQuery = false

	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	} else if esc := n.EscapedPath(); esc != "/" && strings.HasSuffix(esc, "/") {
		// Trim on the escaped form so that an encoded %2F survives.
		esc = trimTrailingSlash(esc)
		p, err := url.PathUnescape(esc)
		if err != nil {
			return nil, Errorf(EINVALIDURL, "invalid path in %q: %v", u.String(), err)
		}
		n.Path, n.RawPath = p, esc
	}
	return n, nil
}

func normalizeHost(host string) (string, error) {
	// A fully qualified name ends with a dot that names the same host.
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", Errorf(EINVALIDURL, "empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(host), nil
	}
	ascii, err := idna.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", err
	}
	return ascii, nil
}

func trimTrailingSlash(p string) string {
	if p == "" {
		return ""
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// IsHTTPLink reports whether href, as written in a document, could resolve
// to an http(s) URL. Links with schemes such as mailto:, javascript:, tel:
// or data: are not crawlable.
func IsHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" {
		return false
	}
	i := strings.IndexAny(href, ":/?#")
	if i < 0 || href[i] != ':' {
		// Relative reference.
		return true
	}
	scheme := href[:i]
	return scheme == "http" || scheme == "https"
}
