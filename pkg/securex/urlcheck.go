package securex

import (
	"net"
	"net/url"
	"strings"
)

// RedirectError reports a redirect URI whose origin is not on the caller's
// allow-list. Malformed URIs produce the same error kind so callers branching
// on the type see one shape for every rejection.
type RedirectError struct {
	URI    string
	Reason string
}

func (e *RedirectError) Error() string {
	return "redirect URI rejected: " + e.Reason
}

// InsecureURLError reports a URL that does not use HTTPS and does not qualify
// for the loopback carve-out.
type InsecureURLError struct {
	URL    string
	Reason string
}

func (e *InsecureURLError) Error() string {
	return "insecure URL rejected: " + e.Reason
}

// ValidateRedirectURI parses uri, computes its origin (scheme + host + port)
// and checks that the origin is a literal member of allowedOrigins. Entries
// must themselves be origins, e.g. "https://app.example.com" or
// "http://localhost:3000". Any malformed input fails with *RedirectError.
func ValidateRedirectURI(uri string, allowedOrigins []string) error {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &RedirectError{URI: uri, Reason: "malformed redirect URI"}
	}

	origin := u.Scheme + "://" + u.Host
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return nil
		}
	}

	return &RedirectError{URI: uri, Reason: "origin " + origin + " is not on the allow-list"}
}

// ValidateSecureURL checks that rawURL uses HTTPS. When allowLocalhost is
// true, plain HTTP is accepted for loopback hosts (localhost, 127.0.0.0/8,
// ::1) as a development convenience. Malformed URLs fail with
// *InsecureURLError like any other rejection.
func ValidateSecureURL(rawURL string, allowLocalhost bool) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &InsecureURLError{URL: rawURL, Reason: "malformed URL"}
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if allowLocalhost && isLoopbackHost(u.Hostname()) {
			return nil
		}
		return &InsecureURLError{URL: rawURL, Reason: "plain HTTP is only allowed for loopback hosts"}
	default:
		return &InsecureURLError{URL: rawURL, Reason: "scheme " + u.Scheme + " is not allowed, use https"}
	}
}

func isLoopbackHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}
