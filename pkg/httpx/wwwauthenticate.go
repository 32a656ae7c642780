package httpx

import (
	"errors"
	"regexp"
	"strings"
)

// WWWAuthenticateParams holds the parameters of a parsed WWW-Authenticate
// challenge, e.g.
//
//	Bearer realm="keyline", error="invalid_token", error_description="token expired"
type WWWAuthenticateParams struct {
	Scheme           string
	Realm            string
	Scope            string
	Error            string
	ErrorDescription string
}

// IsBearerChallenge reports whether the challenge asks for a bearer token.
func (p *WWWAuthenticateParams) IsBearerChallenge() bool {
	return strings.EqualFold(p.Scheme, "Bearer")
}

var authParamRegex = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseWWWAuthenticate parses a WWW-Authenticate header value into its
// scheme and quoted auth-params. Unknown parameters are ignored.
func ParseWWWAuthenticate(header string) (*WWWAuthenticateParams, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("httpx: empty WWW-Authenticate header")
	}

	parts := strings.SplitN(header, " ", 2)
	out := &WWWAuthenticateParams{Scheme: parts[0]}

	if len(parts) > 1 {
		params := parseAuthParams(parts[1])
		out.Realm = params["realm"]
		out.Scope = params["scope"]
		out.Error = params["error"]
		out.ErrorDescription = params["error_description"]
	}

	return out, nil
}

// parseAuthParams extracts key="value" pairs from the parameter portion of
// the header. Keys are lowered so lookups are case-insensitive.
func parseAuthParams(paramStr string) map[string]string {
	params := make(map[string]string)

	for _, match := range authParamRegex.FindAllStringSubmatch(paramStr, -1) {
		if len(match) == 3 {
			params[strings.ToLower(match[1])] = match[2]
		}
	}

	return params
}
