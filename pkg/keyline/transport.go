package keyline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-resty/resty/v2"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/idx"
)

// requestIDHeader is stamped onto every outgoing request so server logs can
// be correlated with SDK debug logs.
const requestIDHeader = "X-Request-ID"

// userAgent identifies the SDK to the identity service.
const userAgent = "keyline-go"

// Transport is the authenticated request pipeline. It owns the bearer
// credential slot: when a token is installed, every request it sends carries
// the token; when the slot is empty, requests go out anonymous. The slot
// changes only through SetToken, ClearToken, and the automatic install the
// login and token-exchange operations perform.
//
// Transport is safe for concurrent use. Concurrent writers to the token slot
// are not sequenced beyond last-writer-wins.
type Transport struct {
	rc     *resty.Client
	base   string
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

func newTransport(baseURL string, hc *http.Client, logger *slog.Logger) *Transport {
	t := &Transport{base: baseURL, logger: logger}

	rc := resty.NewWithClient(hc)
	rc.SetBaseURL(baseURL)
	rc.SetHeader("Accept", "application/json")
	rc.SetHeader("User-Agent", userAgent)
	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if tok := t.Token(); tok != "" && req.Header.Get("Authorization") == "" {
			req.SetAuthToken(tok)
		}
		if req.Header.Get(requestIDHeader) == "" {
			req.SetHeader(requestIDHeader, idx.New().String())
		}
		return nil
	})

	t.rc = rc
	return t
}

// SetToken installs token as the bearer credential for subsequent requests.
// An empty string empties the slot.
func (t *Transport) SetToken(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

// ClearToken empties the credential slot. Requests made afterwards are
// anonymous.
func (t *Transport) ClearToken() {
	t.SetToken("")
}

// Token returns the currently installed bearer token, or "" when the slot is
// empty.
func (t *Transport) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// BaseURL returns the normalized root URL of the identity service.
func (t *Transport) BaseURL() string {
	return t.base
}

// Do sends one JSON request and decodes the response body into out when out
// is non-nil. Every failure comes back as *Error; callers never see a raw
// transport error.
func (t *Transport) Do(ctx context.Context, method, path string, body, out any) error {
	req := t.rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	return t.finish(ctx, method, path, resp, err, out)
}

// PostForm sends one application/x-www-form-urlencoded POST, the shape the
// OAuth token endpoint requires, and decodes the response into out.
func (t *Transport) PostForm(ctx context.Context, path string, form map[string]string, out any) error {
	req := t.rc.R().SetContext(ctx).SetFormData(form)

	resp, err := req.Execute(http.MethodPost, path)
	return t.finish(ctx, http.MethodPost, path, resp, err, out)
}

func (t *Transport) finish(ctx context.Context, method, path string, resp *resty.Response, err error, out any) error {
	if err != nil {
		e := normalizeSendError(err)
		t.logger.DebugContext(ctx, "request failed without a response",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("kind", e.Kind),
		)
		return e
	}

	t.logger.DebugContext(ctx, "request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode()),
	)

	if resp.IsError() {
		return normalizeErrorResponse(resp)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{
			Kind:       KindUnknownError,
			Message:    "The server returned a response that could not be decoded",
			StatusCode: resp.StatusCode(),
			Details:    map[string]any{"cause": err.Error()},
		}
	}
	return nil
}

// normalizeSendError folds transport failures into the two no-response error
// shapes. A url.Error from the round trip means the request went out and
// nothing came back; anything else (body marshalling, URL construction)
// means the request never left the process.
func normalizeSendError(err error) *Error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Op != "parse" {
		return &Error{
			Kind:       KindNetworkError,
			Message:    "Unable to reach the server",
			StatusCode: 0,
			Details:    map[string]any{"cause": err.Error()},
		}
	}
	return &Error{
		Kind:       KindUnknownError,
		Message:    "The request could not be sent",
		StatusCode: 0,
		Details:    map[string]any{"cause": err.Error()},
	}
}

// errorPayload is the identity service's structured error body.
type errorPayload struct {
	Error      string         `json:"error"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	Details    map[string]any `json:"details"`
}

// normalizeErrorResponse maps a non-2xx response onto *Error. Fields the
// payload carries win; anything missing falls back to the "Unknown" kind, a
// generic message, and the wire status.
func normalizeErrorResponse(resp *resty.Response) *Error {
	e := &Error{
		Kind:       KindUnknown,
		Message:    "An unexpected error occurred",
		StatusCode: resp.StatusCode(),
	}

	var payload errorPayload
	if body := resp.Body(); len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			e.Kind = payload.Error
		}
		if payload.Message != "" {
			e.Message = payload.Message
		}
		if payload.StatusCode > 0 {
			e.StatusCode = payload.StatusCode
		}
		if len(payload.Details) > 0 {
			e.Details = payload.Details
		}
	}

	// A bearer challenge carries machine-readable hints (expired token,
	// missing scope). Surface them so callers do not parse headers.
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		ch, err := httpx.ParseWWWAuthenticate(resp.Header().Get("WWW-Authenticate"))
		if err == nil && ch.IsBearerChallenge() {
			challenge := make(map[string]string)
			if ch.Realm != "" {
				challenge["realm"] = ch.Realm
			}
			if ch.Error != "" {
				challenge["error"] = ch.Error
			}
			if ch.ErrorDescription != "" {
				challenge["error_description"] = ch.ErrorDescription
			}
			if ch.Scope != "" {
				challenge["scope"] = ch.Scope
			}
			if e.Details == nil {
				e.Details = make(map[string]any)
			}
			e.Details["www_authenticate"] = challenge
		}
	}

	return e
}
