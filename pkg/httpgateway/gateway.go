// Package httpgateway implements the HTTP effect gateway (C3): it builds
// requests from descriptors and arguments, injects credentials, dispatches
// them, and parses the response.
package httpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/logger"
)

// Pair is an ordered key/value, used for query and header parameters
// where stable order is not required but deterministic construction is
// convenient for tests (§4.2 step 2-3).
type Pair struct {
	Name  string
	Value string
}

// CredentialKind tags the variant of Credential.
type CredentialKind string

// Credential kinds.
const (
	CredentialBearer CredentialKind = "bearer"
	CredentialAPIKey CredentialKind = "api_key"
	CredentialBasic  CredentialKind = "basic"
)

// Credential is a per-request auth secret, never exposed to the VM.
type Credential struct {
	Kind  CredentialKind
	Token string // bearer
	Key   string // api_key
	User  string // basic
	Pass  string // basic
}

// AuthSchemeKind tags the variant of AuthScheme.
type AuthSchemeKind string

// Auth scheme kinds, mirroring pkg/catalogue.AuthSchemeKind without
// importing it, so this package stays testable in isolation.
const (
	AuthBearer AuthSchemeKind = "bearer"
	AuthAPIKey AuthSchemeKind = "api_key"
	AuthBasic  AuthSchemeKind = "basic"
)

// AuthScheme describes how to attach a Credential to a request.
type AuthScheme struct {
	Kind   AuthSchemeKind
	Header string // bearer, api_key
	Prefix string // bearer
}

// Request is everything the gateway needs to build and dispatch one HTTP
// call.
type Request struct {
	Method       string
	BaseURL      string
	PathTemplate string
	PathParams   map[string]string
	Query        []Pair
	Headers      []Pair
	Auth         *AuthScheme
	Credential   *Credential
	Body         any // nil, or a JSON-marshalable value
}

// Dispatcher sends a built HTTP request and returns the response status
// and the raw response body bytes; the Gateway decodes the body. A mock
// dispatcher satisfying this interface is the
// first-class testing contract required by §4.2.
type Dispatcher interface {
	Dispatch(ctx context.Context, method, fullURL string, query []Pair, headers []Pair, body []byte) (status int, respBody []byte, err error)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, method, fullURL string, query []Pair, headers []Pair, body []byte) (int, []byte, error)

// Dispatch implements Dispatcher.
func (f DispatchFunc) Dispatch(ctx context.Context, method, fullURL string, query, headers []Pair, body []byte) (int, []byte, error) {
	return f(ctx, method, fullURL, query, headers, body)
}

// Gateway builds and dispatches HTTP effects.
type Gateway struct {
	dispatcher Dispatcher
}

// New constructs a Gateway backed by a real net/http.Client dispatcher.
func New(client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{dispatcher: &httpDispatcher{client: client}}
}

// NewWithDispatcher constructs a Gateway backed by an injected dispatcher,
// e.g. a mock used in tests (§4.2).
func NewWithDispatcher(d Dispatcher) *Gateway {
	return &Gateway{dispatcher: d}
}

// Call builds, dispatches, and decodes one HTTP effect.
func (g *Gateway) Call(ctx context.Context, req Request) (any, error) {
	fullURL, err := buildURL(req.BaseURL, req.PathTemplate, req.PathParams)
	if err != nil {
		return nil, err
	}

	headers := append([]Pair(nil), req.Headers...)
	headers = injectAuth(headers, req.Auth, req.Credential)

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, toolerrors.NewInvalidArgumentError("request body is not JSON-serializable", err)
		}
		headers = append(headers, Pair{Name: "Content-Type", Value: "application/json"})
	}

	logger.Debugw("dispatching http effect", "method", req.Method, "url", fullURL)

	status, respBody, err := g.dispatcher.Dispatch(ctx, req.Method, fullURL, req.Query, headers, bodyBytes)
	if err != nil {
		return nil, toolerrors.NewUnavailableError(
			fmt.Sprintf("%s %s: transport failure", req.Method, fullURL), err)
	}
	if status < 200 || status >= 300 {
		return nil, toolerrors.NewUnavailableError(
			fmt.Sprintf("%s %s: status %d: %s", req.Method, fullURL, status, string(respBody)), nil)
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, toolerrors.NewUnavailableError("response body is not valid JSON", err)
	}
	return normalizeNumbers(decoded), nil
}

// normalizeNumbers walks a decoded JSON tree replacing json.Number with
// int64 (when exactly representable) or float64, so downstream coercion
// (C9) never has to special-case json.Number.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, vv := range val {
			val[k] = normalizeNumbers(vv)
		}
		return val
	case []any:
		for i, vv := range val {
			val[i] = normalizeNumbers(vv)
		}
		return val
	default:
		return v
	}
}

func buildURL(baseURL, pathTemplate string, pathParams map[string]string) (string, error) {
	path := pathTemplate
	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

func injectAuth(headers []Pair, scheme *AuthScheme, cred *Credential) []Pair {
	if scheme == nil || cred == nil {
		return headers
	}
	switch {
	case scheme.Kind == AuthBearer && cred.Kind == CredentialBearer:
		return append(headers, Pair{Name: scheme.Header, Value: scheme.Prefix + cred.Token})
	case scheme.Kind == AuthAPIKey && cred.Kind == CredentialAPIKey:
		return append(headers, Pair{Name: scheme.Header, Value: cred.Key})
	case scheme.Kind == AuthBasic && cred.Kind == CredentialBasic:
		return append(headers, Pair{Name: "Authorization", Value: "Basic " + basicAuth(cred.User, cred.Pass)})
	default:
		// Mismatched scheme/credential: no auth header (§4.2 step 4).
		return headers
	}
}
