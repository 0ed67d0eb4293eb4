package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-Id"
	headerUserAgent     = "User-Agent"

	contentTypeJSON = "application/json"

	// maxResponseBytes bounds how much of a response body is buffered.
	maxResponseBytes = 8 << 20
)

// ErrInvalidBaseURL is returned by [NewGateway] when the base URL is not an
// absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("base URL must be an absolute http(s) URL")

// TokenSource yields the bearer token for the next call. An empty string means
// the call is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to [TokenSource].
type TokenFunc func() string

func (f TokenFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// Loading brackets every call. End is always invoked once Begin was, before the
// call resolves or rejects.
type Loading interface {
	Begin(ctx context.Context)
	End(ctx context.Context)
}

// Reactor receives every classified failure after the loading indicator is released.
type Reactor interface {
	React(ctx context.Context, err *Error)
}

// Observer is told how long each call took and how it ended. kind is zero on success.
type Observer interface {
	ObserveRequest(kind Kind, elapsed time.Duration)
	ObserveUpload(kind Kind, elapsed time.Duration)
}

// Options describes one JSON call. URL is a path relative to the gateway base URL.
// For GET and HEAD, Data is encoded into the query string; for other methods it
// is sent as the JSON body.
type Options struct {
	Method string
	URL    string
	Data   any
	Header http.Header
}

// Gateway decorates, sends, and classifies backend calls.
//
// Gateway is safe for concurrent use when its collaborators are.
type Gateway struct {
	baseURL   string
	userAgent string
	client    *http.Client
	tokens    TokenSource
	loading   Loading
	reactor   Reactor
	observer  Observer
	logger    *zap.Logger
	newID     func() string
}

// Option configures a [Gateway].
type Option func(*Gateway)

// WithHTTPClient sets the transport. The client's own timeout is the only timeout applied.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithTokenSource sets where the bearer token is read from.
func WithTokenSource(ts TokenSource) Option {
	return func(g *Gateway) { g.tokens = ts }
}

// WithLoading sets the loading indicator bracket.
func WithLoading(l Loading) Option {
	return func(g *Gateway) { g.loading = l }
}

// WithReactor sets the failure reactor.
func WithReactor(r Reactor) Option {
	return func(g *Gateway) { g.reactor = r }
}

// WithObserver sets the per-call observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithLogger sets the logger used for debug traces of each call.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithUserAgent sets a User-Agent header on every call.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) { g.userAgent = ua }
}

// NewGateway builds a gateway rooted at baseURL.
func NewGateway(baseURL string, opts ...Option) (*Gateway, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		baseURL: base,
		client:  http.DefaultClient,
		logger:  zap.NewNop(),
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// BaseURL returns the normalized base URL (no trailing slash).
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Request issues one JSON call and returns the envelope on business success.
// Every failure is an [*Error].
func (g *Gateway) Request(ctx context.Context, opts Options) (*Envelope, error) {
	return g.request(ctx, opts, nil)
}

// request is Request with an optional decode step run on the success envelope.
// A decode failure is observed and reacted to like any other failure.
func (g *Gateway) request(ctx context.Context, opts Options, decode func(*Envelope) *Error) (*Envelope, error) {
	start := time.Now()
	env, apiErr := g.withLoading(ctx, func() (*Envelope, *Error) {
		req, err := g.newJSONRequest(ctx, opts)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Err: err}
		}
		return g.send(req)
	})
	if apiErr == nil && decode != nil {
		apiErr = decode(env)
	}
	if g.observer != nil {
		g.observer.ObserveRequest(kindOf(apiErr), time.Since(start))
	}
	return g.finish(ctx, opts.Method, opts.URL, env, apiErr)
}

func (g *Gateway) finish(ctx context.Context, method, path string, env *Envelope, apiErr *Error) (*Envelope, error) {
	if apiErr == nil {
		return env, nil
	}
	g.logger.Debug("gocampus: request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Stringer("kind", apiErr.Kind),
		zap.Int("status", apiErr.Status),
		zap.Int("code", apiErr.Code),
	)
	if g.reactor != nil {
		g.reactor.React(ctx, apiErr)
	}
	return nil, apiErr
}

// withLoading runs call between Begin and End. End is deferred so that it runs
// even when call panics.
func (g *Gateway) withLoading(ctx context.Context, call func() (*Envelope, *Error)) (*Envelope, *Error) {
	if g.loading != nil {
		g.loading.Begin(ctx)
		defer g.loading.End(ctx)
	}
	return call()
}

func (g *Gateway) send(req *http.Request) (*Envelope, *Error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return Classify(0, nil, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Classify(0, nil, fmt.Errorf("read response body: %w", err))
	}
	return Classify(resp.StatusCode, body, nil)
}

func (g *Gateway) newJSONRequest(ctx context.Context, opts Options) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}

	target := g.baseURL + opts.URL
	var body io.Reader

	if method == http.MethodGet || method == http.MethodHead {
		query, err := encodeQuery(opts.Data)
		if err != nil {
			return nil, err
		}
		if len(query) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + query.Encode()
		}
	} else {
		payload, err := encodeBody(opts.Data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	g.decorate(ctx, req, opts.Header)
	return req, nil
}

// decorate applies the auth, request-id and user-agent headers, then the caller's
// headers, which win on conflict.
func (g *Gateway) decorate(ctx context.Context, req *http.Request, extra http.Header) {
	if g.tokens != nil {
		if token := g.tokens.Token(); token != "" {
			req.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}

	id := requestIDFromContext(ctx)
	if id == "" {
		id = g.newID()
	}
	req.Header.Set(headerRequestID, id)

	if g.userAgent != "" {
		req.Header.Set(headerUserAgent, g.userAgent)
	}

	for k, vs := range extra {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

func encodeBody(data any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return payload, nil
}

// encodeQuery flattens data into query parameters. Structs go through their JSON
// form so that json tags (including omitempty) decide the parameter names.
func encodeQuery(data any) (url.Values, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return v, nil
	case map[string]string:
		out := make(url.Values, len(v))
		for k, s := range v {
			out.Set(k, s)
		}
		return out, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("query data must be an object: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(url.Values, len(fields))
	for _, k := range keys {
		switch val := fields[k].(type) {
		case nil:
		case []any:
			for _, item := range val {
				out.Add(k, fmt.Sprint(item))
			}
		default:
			out.Set(k, fmt.Sprint(val))
		}
	}
	return out, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidBaseURL
	}
	return strings.TrimRight(raw, "/"), nil
}

func kindOf(err *Error) Kind {
	if err == nil {
		return 0
	}
	return err.Kind
}
