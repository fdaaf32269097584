// Package adapter binds per-operation handlers to a net/http router driven by
// a normalized OpenAPI document. Every declared operation must have a
// handler; requests are split into the four parameter buckets and an optional
// tagged body, and handler responses are checked against the declared
// variants before they reach the wire.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/openapi2ts/internal/contract"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

// ErrMissingHandler is returned by New when a declared operation has no handler.
var ErrMissingHandler = errors.New("adapter: missing handler")

// MissingHandlerError names the operation that lacks a handler.
type MissingHandlerError struct {
	Path   string
	Method spec.HttpMethod
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("adapter: missing handler function for path %s, operation %s", e.Path, e.Method)
}

func (e *MissingHandlerError) Unwrap() error { return ErrMissingHandler }

// Parameters holds the request parameters by location, coerced to the
// declared schema kinds (float64, bool, string or []any).
type Parameters struct {
	Path   map[string]any
	Query  map[string]any
	Header map[string]any
	Cookie map[string]any
}

// RequestBody is the tagged request body: the matched declared media type and
// the decoded content.
type RequestBody struct {
	ContentType string
	Content     any
}

// Response is what a handler returns. ContentType and Content are either both
// set or both empty.
type Response struct {
	HTTPCode    int
	ContentType string
	Content     any
}

// Handler implements one operation. body is nil when the request carries none.
type Handler func(ctx context.Context, params Parameters, body *RequestBody) (*Response, error)

// Handlers maps path templates and methods to handlers, mirroring the
// document's paths object.
type Handlers map[string]map[spec.HttpMethod]Handler

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router serves the operations of one document. It is immutable after New and
// safe for concurrent use.
type Router struct {
	mux      *http.ServeMux
	handler  http.Handler
	contract *contract.Contract

	logger       *slog.Logger
	contextFunc  func(*http.Request) (context.Context, error)
	middleware   []Middleware
	maxBodyBytes int64
}

// Option configures a Router.
type Option func(*Router)

// WithLogger logs one line per request and contract violations.
func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.logger = l } }

// WithContextFunc derives the handler context from the request.
func WithContextFunc(fn func(*http.Request) (context.Context, error)) Option {
	return func(r *Router) { r.contextFunc = fn }
}

// WithMiddleware appends middleware around the whole router.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Router) { r.middleware = append(r.middleware, mw...) }
}

// WithRateLimit limits requests per client IP.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Router) {
		if rps > 0 {
			r.middleware = append(r.middleware, RateLimit(rps, burst))
		}
	}
}

// WithMaxBodyBytes caps request bodies. Defaults to 10 MiB.
func WithMaxBodyBytes(n int64) Option { return func(r *Router) { r.maxBodyBytes = n } }

// New registers one route per path and method of doc. A declared operation
// without a handler fails with a *MissingHandlerError before anything is served.
func New(doc *spec.Document, handlers Handlers, opts ...Option) (*Router, error) {
	c, err := contract.Derive(doc)
	if err != nil {
		return nil, err
	}
	rt := &Router{
		mux:          http.NewServeMux(),
		contract:     c,
		maxBodyBytes: 10 << 20,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = slog.New(slog.DiscardHandler)
	}

	for i := range c.Operations {
		op := &c.Operations[i]
		h := handlers[op.Path][op.Method]
		if h == nil {
			return nil, &MissingHandlerError{Path: op.Path, Method: op.Method}
		}
		pattern, names, err := muxPattern(op.Path)
		if err != nil {
			return nil, err
		}
		if err := rt.handle(strings.ToUpper(string(op.Method))+" "+pattern, rt.endpoint(op, h, names)); err != nil {
			return nil, fmt.Errorf("adapter: %s %s: %w", op.Method, op.Path, err)
		}
		rt.logger.Debug("registered route", "method", op.Method, "path", op.Path, "pattern", pattern)
	}

	var h http.Handler = rt.mux
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		h = rt.middleware[i](h)
	}
	rt.handler = Logger(rt.logger)(h)
	return rt, nil
}

// handle registers a route, turning ServeMux conflict panics into errors.
func (rt *Router) handle(pattern string, h http.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	rt.mux.Handle(pattern, h)
	return nil
}

// Contract returns the contract the router enforces.
func (rt *Router) Contract() *contract.Contract { return rt.contract }

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (rt *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// muxPattern rewrites an OpenAPI path template into a ServeMux pattern.
// Placeholders become positional wildcards p0, p1, ... since template names
// need not be valid identifiers; names maps them back.
func muxPattern(path string) (string, map[string]string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", nil, fmt.Errorf("adapter: path %q must start with /", path)
	}
	names := map[string]string{}
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if !strings.ContainsAny(seg, "{}") {
			continue
		}
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") || strings.Count(seg, "{") != 1 {
			return "", nil, fmt.Errorf("adapter: unsupported path template segment %q in %s", seg, path)
		}
		wildcard := "p" + strconv.Itoa(len(names))
		names[wildcard] = seg[1 : len(seg)-1]
		segs[i] = "{" + wildcard + "}"
	}
	pattern := strings.Join(segs, "/")
	if strings.HasSuffix(pattern, "/") {
		pattern += "{$}"
	}
	return pattern, names, nil
}
