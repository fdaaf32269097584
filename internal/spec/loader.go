package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs controls whether file:// refs are allowed for external references.
	// Default false, but automatically allowed when the root input is a local file
	// to enable typical multi-file specs.
	AllowFileRefs bool
	// SkipValidation disables the advisory kin-openapi document validation.
	SkipValidation bool
	Logger         *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout:   10 * time.Second,
		MaxRetries:    3,
		BackoffBase:   200 * time.Millisecond,
		AllowFileRefs: false,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithSkipValidation(skip bool) Option { return func(s *Settings) { s.SkipValidation = skip } }
func WithLogger(logger *slog.Logger) Option { return func(s *Settings) { s.Logger = logger } }

// Source is a loaded and bundled OpenAPI v3 document together with
// the raw bytes it was read from.
type Source struct {
	Doc      *openapi3.T
	Raw      []byte
	Location string
}

// Load reads, validates and bundles an OpenAPI v3 document. Validation
// findings are logged as warnings rather than failing the load. External
// references are internalized into components so that only internal pointers
// remain. Documents that are not OpenAPI 3.x fail with UnsupportedVersion.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked
// by default (use WithAllowFileRefs(true) when loading from local files and you
// want to permit file-based external refs).
func Load(ctx context.Context, input string, opts ...Option) (*Source, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := resolveSettings(opts)

	// Classify input as URL or file path.
	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}

		raw, fetchErr := fetchWithRetry(ctx, input, settings)
		if fetchErr != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, fetchErr), Location: input, Cause: fetchErr}
		}
		return loadBytes(ctx, raw, u, input, false /*rootIsFile*/, settings)
	}

	// Treat as local filesystem path.
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, rerr := os.ReadFile(abs)
	if rerr != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, rerr), Location: abs, Cause: rerr}
	}
	return loadBytes(ctx, raw, &url.URL{Path: filepath.ToSlash(abs)}, abs, true /*rootIsFile*/, settings)
}

// LoadData is Load for an in-memory document. External file refs are not
// allowed unless WithAllowFileRefs(true) is given.
func LoadData(ctx context.Context, data []byte, opts ...Option) (*Source, error) {
	settings := resolveSettings(opts)
	return loadBytes(ctx, data, nil, "", false, settings)
}

func resolveSettings(opts []Option) Settings {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Logger == nil {
		settings.Logger = slog.New(slog.DiscardHandler)
	}
	return settings
}

func loadBytes(ctx context.Context, raw []byte, location *url.URL, display string, rootIsFile bool, settings Settings) (*Source, error) {
	version, err := detectSpecVersion(raw)
	if err != nil {
		var se *SpecError
		if errors.As(err, &se) {
			se.Location = display
			return nil, se
		}
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: display, Cause: err}
	}
	settings.Logger.Debug("detected document version", "openapi", version, "location", display)

	loader := newLoader(settings, rootIsFile)
	var doc *openapi3.T
	if location != nil {
		doc, err = loader.LoadFromDataWithPath(raw, location)
	} else {
		doc, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, mapValidateOrParseErr(err, display)
	}

	// Validation is advisory: generation only needs a document it can
	// classify, so findings are reported and loading continues.
	if !settings.SkipValidation {
		if err := doc.Validate(ctx); err != nil {
			verr := mapValidateOrParseErr(err, display)
			settings.Logger.Warn("document failed validation",
				"code", verr.Code, "pointer", verr.JSONPointer, "error", verr.Message, "location", display)
		}
	}

	// Bundle: pull external documents into components so only internal
	// pointers reach the generator. InternalizeRefs drops the top-level Ref
	// of every component entry, so internal aliases are put back afterwards.
	aliases := componentAliases(doc.Components)
	doc.InternalizeRefs(ctx, nil)
	aliases.restore(doc.Components)

	return &Source{Doc: doc, Raw: raw, Location: display}, nil
}

func newLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	// Allow file refs only when configured or when loading from a local file root.
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectSpecVersion returns the OpenAPI version string of a 3.x document and
// fails with UnsupportedVersion for anything else, Swagger 2.0 included.
func detectSpecVersion(data []byte) (string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		s := strings.TrimSpace(fmt.Sprint(v))
		if strings.HasPrefix(s, "3") {
			return s, nil
		}
		return "", &SpecError{Code: UnsupportedVersion, Message: fmt.Sprintf("spec: only OpenAPI 3 is supported, the provided document declares openapi %s", s)}
	}
	if v, ok := root["swagger"]; ok {
		return "", &SpecError{Code: UnsupportedVersion, Message: fmt.Sprintf("spec: only OpenAPI 3 is supported, the provided document declares swagger %v", v)}
	}
	return "", &SpecError{Code: UnsupportedVersion, Message: "spec: missing version (expected 'openapi: 3.x')"}
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		settings.Logger.Debug("retrying fetch", "url", rawURL, "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. retry reports whether the failure is transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func mapValidateOrParseErr(err error, location string) *SpecError {
	pointer := extractJSONPointer(err)
	code := ValidationError
	lower := strings.ToLower(err.Error())
	// Heuristics: some loader errors are parse errors or dangling pointers.
	switch {
	case strings.Contains(lower, "resolve") || strings.Contains(lower, "bad data in"):
		code = UnresolvedReference
	case strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character"):
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// Unwrap MultiError and take the first for brevity.
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// refAliases records component entries that are themselves internal
// references, keyed by component section and entry name.
type refAliases struct {
	schemas       map[string]string
	parameters    map[string]string
	requestBodies map[string]string
	responses     map[string]string
	headers       map[string]string
}

func componentAliases(c *openapi3.Components) refAliases {
	var a refAliases
	if c == nil {
		return a
	}
	a.schemas = make(map[string]string)
	for name, ref := range c.Schemas {
		if ref != nil && strings.HasPrefix(ref.Ref, "#/") {
			a.schemas[name] = ref.Ref
		}
	}
	a.parameters = make(map[string]string)
	for name, ref := range c.Parameters {
		if ref != nil && strings.HasPrefix(ref.Ref, "#/") {
			a.parameters[name] = ref.Ref
		}
	}
	a.requestBodies = make(map[string]string)
	for name, ref := range c.RequestBodies {
		if ref != nil && strings.HasPrefix(ref.Ref, "#/") {
			a.requestBodies[name] = ref.Ref
		}
	}
	a.responses = make(map[string]string)
	for name, ref := range c.Responses {
		if ref != nil && strings.HasPrefix(ref.Ref, "#/") {
			a.responses[name] = ref.Ref
		}
	}
	a.headers = make(map[string]string)
	for name, ref := range c.Headers {
		if ref != nil && strings.HasPrefix(ref.Ref, "#/") {
			a.headers[name] = ref.Ref
		}
	}
	return a
}

func (a refAliases) restore(c *openapi3.Components) {
	if c == nil {
		return
	}
	for name, target := range a.schemas {
		if ref := c.Schemas[name]; ref != nil {
			ref.Ref = target
		}
	}
	for name, target := range a.parameters {
		if ref := c.Parameters[name]; ref != nil {
			ref.Ref = target
		}
	}
	for name, target := range a.requestBodies {
		if ref := c.RequestBodies[name]; ref != nil {
			ref.Ref = target
		}
	}
	for name, target := range a.responses {
		if ref := c.Responses[name]; ref != nil {
			ref.Ref = target
		}
	}
	for name, target := range a.headers {
		if ref := c.Headers[name]; ref != nil {
			ref.Ref = target
		}
	}
}
