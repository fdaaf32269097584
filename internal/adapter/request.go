package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/openapi2ts/internal/contract"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

func (rt *Router) endpoint(op *contract.Operation, h Handler, names map[string]string) http.Handler {
	wildcards := make(map[string]string, len(names))
	for w, name := range names {
		wildcards[name] = w
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if rt.contextFunc != nil {
			c, err := rt.contextFunc(r)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx = c
		}

		params, err := bindParameters(r, op, wildcards)
		if err != nil {
			writeError(w, err)
			return
		}
		body, err := rt.bindBody(r, op)
		if err != nil {
			writeError(w, err)
			return
		}

		resp, err := h(ctx, params, body)
		if err != nil {
			writeError(w, err)
			return
		}
		rt.writeResponse(w, r, op, resp)
	})
}

func bindParameters(r *http.Request, op *contract.Operation, wildcards map[string]string) (Parameters, error) {
	params := Parameters{
		Path:   map[string]any{},
		Query:  map[string]any{},
		Header: map[string]any{},
		Cookie: map[string]any{},
	}
	query := r.URL.Query()
	var problems []ValidationError

	bind := func(in string, list []contract.Param, dst map[string]any, lookup func(name string) []string) {
		for _, p := range list {
			raw := lookup(p.Name)
			if len(raw) == 0 {
				if p.Required {
					problems = append(problems, ValidationError{Field: in + "." + p.Name, Message: "is required"})
				}
				continue
			}
			v, err := coerce(p.Schema, raw)
			if err == nil {
				err = visit(p.Schema, v)
			}
			if err != nil {
				problems = append(problems, ValidationError{Field: in + "." + p.Name, Message: err.Error(), Value: strings.Join(raw, ",")})
				continue
			}
			dst[p.Name] = v
		}
	}

	bind(spec.InPath, op.Params.Path, params.Path, func(name string) []string {
		if v := r.PathValue(wildcards[name]); v != "" {
			return []string{v}
		}
		return nil
	})
	bind(spec.InQuery, op.Params.Query, params.Query, func(name string) []string { return query[name] })
	bind(spec.InHeader, op.Params.Header, params.Header, func(name string) []string { return r.Header.Values(name) })
	bind(spec.InCookie, op.Params.Cookie, params.Cookie, func(name string) []string {
		c, err := r.Cookie(name)
		if err != nil {
			return nil
		}
		return []string{c.Value}
	})

	if len(problems) > 0 {
		return params, &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: "invalid request parameters",
			Errors: problems,
		}
	}
	return params, nil
}

// coerce converts raw parameter values to the kind the schema declares.
// Repeated or comma separated values form arrays.
func coerce(s *spec.Schema, raw []string) (any, error) {
	switch effectiveKind(s) {
	case spec.KindArray:
		if len(raw) == 1 {
			raw = strings.Split(raw[0], ",")
		}
		var items *spec.Schema
		if s != nil {
			items = s.Items
		}
		out := make([]any, 0, len(raw))
		for _, v := range raw {
			item, err := coerce(items, []string{v})
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case spec.KindNumber:
		f, err := strconv.ParseFloat(raw[0], 64)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		return f, nil
	case spec.KindBoolean:
		b, err := strconv.ParseBool(raw[0])
		if err != nil {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	case spec.KindObject:
		var v any
		if err := json.Unmarshal([]byte(raw[0]), &v); err == nil {
			return v, nil
		}
		return raw[0], nil
	default:
		return raw[0], nil
	}
}

// effectiveKind sees through references using the bundled target node.
func effectiveKind(s *spec.Schema) spec.Kind {
	if s == nil {
		return spec.KindString
	}
	if s.Kind == spec.KindReference {
		if s.Source == nil {
			return spec.KindString
		}
		return spec.Classify(s.Source)
	}
	return s.Kind
}

// visit checks v against the source schema when one is known.
func visit(s *spec.Schema, v any) error {
	if s == nil || s.Source == nil {
		return nil
	}
	if err := s.Source.VisitJSON(v, openapi3.MultiErrors()); err != nil {
		var me openapi3.MultiError
		if errors.As(err, &me) && len(me) > 0 {
			return schemaReason(me[0])
		}
		return schemaReason(err)
	}
	return nil
}

func schemaReason(err error) error {
	var se *openapi3.SchemaError
	if errors.As(err, &se) && se.Reason != "" {
		return errors.New(se.Reason)
	}
	return err
}

func (rt *Router) bindBody(r *http.Request, op *contract.Operation) (*RequestBody, error) {
	var data []byte
	if r.Body != nil {
		var err error
		data, err = io.ReadAll(http.MaxBytesReader(nil, r.Body, rt.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, problem(http.StatusRequestEntityTooLarge, err.Error())
			}
			return nil, problem(http.StatusBadRequest, err.Error())
		}
	}
	contentType := r.Header.Get("Content-Type")
	m, err := op.CheckRequestBody(contentType, len(data) > 0)
	switch {
	case errors.Is(err, contract.ErrMissingRequestBody):
		return nil, problem(http.StatusBadRequest, err.Error())
	case errors.Is(err, contract.ErrUndeclaredMediaType):
		return nil, problem(http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		return nil, err
	case m == nil:
		return nil, nil
	}

	body := &RequestBody{ContentType: m.ContentType}
	switch {
	case isJSON(contentType):
		var v any
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
			return nil, problem(http.StatusBadRequest, "invalid JSON body: "+err.Error())
		}
		if err := visit(m.Schema, v); err != nil {
			return nil, &ProblemDetail{
				Type:   "about:blank",
				Title:  http.StatusText(http.StatusBadRequest),
				Status: http.StatusBadRequest,
				Detail: "request body does not match schema",
				Errors: []ValidationError{{Field: "body", Message: err.Error()}},
			}
		}
		body.Content = v
	case strings.HasPrefix(strings.ToLower(contentType), "text/"):
		body.Content = string(data)
	default:
		body.Content = data
	}
	return body, nil
}

func isJSON(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
