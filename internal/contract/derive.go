// Package contract derives, for every operation of a normalized document, the
// shape a handler has to satisfy: four parameter buckets, an optional tagged
// request body and a tagged union of responses. The adapter enforces the
// contract at runtime and tsgen renders it as TypeScript.
package contract

import (
	"fmt"

	"github.com/mark3labs/openapi2ts/internal/spec"
)

// Contract is the handler registry shape of one document.
type Contract struct {
	Title      string      `json:"title,omitempty" yaml:"title,omitempty"`
	Version    string      `json:"version,omitempty" yaml:"version,omitempty"`
	Operations []Operation `json:"operations" yaml:"operations"`
}

// Operation is the contract of a single path+method handler.
type Operation struct {
	Path        string          `json:"path" yaml:"path"`
	Method      spec.HttpMethod `json:"method" yaml:"method"`
	OperationID string          `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Params      Params          `json:"parameters" yaml:"parameters"`
	RequestBody *Body           `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   []Variant       `json:"responses" yaml:"responses"`
}

// Params holds the parameters of an operation split by location.
type Params struct {
	Path   []Param `json:"path" yaml:"path"`
	Query  []Param `json:"query" yaml:"query"`
	Header []Param `json:"header" yaml:"header"`
	Cookie []Param `json:"cookie" yaml:"cookie"`
}

type Param struct {
	Name     string       `json:"name" yaml:"name"`
	Required bool         `json:"required" yaml:"required"`
	Kind     string       `json:"kind" yaml:"kind"`
	Schema   *spec.Schema `json:"-" yaml:"-"`
}

// Body is a declared request body. A request carries exactly one of Media.
type Body struct {
	Required bool    `json:"required" yaml:"required"`
	Media    []Media `json:"media" yaml:"media"`
}

type Media struct {
	ContentType string       `json:"contentType" yaml:"contentType"`
	Kind        string       `json:"kind,omitempty" yaml:"kind,omitempty"`
	Schema      *spec.Schema `json:"-" yaml:"-"`
	Example     any          `json:"example,omitempty" yaml:"example,omitempty"`
}

// Variant is one member of the response union. A variant without Media
// carries neither contentType nor content.
type Variant struct {
	HTTPCode    string  `json:"httpCode" yaml:"httpCode"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Media       []Media `json:"media,omitempty" yaml:"media,omitempty"`
}

// Derive builds the contract for every operation of doc, resolving parameter,
// request body and response references.
func Derive(doc *spec.Document) (*Contract, error) {
	if doc == nil {
		return nil, fmt.Errorf("contract: nil document")
	}
	c := &Contract{Title: doc.Title, Version: doc.Version}
	for i := range doc.Paths {
		item := &doc.Paths[i]
		for _, m := range spec.Methods {
			op := item.Operation(m)
			if op == nil {
				continue
			}
			derived, err := deriveOperation(doc, item, op)
			if err != nil {
				return nil, fmt.Errorf("contract: %s %s: %w", m, item.Path, err)
			}
			c.Operations = append(c.Operations, derived)
		}
	}
	return c, nil
}

func deriveOperation(doc *spec.Document, item *spec.PathItem, op *spec.Operation) (Operation, error) {
	out := Operation{Path: item.Path, Method: op.Method, OperationID: op.OperationID}

	params, err := doc.MergedParameters(item, op)
	if err != nil {
		return out, err
	}
	for _, p := range params {
		bucket := out.Params.Location(p.In)
		if bucket == nil {
			return out, &spec.SpecError{
				Code:    spec.UnknownParameterLocation,
				Message: fmt.Sprintf("parameter %q has unknown location %q", p.Name, p.In),
			}
		}
		schema := p.Schema
		if schema == nil && len(p.Content) > 0 {
			schema = p.Content[0].Schema
		}
		*bucket = append(*bucket, Param{Name: p.Name, Required: p.Required, Kind: kindOf(schema), Schema: schema})
	}

	if rb := op.RequestBody; rb != nil {
		body := rb.Value
		if rb.Ref != "" {
			if body, err = spec.ResolveRequestBody(doc, rb.Ref, 0); err != nil {
				return out, err
			}
		}
		if body != nil {
			out.RequestBody = &Body{Required: body.Required, Media: toMedia(body.Content)}
		}
	}

	for _, r := range op.Responses {
		resp := r.Value
		if r.Ref != "" {
			if resp, err = spec.ResolveResponse(doc, r.Ref, 0); err != nil {
				return out, err
			}
		}
		v := Variant{HTTPCode: r.Status}
		if resp != nil {
			v.Description = resp.Description
			v.Media = toMedia(resp.Content)
		}
		out.Responses = append(out.Responses, v)
	}
	return out, nil
}

// Location returns the bucket for a parameter location, or nil.
func (p *Params) Location(in string) *[]Param {
	switch in {
	case spec.InPath:
		return &p.Path
	case spec.InQuery:
		return &p.Query
	case spec.InHeader:
		return &p.Header
	case spec.InCookie:
		return &p.Cookie
	}
	return nil
}

// Find returns the operation bound to path and method, or nil.
func (c *Contract) Find(path string, method spec.HttpMethod) *Operation {
	for i := range c.Operations {
		if c.Operations[i].Path == path && c.Operations[i].Method == method {
			return &c.Operations[i]
		}
	}
	return nil
}

func toMedia(content []spec.Media) []Media {
	out := make([]Media, 0, len(content))
	for _, m := range content {
		out = append(out, Media{ContentType: m.MediaType, Kind: kindOf(m.Schema), Schema: m.Schema, Example: m.Example})
	}
	return out
}

func kindOf(s *spec.Schema) string {
	if s == nil {
		return ""
	}
	return s.Kind.String()
}
