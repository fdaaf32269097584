package spec

import "github.com/getkin/kin-openapi/openapi3"

// Normalized document model consumed by the type generator, the contract
// deriver and the routing adapter. Built once by Normalize and never mutated.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	PUT     HttpMethod = "put"
	POST    HttpMethod = "post"
	DELETE  HttpMethod = "delete"
	OPTIONS HttpMethod = "options"
	HEAD    HttpMethod = "head"
	PATCH   HttpMethod = "patch"
	TRACE   HttpMethod = "trace"
)

// Methods lists the eight operation tokens in canonical emission order.
var Methods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

type Document struct {
	OpenAPI    string
	Title      string
	Version    string
	Paths      []PathItem
	Components Components
}

type PathItem struct {
	Path       string
	Parameters []*ParameterOrRef // path-item level, merged into each operation by the consumers
	Operations []Operation       // canonical method order
}

type Operation struct {
	Method      HttpMethod
	OperationID string
	Summary     string
	Tags        []string
	Parameters  []*ParameterOrRef
	RequestBody *RequestBodyOrRef
	Responses   []ResponseOrRef
}

type Parameter struct {
	Name     string
	In       string // path|query|header|cookie
	Required bool
	Schema   *Schema
	// Content is used when the parameter describes its shape through a media type.
	Content []Media
}

type ParameterOrRef struct {
	Ref   string
	Value *Parameter
}

type RequestBody struct {
	Required bool
	Content  []Media
}

type RequestBodyOrRef struct {
	Ref   string
	Value *RequestBody
}

type Response struct {
	Description string
	Content     []Media
}

type ResponseOrRef struct {
	Status string // 200, 4XX, default
	Ref    string
	Value  *Response
}

type Media struct {
	MediaType string
	Schema    *Schema // nil when the media type declares no schema
	// Example holds a single example value if available. It may be nil.
	Example any
}

type Components struct {
	Schemas       []NamedSchema
	Parameters    []NamedParameter
	RequestBodies []NamedRequestBody
	// RequestBodiesRef is set when the whole requestBodies mapping is a reference.
	RequestBodiesRef string
	Responses        []NamedResponse
}

type NamedSchema struct {
	Name   string
	Schema *Schema
}

type NamedParameter struct {
	Name      string
	Parameter *ParameterOrRef
}

type NamedRequestBody struct {
	Name        string
	RequestBody *RequestBodyOrRef
}

type NamedResponse struct {
	Name     string
	Response *ResponseOrRef
}

// Kind is the explicit discriminant of a schema node.
type Kind int

const (
	KindUnknown Kind = iota
	KindReference
	KindArray
	KindBoolean
	KindString
	KindNumber
	KindEnum
	KindOneOf
	KindAnyOf
	KindObject
)

var kindNames = [...]string{"unknown", "reference", "array", "boolean", "string", "number", "enum", "oneOf", "anyOf", "object"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Schema is one classified schema node. Only the fields relevant to Kind are
// populated, except Nullable and Description which apply to every kind.
type Schema struct {
	Kind        Kind
	Nullable    bool
	Description string

	Ref     string // KindReference
	Pattern string // KindString
	Enum    []any  // KindEnum
	Items   *Schema
	OneOf   []*Schema
	AnyOf   []*Schema

	// KindObject
	Properties []Property
	Required   []string
	// AdditionalProperties is nil when absent or false; AdditionalAny marks `true`.
	AdditionalProperties *Schema
	AdditionalAny        bool
	AllOf                []*Schema

	// Source is the kin-openapi node this schema was normalized from. Nil for
	// hand-built schemas.
	Source *openapi3.Schema
}

type Property struct {
	Name   string
	Schema *Schema
}

// IsRequired reports whether name is listed in the schema's required set.
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// HasAdditionalProperties reports whether additionalProperties is present as a
// schema or as `true`.
func (s *Schema) HasAdditionalProperties() bool {
	return s != nil && (s.AdditionalProperties != nil || s.AdditionalAny)
}

// Operation returns the operation for method, or nil.
func (p *PathItem) Operation(m HttpMethod) *Operation {
	for i := range p.Operations {
		if p.Operations[i].Method == m {
			return &p.Operations[i]
		}
	}
	return nil
}

// LookupParameter returns the named component parameter.
func (c *Components) LookupParameter(name string) (*ParameterOrRef, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p.Parameter, true
		}
	}
	return nil, false
}

// LookupRequestBody returns the named component request body.
func (c *Components) LookupRequestBody(name string) (*RequestBodyOrRef, bool) {
	for _, rb := range c.RequestBodies {
		if rb.Name == name {
			return rb.RequestBody, true
		}
	}
	return nil, false
}

// LookupResponse returns the named component response.
func (c *Components) LookupResponse(name string) (*ResponseOrRef, bool) {
	for _, r := range c.Responses {
		if r.Name == name {
			return r.Response, true
		}
	}
	return nil, false
}
