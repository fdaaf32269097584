package spec

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// BuildOption configures how the Document is built from an OpenAPI doc.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
}

// filtersOperations reports whether a filter selects operations positively,
// so a path item without any operation cannot satisfy it.
func (c *buildConfig) filtersOperations() bool {
	return len(c.includeTags) > 0 || len(c.methods) > 0
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only paths matching at least one of the provided
// regular expressions. Invalid patterns never match.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// ParseMethod validates an operation token.
func ParseMethod(s string) (HttpMethod, bool) {
	m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// Normalize converts a bundled OpenAPI v3 document into the classified
// Document model. Every schema node is classified exactly once here. order
// supplies document key order; a nil order sorts keys.
func Normalize(doc *openapi3.T, order KeyOrder, opts ...BuildOption) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	n := &normalizer{order: order, active: make(map[*openapi3.Schema]bool)}
	out := &Document{OpenAPI: safeStr(doc.OpenAPI)}
	if doc.Info != nil {
		out.Title = safeStr(doc.Info.Title)
		out.Version = safeStr(doc.Info.Version)
	}

	for _, p := range orderedKeys(order, "/paths", doc.Paths) {
		item := doc.Paths[p]
		if item == nil || !allowByPath(p, cfg) {
			continue
		}
		ptr := "/paths/" + escapePointer(p)
		pi := PathItem{Path: p}
		for i, pref := range item.Parameters {
			pi.Parameters = append(pi.Parameters, n.parameter(pref, ptr+"/parameters/"+strconv.Itoa(i)))
		}

		ops := []struct {
			m HttpMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{PUT, item.Put},
			{POST, item.Post},
			{DELETE, item.Delete},
			{OPTIONS, item.Options},
			{HEAD, item.Head},
			{PATCH, item.Patch},
			{TRACE, item.Trace},
		}
		declared := 0
		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			declared++
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[pair.m]; !ok {
					continue
				}
			}
			tags := make([]string, 0, len(pair.o.Tags))
			for _, t := range pair.o.Tags {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
			if !allowByTags(tags, cfg) {
				continue
			}
			pi.Operations = append(pi.Operations, n.operation(pair.m, pair.o, tags, ptr+"/"+string(pair.m)))
		}
		// An item declared without operations is kept; one whose operations
		// were all filtered out is not.
		if len(pi.Operations) == 0 && (declared > 0 || cfg.filtersOperations()) {
			continue
		}
		out.Paths = append(out.Paths, pi)
	}

	if c := doc.Components; c != nil {
		for _, name := range orderedKeys(order, "/components/schemas", c.Schemas) {
			out.Components.Schemas = append(out.Components.Schemas, NamedSchema{
				Name:   name,
				Schema: n.schema(c.Schemas[name], "/components/schemas/"+escapePointer(name)),
			})
		}
		for _, name := range orderedKeys(order, "/components/parameters", c.Parameters) {
			out.Components.Parameters = append(out.Components.Parameters, NamedParameter{
				Name:      name,
				Parameter: n.parameter(c.Parameters[name], "/components/parameters/"+escapePointer(name)),
			})
		}
		for _, name := range orderedKeys(order, "/components/requestBodies", c.RequestBodies) {
			out.Components.RequestBodies = append(out.Components.RequestBodies, NamedRequestBody{
				Name:        name,
				RequestBody: n.requestBody(c.RequestBodies[name], "/components/requestBodies/"+escapePointer(name)),
			})
		}
		for _, name := range orderedKeys(order, "/components/responses", c.Responses) {
			r := n.response(name, c.Responses[name], "/components/responses/"+escapePointer(name))
			out.Components.Responses = append(out.Components.Responses, NamedResponse{Name: name, Response: &r})
		}
	}

	if n.err != nil {
		return nil, n.err
	}
	return out, nil
}

// normalizer carries key order and the cycle guard through one Normalize call.
// The first error aborts the result.
type normalizer struct {
	order  KeyOrder
	active map[*openapi3.Schema]bool
	err    error
}

func (n *normalizer) fail(err error) {
	if n.err == nil {
		n.err = err
	}
}

func (n *normalizer) checkRef(ref, ptr string) string {
	if ref != "" && !strings.HasPrefix(ref, "#/") {
		n.fail(newRefError(UnresolvedReference, "#"+ptr, "spec: external reference %q was not bundled", ref))
	}
	return ref
}

func (n *normalizer) operation(m HttpMethod, o *openapi3.Operation, tags []string, ptr string) Operation {
	op := Operation{
		Method:      m,
		OperationID: safeStr(o.OperationID),
		Summary:     safeStr(o.Summary),
		Tags:        tags,
	}
	for i, pref := range o.Parameters {
		op.Parameters = append(op.Parameters, n.parameter(pref, ptr+"/parameters/"+strconv.Itoa(i)))
	}
	if o.RequestBody != nil {
		op.RequestBody = n.requestBody(o.RequestBody, ptr+"/requestBody")
	}
	for _, code := range orderedKeys(n.order, ptr+"/responses", o.Responses) {
		if o.Responses[code] == nil {
			continue
		}
		op.Responses = append(op.Responses, n.response(code, o.Responses[code], ptr+"/responses/"+escapePointer(code)))
	}
	return op
}

func (n *normalizer) parameter(pref *openapi3.ParameterRef, ptr string) *ParameterOrRef {
	if pref == nil {
		return &ParameterOrRef{}
	}
	if pref.Ref != "" {
		return &ParameterOrRef{Ref: n.checkRef(pref.Ref, ptr)}
	}
	if pref.Value == nil {
		return &ParameterOrRef{}
	}
	p := pref.Value
	return &ParameterOrRef{Value: &Parameter{
		Name:     safeStr(p.Name),
		In:       safeStr(p.In),
		Required: p.Required,
		Schema:   n.schema(p.Schema, ptr+"/schema"),
		Content:  n.media(p.Content, ptr+"/content"),
	}}
}

func (n *normalizer) requestBody(rref *openapi3.RequestBodyRef, ptr string) *RequestBodyOrRef {
	if rref.Ref != "" {
		return &RequestBodyOrRef{Ref: n.checkRef(rref.Ref, ptr)}
	}
	if rref.Value == nil {
		return &RequestBodyOrRef{Value: &RequestBody{}}
	}
	return &RequestBodyOrRef{Value: &RequestBody{
		Required: rref.Value.Required,
		Content:  n.media(rref.Value.Content, ptr+"/content"),
	}}
}

func (n *normalizer) response(status string, rref *openapi3.ResponseRef, ptr string) ResponseOrRef {
	if rref.Ref != "" {
		return ResponseOrRef{Status: status, Ref: n.checkRef(rref.Ref, ptr)}
	}
	r := &Response{}
	if rref.Value != nil {
		if rref.Value.Description != nil {
			r.Description = *rref.Value.Description
		}
		r.Content = n.media(rref.Value.Content, ptr+"/content")
	}
	return ResponseOrRef{Status: status, Value: r}
}

func (n *normalizer) media(content openapi3.Content, ptr string) []Media {
	if content == nil {
		return nil
	}
	out := make([]Media, 0, len(content))
	for _, mime := range orderedKeys(n.order, ptr, content) {
		mt := content[mime]
		if mt == nil {
			continue
		}
		var ex any
		if mt.Example != nil {
			ex = mt.Example
		} else if len(mt.Examples) > 0 {
			// Pick the first example value deterministically by key
			enames := make([]string, 0, len(mt.Examples))
			for name := range mt.Examples {
				enames = append(enames, name)
			}
			sort.Strings(enames)
			if ref := mt.Examples[enames[0]]; ref != nil && ref.Value != nil {
				ex = ref.Value.Value
			}
		}
		out = append(out, Media{
			MediaType: mime,
			Schema:    n.schema(mt.Schema, ptr+"/"+escapePointer(mime)+"/schema"),
			Example:   ex,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (n *normalizer) schema(ref *openapi3.SchemaRef, ptr string) *Schema {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		return &Schema{Kind: KindReference, Ref: n.checkRef(ref.Ref, ptr), Source: ref.Value}
	}
	v := ref.Value
	if v == nil {
		return &Schema{Kind: KindUnknown}
	}
	// An inline node reachable from itself without a $ref cannot be expressed
	// as a type path; it degrades like any other unknown shape.
	if n.active[v] {
		return &Schema{Kind: KindUnknown, Source: v}
	}
	n.active[v] = true
	defer delete(n.active, v)

	s := &Schema{
		Kind:        Classify(v),
		Nullable:    v.Nullable,
		Description: v.Description,
		Source:      v,
	}
	switch s.Kind {
	case KindArray:
		s.Items = n.schema(v.Items, ptr+"/items")
	case KindString:
		s.Pattern = v.Pattern
	case KindEnum:
		s.Enum = append([]any{}, v.Enum...)
	case KindOneOf:
		s.OneOf = n.schemas(v.OneOf, ptr+"/oneOf")
	case KindAnyOf:
		s.AnyOf = n.schemas(v.AnyOf, ptr+"/anyOf")
	case KindObject:
		for _, name := range orderedKeys(n.order, ptr+"/properties", v.Properties) {
			s.Properties = append(s.Properties, Property{
				Name:   name,
				Schema: n.schema(v.Properties[name], ptr+"/properties/"+escapePointer(name)),
			})
		}
		s.Required = append([]string(nil), v.Required...)
		if v.AdditionalProperties.Schema != nil {
			s.AdditionalProperties = n.schema(v.AdditionalProperties.Schema, ptr+"/additionalProperties")
		} else if v.AdditionalProperties.Has != nil && *v.AdditionalProperties.Has {
			s.AdditionalAny = true
		}
		s.AllOf = n.schemas(v.AllOf, ptr+"/allOf")
	}
	return s
}

func (n *normalizer) schemas(refs openapi3.SchemaRefs, ptr string) []*Schema {
	out := make([]*Schema, 0, len(refs))
	for i, r := range refs {
		out = append(out, n.schema(r, ptr+"/"+strconv.Itoa(i)))
	}
	return out
}

var (
	stringTypes = map[string]bool{"binary": true, "byte": true, "date": true, "dateTime": true, "password": true, "string": true}
	numberTypes = map[string]bool{"double": true, "float": true, "integer": true, "number": true}
)

// Classify determines the kind of a non-reference schema node. First match
// wins: array, boolean, string, number, enum, oneOf, anyOf, then object as
// the fallback for everything else, including nodes with no shape at all.
func Classify(v *openapi3.Schema) Kind {
	switch {
	case v == nil:
		return KindUnknown
	case v.Type == "array" || v.Items != nil:
		return KindArray
	case v.Type == "boolean":
		return KindBoolean
	case stringTypes[v.Type]:
		return KindString
	case numberTypes[v.Type]:
		return KindNumber
	case v.Enum != nil:
		return KindEnum
	case v.OneOf != nil:
		return KindOneOf
	case v.AnyOf != nil:
		return KindAnyOf
	default:
		return KindObject
	}
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func allowByPath(p string, cfg *buildConfig) bool {
	if len(cfg.pathRes) == 0 {
		return true
	}
	for _, re := range cfg.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func safeStr(s string) string { return strings.TrimSpace(s) }
