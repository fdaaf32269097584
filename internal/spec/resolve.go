package spec

import "strings"

// MaxRefDepth bounds how many reference hops a resolver follows.
const MaxRefDepth = 50

// componentName returns the name segment of a "#/components/<section>/<name>"
// pointer, unescaped.
func componentName(ref, section string) (string, bool) {
	parts := strings.Split(ref, "/")
	if len(parts) != 4 || parts[0] != "#" || parts[1] != "components" || parts[2] != section {
		return "", false
	}
	name := strings.ReplaceAll(strings.ReplaceAll(parts[3], "~1", "/"), "~0", "~")
	return name, true
}

// ResolveParameter follows a parameter reference through components.parameters
// until a concrete definition is found. Chains longer than MaxRefDepth fail
// with CycleOrDepthExceeded; a missing target fails with UnresolvedReference.
func ResolveParameter(doc *Document, ref string, depth int) (*Parameter, error) {
	if depth > MaxRefDepth {
		return nil, newRefError(CycleOrDepthExceeded, ref, "spec: parameter reference chain exceeds %d hops at %q", MaxRefDepth, ref)
	}
	name, ok := componentName(ref, "parameters")
	if !ok {
		return nil, newRefError(UnresolvedReference, ref, "spec: %q is not a component parameter reference", ref)
	}
	p, ok := doc.Components.LookupParameter(name)
	if !ok || p == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: parameter %q not found in components", name)
	}
	if p.Ref != "" {
		return ResolveParameter(doc, p.Ref, depth+1)
	}
	if p.Value == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: parameter %q is empty", name)
	}
	return p.Value, nil
}

// ResolveParam resolves p, which may be inline or a reference.
func (d *Document) ResolveParam(p *ParameterOrRef) (*Parameter, error) {
	if p.Ref != "" {
		return ResolveParameter(d, p.Ref, 0)
	}
	if p.Value == nil {
		return nil, newRefError(UnresolvedReference, "", "spec: empty parameter")
	}
	return p.Value, nil
}

// ResolveRequestBody follows a request body reference through components.requestBodies.
func ResolveRequestBody(doc *Document, ref string, depth int) (*RequestBody, error) {
	if depth > MaxRefDepth {
		return nil, newRefError(CycleOrDepthExceeded, ref, "spec: request body reference chain exceeds %d hops at %q", MaxRefDepth, ref)
	}
	name, ok := componentName(ref, "requestBodies")
	if !ok {
		return nil, newRefError(UnresolvedReference, ref, "spec: %q is not a component request body reference", ref)
	}
	rb, ok := doc.Components.LookupRequestBody(name)
	if !ok || rb == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: request body %q not found in components", name)
	}
	if rb.Ref != "" {
		return ResolveRequestBody(doc, rb.Ref, depth+1)
	}
	if rb.Value == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: request body %q is empty", name)
	}
	return rb.Value, nil
}

// ResolveResponse follows a response reference through components.responses.
func ResolveResponse(doc *Document, ref string, depth int) (*Response, error) {
	if depth > MaxRefDepth {
		return nil, newRefError(CycleOrDepthExceeded, ref, "spec: response reference chain exceeds %d hops at %q", MaxRefDepth, ref)
	}
	name, ok := componentName(ref, "responses")
	if !ok {
		return nil, newRefError(UnresolvedReference, ref, "spec: %q is not a component response reference", ref)
	}
	r, ok := doc.Components.LookupResponse(name)
	if !ok || r == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: response %q not found in components", name)
	}
	if r.Ref != "" {
		return ResolveResponse(doc, r.Ref, depth+1)
	}
	if r.Value == nil {
		return nil, newRefError(UnresolvedReference, ref, "spec: response %q is empty", name)
	}
	return r.Value, nil
}

// MergedParameters resolves the parameters that apply to op: path-item level
// parameters first, then operation level ones. An operation parameter with the
// same in+name replaces the path-item one in place.
func (d *Document) MergedParameters(item *PathItem, op *Operation) ([]*Parameter, error) {
	var out []*Parameter
	index := map[string]int{}
	add := func(list []*ParameterOrRef) error {
		for _, pr := range list {
			p, err := d.ResolveParam(pr)
			if err != nil {
				return err
			}
			key := p.In + ":" + p.Name
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
		return nil
	}
	if item != nil {
		if err := add(item.Parameters); err != nil {
			return nil, err
		}
	}
	if err := add(op.Parameters); err != nil {
		return nil, err
	}
	return out, nil
}
