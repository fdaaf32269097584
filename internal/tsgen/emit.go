package tsgen

import (
	"fmt"
	"strings"

	"github.com/mark3labs/openapi2ts/internal/spec"
)

const (
	indentUnit = "  "
	directive  = "/* eslint-disable */"
)

// lineWriter accumulates output lines. Indentation is always passed in
// explicitly so buffers built separately can be concatenated without
// re-indenting.
type lineWriter struct {
	b strings.Builder
}

func (w *lineWriter) addLine(text string, level int) {
	w.b.WriteString(strings.Repeat(indentUnit, level))
	w.b.WriteString(text)
	w.b.WriteByte('\n')
}

func (w *lineWriter) append(other *lineWriter) {
	w.b.WriteString(other.b.String())
}

func (w *lineWriter) empty() bool { return w.b.Len() == 0 }

func (w *lineWriter) String() string { return w.b.String() }

// block writes `open {`, the body and `};`, or `open {};` when body is empty.
func (w *lineWriter) block(open string, body *lineWriter, level int) {
	if body.empty() {
		w.addLine(open+" {};", level)
		return
	}
	w.addLine(open+" {", level)
	w.append(body)
	w.addLine("};", level)
}

// Emit renders doc as one exported interface named after the generator root,
// with a paths and a components field. Any error aborts the emission and no
// partial text is returned.
func (g *Generator) Emit(doc *spec.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("tsgen: nil document")
	}
	t := g.newTranslator()

	paths := &lineWriter{}
	for i := range doc.Paths {
		if err := t.pathItem(paths, doc, &doc.Paths[i], 2); err != nil {
			return "", err
		}
	}
	components := t.components(doc, 2)
	if t.err != nil {
		return "", t.err
	}

	out := &lineWriter{}
	out.addLine(directive, 0)
	out.addLine("export interface "+g.Root+" {", 0)
	out.block("readonly paths:", paths, 1)
	out.block("readonly components:", components, 1)
	out.addLine("}", 0)

	g.Logger.Debug("emitted type document", "root", g.Root, "paths", len(doc.Paths),
		"schemas", len(doc.Components.Schemas), "unknownShapes", t.unknowns)
	return out.String(), nil
}

func (t *translator) pathItem(w *lineWriter, doc *spec.Document, item *spec.PathItem, level int) error {
	ops := &lineWriter{}
	for _, m := range spec.Methods {
		op := item.Operation(m)
		if op == nil {
			continue
		}
		t.at = "#/paths/" + escapePointer(item.Path) + "/" + string(m)
		body, err := t.operation(doc, item, op, level+2)
		if err != nil {
			return err
		}
		ops.block("readonly "+string(m)+":", body, level+1)
	}
	w.block("readonly "+quote(item.Path)+":", ops, level)
	return nil
}

func (t *translator) operation(doc *spec.Document, item *spec.PathItem, op *spec.Operation, level int) (*lineWriter, error) {
	params, err := doc.MergedParameters(item, op)
	if err != nil {
		return nil, err
	}
	buckets := map[string]*lineWriter{
		spec.InPath:   {},
		spec.InQuery:  {},
		spec.InHeader: {},
		spec.InCookie: {},
	}
	for _, p := range params {
		bucket, ok := buckets[p.In]
		if !ok {
			return nil, &spec.SpecError{
				Code:        spec.UnknownParameterLocation,
				Message:     fmt.Sprintf("tsgen: parameter %q has unknown location %q", p.Name, p.In),
				JSONPointer: t.at,
			}
		}
		bucket.addLine(t.field(p.Name, !p.Required, t.parameterType(p)), level+2)
	}

	w := &lineWriter{}
	paramBlock := &lineWriter{}
	for _, in := range []string{spec.InPath, spec.InQuery, spec.InHeader, spec.InCookie} {
		paramBlock.block("readonly "+in+":", buckets[in], level+1)
	}
	w.block("readonly parameters:", paramBlock, level)

	if rb := op.RequestBody; rb != nil {
		if rb.Ref != "" {
			w.addLine("readonly requestBody: "+TransformRef(t.g.Root, rb.Ref)+";", level)
		} else if rb.Value != nil {
			w.block("readonly requestBody:", t.content(rb.Value.Content, level+1), level)
		}
	}

	responses := &lineWriter{}
	for _, r := range op.Responses {
		t.response(responses, quote(r.Status), &r, level+1)
	}
	w.block("readonly responses:", responses, level)
	return w, nil
}

// parameterType is the schema type, the first media schema when the
// parameter is described through content, or the unknown placeholder.
func (t *translator) parameterType(p *spec.Parameter) string {
	if p.Schema != nil {
		return t.translate(p.Schema)
	}
	for _, m := range p.Content {
		if m.Schema != nil {
			return t.translate(m.Schema)
		}
	}
	return unknownType
}

func (t *translator) response(w *lineWriter, key string, r *spec.ResponseOrRef, level int) {
	if r.Ref != "" {
		w.addLine("readonly "+key+": "+TransformRef(t.g.Root, r.Ref)+";", level)
		return
	}
	if r.Value == nil || len(r.Value.Content) == 0 {
		w.addLine("readonly "+key+": {};", level)
		return
	}
	w.block("readonly "+key+":", t.content(r.Value.Content, level+1), level)
}

// content renders a `content` field holding one entry per media type that
// declares a schema.
func (t *translator) content(media []spec.Media, level int) *lineWriter {
	entries := &lineWriter{}
	for _, m := range media {
		if m.Schema == nil {
			continue
		}
		entries.addLine(t.field(m.MediaType, false, t.translate(m.Schema)), level+1)
	}
	w := &lineWriter{}
	w.block("readonly content:", entries, level)
	return w
}

func (t *translator) components(doc *spec.Document, level int) *lineWriter {
	c := &doc.Components
	w := &lineWriter{}

	if len(c.Schemas) > 0 {
		body := &lineWriter{}
		for _, s := range c.Schemas {
			t.at = "#/components/schemas/" + escapePointer(s.Name)
			body.addLine(t.field(s.Name, false, t.translate(s.Schema)), level+1)
		}
		w.block("readonly schemas:", body, level)
	}

	if len(c.Parameters) > 0 {
		body := &lineWriter{}
		for _, p := range c.Parameters {
			t.at = "#/components/parameters/" + escapePointer(p.Name)
			switch {
			case p.Parameter.Ref != "":
				body.addLine(t.field(p.Name, false, TransformRef(t.g.Root, p.Parameter.Ref)), level+1)
			case p.Parameter.Value != nil:
				body.addLine(t.field(p.Name, false, t.parameterType(p.Parameter.Value)), level+1)
			}
		}
		w.block("readonly parameters:", body, level)
	}

	switch {
	case c.RequestBodiesRef != "":
		w.addLine("readonly requestBodies: "+TransformRef(t.g.Root, c.RequestBodiesRef)+";", level)
	case len(c.RequestBodies) > 0:
		body := &lineWriter{}
		for _, rb := range c.RequestBodies {
			t.at = "#/components/requestBodies/" + escapePointer(rb.Name)
			switch {
			case rb.RequestBody.Ref != "":
				body.addLine(t.field(rb.Name, false, TransformRef(t.g.Root, rb.RequestBody.Ref)), level+1)
			case rb.RequestBody.Value != nil:
				body.block("readonly "+quote(rb.Name)+":", t.content(rb.RequestBody.Value.Content, level+2), level+1)
			}
		}
		w.block("readonly requestBodies:", body, level)
	}

	if len(c.Responses) > 0 {
		body := &lineWriter{}
		for _, r := range c.Responses {
			t.at = "#/components/responses/" + escapePointer(r.Name)
			t.response(body, quote(r.Name), r.Response, level+1)
		}
		w.block("readonly responses:", body, level)
	}
	return w
}

// field renders `readonly "name"?: type;`.
func (t *translator) field(name string, optional bool, typ string) string {
	opt := ""
	if optional {
		opt = "?"
	}
	return "readonly " + quote(name) + opt + ": " + typ + ";"
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
