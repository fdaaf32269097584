// Package tsgen renders a normalized OpenAPI document as a single TypeScript
// interface whose shape mirrors the document, plus an optional handler
// registry interface derived from the same model.
package tsgen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/openapi2ts/internal/spec"
)

const (
	// DefaultRoot names the generated top-level interface.
	DefaultRoot = "Spec"

	openMap     = "{ readonly [key: string]: any }"
	unknownType = "unknown"
)

// Generator translates schema nodes and emits documents. A Generator holds no
// per-run state and may be reused.
type Generator struct {
	// Root is the name of the emitted interface and of every reference path.
	Root string
	// Strict turns untranslatable schema shapes into UnknownSchemaShape errors
	// instead of empty type fragments.
	Strict bool
	Logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

func WithRoot(name string) Option { return func(g *Generator) { g.Root = name } }
func WithStrict(strict bool) Option { return func(g *Generator) { g.Strict = strict } }
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.Logger = l } }

// NewGenerator returns a Generator rooted at DefaultRoot unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{Root: DefaultRoot}
	for _, opt := range opts {
		opt(g)
	}
	if strings.TrimSpace(g.Root) == "" {
		g.Root = DefaultRoot
	}
	if g.Logger == nil {
		g.Logger = slog.New(slog.DiscardHandler)
	}
	return g
}

// Translate returns the TypeScript type expression for s. Unknown shapes
// yield "" (and a warning); use Emit for strict handling.
func (g *Generator) Translate(s *spec.Schema) string {
	t := g.newTranslator()
	return t.translate(s)
}

// translator carries the state of one emission: where it is in the document
// and the first strict-mode failure.
type translator struct {
	g        *Generator
	at       string
	unknowns int
	err      error
}

func (g *Generator) newTranslator() *translator {
	return &translator{g: g}
}

func (t *translator) translate(s *spec.Schema) string {
	if s == nil {
		return unknownType
	}
	switch s.Kind {
	case spec.KindReference:
		return TransformRef(t.g.Root, s.Ref)
	case spec.KindArray:
		return arrayOf(t.translate(s.Items))
	case spec.KindBoolean:
		return "boolean"
	case spec.KindNumber:
		return "number"
	case spec.KindString:
		if s.Pattern != "" {
			return quote(s.Pattern)
		}
		return "string"
	case spec.KindEnum:
		vals := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			vals = append(vals, enumLiteral(v))
		}
		return unionOf(vals)
	case spec.KindOneOf:
		return unionOf(t.translateAll(s.OneOf, false))
	case spec.KindAnyOf:
		return intersectionOf(t.translateAll(s.AnyOf, true))
	case spec.KindObject:
		return t.object(s)
	default:
		t.unknown(s)
		return ""
	}
}

func (t *translator) translateAll(list []*spec.Schema, partial bool) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		typ := t.translate(m)
		if partial {
			typ = "Partial<" + typ + ">"
		}
		out = append(out, typ)
	}
	return out
}

func (t *translator) object(s *spec.Schema) string {
	if len(s.Properties) == 0 && len(s.AllOf) == 0 && !s.HasAdditionalProperties() {
		return openMap
	}
	var b strings.Builder
	for _, p := range s.Properties {
		if p.Schema != nil && p.Schema.Description != "" {
			b.WriteString(docComment(p.Schema.Description))
			b.WriteByte(' ')
		}
		b.WriteString("readonly ")
		b.WriteString(quote(p.Name))
		if !s.IsRequired(p.Name) {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		typ := t.translate(p.Schema)
		if p.Schema != nil && p.Schema.Nullable {
			typ = "(" + typ + ") | null"
		}
		b.WriteString(typ)
		b.WriteString("; ")
	}
	if s.HasAdditionalProperties() {
		typ := "any"
		if s.AdditionalProperties != nil {
			if at := t.translate(s.AdditionalProperties); at != "" {
				typ = at
			}
		}
		b.WriteString("readonly [key: string]: " + typ + "; ")
	}

	parts := t.translateAll(s.AllOf, false)
	if b.Len() > 0 {
		parts = append(parts, "{ "+b.String()+"}")
	}
	return intersectionOf(parts)
}

func (t *translator) unknown(s *spec.Schema) {
	t.unknowns++
	t.g.Logger.Warn("untranslatable schema shape", "at", t.at, "kind", s.Kind.String())
	if t.g.Strict && t.err == nil {
		t.err = &spec.SpecError{
			Code:        spec.UnknownSchemaShape,
			Message:     fmt.Sprintf("tsgen: cannot translate schema of kind %s at %s", s.Kind, t.at),
			JSONPointer: t.at,
		}
	}
}

func arrayOf(typ string) string { return "(" + typ + ")[]" }

func unionOf(types []string) string {
	if len(types) == 0 {
		return "never"
	}
	return "(" + strings.Join(types, ") | (") + ")"
}

func intersectionOf(types []string) string {
	if len(types) == 0 {
		return unknownType
	}
	return "(" + strings.Join(types, ") & (") + ")"
}

func enumLiteral(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return quoteSingle(s)
	}
	return quoteSingle(fmt.Sprint(v))
}

// docComment renders a description as a block comment. A single line stays
// inline; longer descriptions keep their line breaks as " * " lines.
func docComment(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "*/", `*\/`)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 1 {
		return "/** " + text + " */"
	}
	var b strings.Builder
	b.WriteString("/**\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			b.WriteString(" *\n")
			continue
		}
		b.WriteString(" * " + line + "\n")
	}
	b.WriteString(" */")
	return b.String()
}
