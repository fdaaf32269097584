package tsgen_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/openapi2ts/internal/contract"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"github.com/mark3labs/openapi2ts/internal/tsgen"
)

func str() *spec.Schema { return &spec.Schema{Kind: spec.KindString} }
func num() *spec.Schema { return &spec.Schema{Kind: spec.KindNumber} }
func ref(p string) *spec.Schema {
	return &spec.Schema{Kind: spec.KindReference, Ref: p}
}

func rootGen(opts ...tsgen.Option) *tsgen.Generator {
	return tsgen.NewGenerator(append([]tsgen.Option{tsgen.WithRoot("Root")}, opts...)...)
}

func TestTransformRef(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want string
	}{
		"component schema": {in: "#/components/schemas/Foo", want: `Root["components"]["schemas"]["Foo"]`},
		"escaped segments": {in: "#/paths/~1pets~1{id}/get", want: `Root["paths"]["/pets/{id}"]["get"]`},
		"tilde":            {in: "#/components/schemas/a~0b", want: `Root["components"]["schemas"]["a~b"]`},
		"quotes":           {in: `#/components/schemas/say"hi"`, want: `Root["components"]["schemas"]["say\"hi\""]`},
		"root":             {in: "#/", want: "Root"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			first := tsgen.TransformRef("Root", tc.in)
			assert.Equal(t, tc.want, first)
			assert.Equal(t, first, tsgen.TransformRef("Root", tc.in))
		})
	}

	assert.NotEqual(t,
		tsgen.TransformRef("Root", "#/components/schemas/a~1b"),
		tsgen.TransformRef("Root", "#/components/schemas/a/b"))
}

func TestTranslate_OpenMap(t *testing.T) {
	t.Parallel()

	g := rootGen()
	for name, s := range map[string]*spec.Schema{
		"bare":          {Kind: spec.KindObject},
		"empty allOf":   {Kind: spec.KindObject, AllOf: []*spec.Schema{}},
		"described":     {Kind: spec.KindObject, Description: "anything", Nullable: true},
		"required only": {Kind: spec.KindObject, Required: []string{"ghost"}},
	} {
		assert.Equal(t, "{ readonly [key: string]: any }", g.Translate(s), name)
	}
}

func TestTranslate_Array(t *testing.T) {
	t.Parallel()

	g := rootGen()
	items := []*spec.Schema{
		str(),
		num(),
		{Kind: spec.KindBoolean},
		ref("#/components/schemas/Pet"),
		{Kind: spec.KindObject},
		{Kind: spec.KindArray, Items: num()},
		{Kind: spec.KindOneOf, OneOf: []*spec.Schema{str(), num()}},
	}
	for _, x := range items {
		assert.Equal(t, "("+g.Translate(x)+")[]", g.Translate(&spec.Schema{Kind: spec.KindArray, Items: x}))
	}
	assert.Equal(t, "((number)[])[]", g.Translate(&spec.Schema{Kind: spec.KindArray, Items: &spec.Schema{Kind: spec.KindArray, Items: num()}}))
	assert.Equal(t, "(unknown)[]", g.Translate(&spec.Schema{Kind: spec.KindArray}))
}

func TestTranslate_Scalars(t *testing.T) {
	t.Parallel()

	g := rootGen()
	tests := map[string]struct {
		in   *spec.Schema
		want string
	}{
		"boolean":       {in: &spec.Schema{Kind: spec.KindBoolean}, want: "boolean"},
		"number":        {in: num(), want: "number"},
		"string":        {in: str(), want: "string"},
		"pattern":       {in: &spec.Schema{Kind: spec.KindString, Pattern: `^[a-z]+\d$`}, want: `"^[a-z]+\\d$"`},
		"enum":          {in: &spec.Schema{Kind: spec.KindEnum, Enum: []any{"a", "b"}}, want: `('a') | ('b')`},
		"enum escaping": {in: &spec.Schema{Kind: spec.KindEnum, Enum: []any{"it's", 3, nil}}, want: `('it\'s') | ('3') | (null)`},
		"empty enum":    {in: &spec.Schema{Kind: spec.KindEnum, Enum: []any{}}, want: "never"},
		"reference":     {in: ref("#/components/schemas/Pet"), want: `Root["components"]["schemas"]["Pet"]`},
		"oneOf":         {in: &spec.Schema{Kind: spec.KindOneOf, OneOf: []*spec.Schema{str(), num()}}, want: "(string) | (number)"},
		"anyOf": {
			in:   &spec.Schema{Kind: spec.KindAnyOf, AnyOf: []*spec.Schema{ref("#/components/schemas/A"), ref("#/components/schemas/B")}},
			want: `(Partial<Root["components"]["schemas"]["A"]>) & (Partial<Root["components"]["schemas"]["B"]>)`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, g.Translate(tc.in))
		})
	}
}

func TestTranslate_Object(t *testing.T) {
	t.Parallel()

	g := rootGen()
	tests := map[string]struct {
		in   *spec.Schema
		want string
	}{
		"required property": {
			in:   &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{{Name: "id", Schema: str()}}, Required: []string{"id"}},
			want: `({ readonly "id": string; })`,
		},
		"optional with extra fields": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{
				{Name: "code", Schema: &spec.Schema{Kind: spec.KindString, Pattern: "^x$", Description: "Short code"}},
			}},
			want: `({ /** Short code */ readonly "code"?: "^x$"; })`,
		},
		"nullable required": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{
				{Name: "tag", Schema: &spec.Schema{Kind: spec.KindString, Nullable: true}},
			}, Required: []string{"tag"}},
			want: `({ readonly "tag": (string) | null; })`,
		},
		"nullable optional": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{
				{Name: "tag", Schema: &spec.Schema{Kind: spec.KindOneOf, OneOf: []*spec.Schema{str(), num()}, Nullable: true}},
			}},
			want: `({ readonly "tag"?: ((string) | (number)) | null; })`,
		},
		"additional any": {
			in:   &spec.Schema{Kind: spec.KindObject, AdditionalAny: true},
			want: `({ readonly [key: string]: any; })`,
		},
		"additional schema": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{{Name: "total", Schema: num()}},
				AdditionalProperties: num()},
			want: `({ readonly "total"?: number; readonly [key: string]: number; })`,
		},
		"allOf first": {
			in: &spec.Schema{Kind: spec.KindObject,
				AllOf:      []*spec.Schema{ref("#/components/schemas/Base"), ref("#/components/schemas/Audit")},
				Properties: []spec.Property{{Name: "extra", Schema: str()}}},
			want: `(Root["components"]["schemas"]["Base"]) & (Root["components"]["schemas"]["Audit"]) & ({ readonly "extra"?: string; })`,
		},
		"allOf only": {
			in:   &spec.Schema{Kind: spec.KindObject, AllOf: []*spec.Schema{ref("#/components/schemas/Base")}},
			want: `(Root["components"]["schemas"]["Base"])`,
		},
		"multiline description": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{
				{Name: "a", Schema: &spec.Schema{Kind: spec.KindBoolean, Description: "  first line\n\n  second */ line \n"}},
			}},
			want: "({ /**\n * first line\n *\n * second *\\/ line\n */ readonly \"a\"?: boolean; })",
		},
		"padded single line description": {
			in: &spec.Schema{Kind: spec.KindObject, Properties: []spec.Property{
				{Name: "a", Schema: &spec.Schema{Kind: spec.KindBoolean, Description: "  only line \n"}},
			}},
			want: `({ /** only line */ readonly "a"?: boolean; })`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, g.Translate(tc.in))
		})
	}
}

func TestTranslate_UnknownShape(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", rootGen().Translate(&spec.Schema{Kind: spec.KindUnknown}))

	doc := &spec.Document{Components: spec.Components{Schemas: []spec.NamedSchema{
		{Name: "Odd", Schema: &spec.Schema{Kind: spec.KindUnknown}},
	}}}
	out, err := rootGen().Emit(doc)
	require.NoError(t, err)
	assert.Contains(t, out, `readonly "Odd": ;`)

	_, err = rootGen(tsgen.WithStrict(true)).Emit(doc)
	require.Error(t, err)
	assert.True(t, spec.IsCode(err, spec.UnknownSchemaShape), "got %v", err)
}

func TestEmit_MinimalDocument(t *testing.T) {
	t.Parallel()

	doc := &spec.Document{Paths: []spec.PathItem{{
		Path: "/widgets/{id}",
		Operations: []spec.Operation{{
			Method:    spec.GET,
			Responses: []spec.ResponseOrRef{{Status: "200", Value: &spec.Response{Description: "ok"}}},
		}},
	}}}

	out, err := rootGen().Emit(doc)
	require.NoError(t, err)

	want := `/* eslint-disable */
export interface Root {
  readonly paths: {
    readonly "/widgets/{id}": {
      readonly get: {
        readonly parameters: {
          readonly path: {};
          readonly query: {};
          readonly header: {};
          readonly cookie: {};
        };
        readonly responses: {
          readonly "200": {};
        };
      };
    };
  };
  readonly components: {};
}
`
	assert.Equal(t, want, out)
}

func loadYAML(t *testing.T, data string) *spec.Document {
	t.Helper()
	src, err := spec.LoadData(context.Background(), []byte(data))
	require.NoError(t, err)
	doc, err := spec.Normalize(src.Doc, spec.ExtractKeyOrder(src.Raw))
	require.NoError(t, err)
	return doc
}

func TestEmit_LoadedMinimalDocument(t *testing.T) {
	t.Parallel()

	doc := loadYAML(t, `openapi: 3.0.3
info: {title: Widgets, version: "1"}
paths:
  /widgets/{id}:
    get:
      responses:
        "200": {description: ok}
`)
	out, err := rootGen().Emit(doc)
	require.NoError(t, err)

	want := `/* eslint-disable */
export interface Root {
  readonly paths: {
    readonly "/widgets/{id}": {
      readonly get: {
        readonly parameters: {
          readonly path: {};
          readonly query: {};
          readonly header: {};
          readonly cookie: {};
        };
        readonly responses: {
          readonly "200": {};
        };
      };
    };
  };
  readonly components: {};
}
`
	assert.Equal(t, want, out)
}

func TestEmit_ComponentAliases(t *testing.T) {
	t.Parallel()

	doc := loadYAML(t, `openapi: 3.0.3
info: {title: Aliases, version: "1"}
paths:
  /health: {}
  /nodes/{id}:
    get:
      parameters:
        - $ref: '#/components/parameters/NodeIdAlias'
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Alias'}
components:
  schemas:
    Node:
      type: object
      properties:
        id: {type: string}
    Alias:
      $ref: '#/components/schemas/Node'
  parameters:
    NodeId:
      in: path
      name: id
      required: true
      schema: {type: string}
    NodeIdAlias:
      $ref: '#/components/parameters/NodeId'
`)
	out, err := tsgen.NewGenerator().Emit(doc)
	require.NoError(t, err)

	for _, want := range []string{
		`    readonly "/health": {};`,
		`            readonly "id": string;`,
		`              readonly "application/json": Spec["components"]["schemas"]["Alias"];`,
		`      readonly "Alias": Spec["components"]["schemas"]["Node"];`,
		`      readonly "NodeIdAlias": Spec["components"]["parameters"]["NodeId"];`,
		`      readonly "NodeId": string;`,
	} {
		assert.Contains(t, out, want)
	}
}

const widgetsYAML = `openapi: 3.0.3
info:
  title: Widgets
  version: "1.0.0"
paths:
  /widgets/{id}:
    parameters:
      - $ref: '#/components/parameters/WidgetId'
    get:
      parameters:
        - in: header
          name: X-Trace
          schema:
            type: string
        - in: query
          name: filter
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Filter'
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Widget'
            text/plain: {}
        "404":
          $ref: '#/components/responses/NotFound'
    put:
      requestBody:
        $ref: '#/components/requestBodies/WidgetBody'
      responses:
        "204":
          description: updated
components:
  schemas:
    Widget:
      type: object
      required: [id]
      properties:
        id:
          type: string
        tags:
          type: array
          items:
            type: string
    Filter:
      type: object
      additionalProperties: true
  parameters:
    WidgetId:
      in: path
      name: id
      required: true
      schema:
        type: string
  requestBodies:
    WidgetBody:
      required: true
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Widget'
  responses:
    NotFound:
      description: missing
`

func loadWidgets(t *testing.T) *spec.Document {
	t.Helper()
	src, err := spec.LoadData(context.Background(), []byte(widgetsYAML))
	require.NoError(t, err)
	doc, err := spec.Normalize(src.Doc, spec.ExtractKeyOrder(src.Raw))
	require.NoError(t, err)
	return doc
}

func TestEmit_FullDocument(t *testing.T) {
	t.Parallel()

	out, err := tsgen.NewGenerator().Emit(loadWidgets(t))
	require.NoError(t, err)

	for _, want := range []string{
		"export interface Spec {",
		`          readonly path: {` + "\n" + `            readonly "id": string;`,
		`            readonly "X-Trace"?: string;`,
		`            readonly "filter"?: Spec["components"]["schemas"]["Filter"];`,
		`              readonly "application/json": Spec["components"]["schemas"]["Widget"];`,
		`          readonly "404": Spec["components"]["responses"]["NotFound"];`,
		`        readonly requestBody: Spec["components"]["requestBodies"]["WidgetBody"];`,
		`          readonly "204": {};`,
		`      readonly "Widget": ({ readonly "id": string; readonly "tags"?: (string)[]; });`,
		`      readonly "Filter": ({ readonly [key: string]: any; });`,
		`      readonly "WidgetId": string;`,
		`    readonly requestBodies: {` + "\n" + `      readonly "WidgetBody": {` + "\n" + `        readonly content: {`,
		`      readonly "NotFound": {};`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "text/plain")
	assert.Less(t, strings.Index(out, "readonly get:"), strings.Index(out, "readonly put:"))
	assert.True(t, strings.HasPrefix(out, "/* eslint-disable */\n"))
}

func TestEmit_Deterministic(t *testing.T) {
	t.Parallel()

	doc := loadWidgets(t)
	first, err := tsgen.NewGenerator().Emit(doc)
	require.NoError(t, err)
	second, err := tsgen.NewGenerator().Emit(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEmit_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		doc  *spec.Document
		code spec.ErrorCode
	}{
		"unknown location": {
			doc: &spec.Document{Paths: []spec.PathItem{{Path: "/a", Operations: []spec.Operation{{
				Method:     spec.POST,
				Parameters: []*spec.ParameterOrRef{{Value: &spec.Parameter{Name: "x", In: "body"}}},
			}}}}},
			code: spec.UnknownParameterLocation,
		},
		"unresolved parameter": {
			doc: &spec.Document{Paths: []spec.PathItem{{Path: "/a", Operations: []spec.Operation{{
				Method:     spec.GET,
				Parameters: []*spec.ParameterOrRef{{Ref: "#/components/parameters/missing"}},
			}}}}},
			code: spec.UnresolvedReference,
		},
		"parameter cycle": {
			doc: &spec.Document{
				Paths: []spec.PathItem{{Path: "/a", Operations: []spec.Operation{{
					Method:     spec.GET,
					Parameters: []*spec.ParameterOrRef{{Ref: "#/components/parameters/loop"}},
				}}}},
				Components: spec.Components{Parameters: []spec.NamedParameter{
					{Name: "loop", Parameter: &spec.ParameterOrRef{Ref: "#/components/parameters/loop"}},
				}},
			},
			code: spec.CycleOrDepthExceeded,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out, err := rootGen().Emit(tc.doc)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, spec.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestEmit_ParameterPlaceholderAndRequestBodiesRef(t *testing.T) {
	t.Parallel()

	doc := &spec.Document{
		Paths: []spec.PathItem{{Path: "/a", Operations: []spec.Operation{{
			Method:     spec.DELETE,
			Parameters: []*spec.ParameterOrRef{{Value: &spec.Parameter{Name: "session", In: spec.InCookie, Required: true}}},
		}}}},
		Components: spec.Components{RequestBodiesRef: "#/components/x-shared"},
	}
	out, err := rootGen().Emit(doc)
	require.NoError(t, err)
	assert.Contains(t, out, `readonly "session": unknown;`)
	assert.Contains(t, out, "readonly responses: {};")
	assert.Contains(t, out, `readonly requestBodies: Root["components"]["x-shared"];`)
}

func TestEmitHandlers(t *testing.T) {
	t.Parallel()

	c, err := contract.Derive(loadWidgets(t))
	require.NoError(t, err)

	out, err := tsgen.NewGenerator().EmitHandlers(c)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "export interface Handlers<Context> {\n"))
	assert.Contains(t, out, `  readonly "/widgets/{id}": {`)
	assert.Contains(t, out, `    readonly get: (ctx: Context, parameters: Spec["paths"]["/widgets/{id}"]["get"]["parameters"], requestBody: {}) => Promise<`+
		`({ readonly httpCode: "200"; readonly contentType: "application/json"; readonly content: Spec["components"]["schemas"]["Widget"] }) | `+
		`({ readonly httpCode: "200"; readonly contentType: "text/plain"; readonly content: unknown }) | `+
		`({ readonly httpCode: "404" })>;`)
	assert.Contains(t, out, `requestBody: ({ readonly contentType: "application/json"; readonly content: Spec["components"]["schemas"]["Widget"] })`)

	empty, err := tsgen.NewGenerator().EmitHandlers(&contract.Contract{})
	require.NoError(t, err)
	assert.Equal(t, "export interface Handlers<Context> {}\n", empty)
}
