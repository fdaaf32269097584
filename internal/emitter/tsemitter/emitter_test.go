package tsemitter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/openapi2ts/internal/spec"
	"github.com/mark3labs/openapi2ts/internal/tsgen"
)

const sampleYAML = `openapi: 3.0.3
info:
  title: Sample API
  version: "1.0.0"
paths:
  /hello:
    get:
      parameters:
        - in: query
          name: name
          schema:
            type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Hello'
components:
  schemas:
    Hello:
      type: object
      description: Greeting
      properties:
        message:
          type: string
`

func minimalDoc(t *testing.T) *spec.Document {
	t.Helper()
	src, err := spec.LoadData(context.Background(), []byte(sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, err := spec.Normalize(src.Doc, spec.ExtractKeyOrder(src.Raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return doc
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "api.ts")

	res, err := Emit(context.Background(), minimalDoc(t), Options{Out: out, DryRun: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if res.Root != tsgen.DefaultRoot {
		t.Fatalf("root = %q", res.Root)
	}
	if len(res.Planned) != 1 || res.Planned[0].RelPath != filepath.ToSlash(out) || res.Planned[0].Size != len(res.Content) {
		t.Fatalf("unexpected plan: %+v", res.Planned)
	}
	if !strings.HasPrefix(res.Content, "/* eslint-disable */\n") {
		t.Fatalf("missing directive: %q", res.Content)
	}
	if len(res.Digest) != 64 {
		t.Fatalf("digest = %q", res.Digest)
	}
	// Dry-run should not have written files
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "gen", "api.ts")
	g := tsgen.NewGenerator(tsgen.WithRoot("Sample"))

	res, err := Emit(context.Background(), minimalDoc(t), Options{Out: out, Generator: g, Handlers: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != res.Content {
		t.Fatalf("file differs from result content")
	}
	for _, want := range []string{
		"export interface Sample {",
		`readonly "message"?: string;`,
		`Sample["components"]["schemas"]["Hello"]`,
		"export interface Handlers<Context> {",
	} {
		if !strings.Contains(res.Content, want) {
			t.Fatalf("output missing %q:\n%s", want, res.Content)
		}
	}
	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(entries))
	}
}

func TestEmit_NoForce_ExistingFile(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "api.ts")
	if err := os.WriteFile(out, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}
	if _, err := Emit(context.Background(), minimalDoc(t), Options{Out: out}); err == nil {
		t.Fatalf("expected error on existing file without force")
	}
	if _, err := Emit(context.Background(), minimalDoc(t), Options{Out: out, Force: true}); err != nil {
		t.Fatalf("force: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) == "x" {
		t.Fatalf("file not overwritten")
	}
}

func TestEmit_FailureWritesNothing(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "api.ts")
	doc := &spec.Document{Paths: []spec.PathItem{{
		Path: "/x",
		Operations: []spec.Operation{{
			Method:     spec.GET,
			Parameters: []*spec.ParameterOrRef{{Value: &spec.Parameter{Name: "a", In: "body"}}},
		}},
	}}}
	if _, err := Emit(context.Background(), doc, Options{Out: out}); !spec.IsCode(err, spec.UnknownParameterLocation) {
		t.Fatalf("expected UnknownParameterLocation, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err = %v", err)
	}
}

func TestEmit_RequiresOut(t *testing.T) {
	t.Parallel()
	if _, err := Emit(context.Background(), minimalDoc(t), Options{}); err == nil {
		t.Fatalf("expected error without Out")
	}
}
