// Package tsemitter writes the generated TypeScript declarations to disk.
package tsemitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/openapi2ts/internal/contract"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"github.com/mark3labs/openapi2ts/internal/tsgen"
)

// Options controls how the TypeScript artifact is rendered and written.
type Options struct {
	Out       string          // required; target .ts file
	Generator *tsgen.Generator // defaults to tsgen.NewGenerator()
	Handlers  bool            // append the handler registry interface
	Force     bool            // overwrite an existing file
	DryRun    bool            // don't write, only plan
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result carries the rendered text and what was (or would be) written.
type Result struct {
	Root    string
	Content string
	Digest  string // sha256 of Content, hex
	Planned []PlannedFile
}

// Emit renders doc and writes it to opts.Out. Nothing is written unless the
// whole rendering succeeds.
func Emit(ctx context.Context, doc *spec.Document, opts Options) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("tsemitter: nil Document")
	}
	if strings.TrimSpace(opts.Out) == "" {
		return nil, fmt.Errorf("tsemitter: Out is required")
	}
	g := opts.Generator
	if g == nil {
		g = tsgen.NewGenerator()
	}

	text, err := g.Emit(doc)
	if err != nil {
		return nil, err
	}
	if opts.Handlers {
		c, err := contract.Derive(doc)
		if err != nil {
			return nil, err
		}
		h, err := g.EmitHandlers(c)
		if err != nil {
			return nil, err
		}
		text += "\n" + h
	}

	sum := sha256.Sum256([]byte(text))
	res := &Result{
		Root:    g.Root,
		Content: text,
		Digest:  hex.EncodeToString(sum[:]),
		Planned: []PlannedFile{{RelPath: filepath.ToSlash(opts.Out), Size: len(text), Mode: 0o644}},
	}
	if opts.DryRun {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeFile(opts.Out, []byte(text), opts.Force); err != nil {
		return nil, err
	}
	return res, nil
}

func writeFile(out string, content []byte, force bool) error {
	abs, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("resolve out path: %w", err)
	}
	if st, err := os.Stat(abs); err == nil {
		if st.IsDir() {
			return fmt.Errorf("tsemitter: output %q is a directory", abs)
		}
		if !force {
			return fmt.Errorf("tsemitter: output file %q exists (use --force to overwrite)", abs)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// atomic write via temp file + rename
	tmp := abs + ".tmp-" + time.Now().Format("20060102150405")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", out, err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", out, err)
	}
	return nil
}
