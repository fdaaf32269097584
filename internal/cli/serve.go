package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/openapi2ts/internal/adapter"
	"github.com/mark3labs/openapi2ts/internal/contract"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

// ServeConfig captures the options for the serve command.
type ServeConfig struct {
	Input          string
	Addr           string
	RateLimit      float64
	Burst          int
	SkipValidation bool
	Verbose        bool
}

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a stub implementation of an OpenAPI 3 document",
		Long: "Serve every operation of the document, validating parameters and request bodies " +
			"and answering with the first declared response and its example when present.",
		Example: strings.TrimSpace(`  openapi2ts serve --input openapi.yaml --addr :8080
  openapi2ts serve -i openapi.yaml --rate-limit 5 --burst 10`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			input, err := flags.GetString("input")
			if err != nil {
				return err
			}
			addr, err := flags.GetString("addr")
			if err != nil {
				return err
			}
			rps, err := flags.GetFloat64("rate-limit")
			if err != nil {
				return err
			}
			burst, err := flags.GetInt("burst")
			if err != nil {
				return err
			}
			skip, err := flags.GetBool("skip-validation")
			if err != nil {
				return err
			}
			verbose, err := flags.GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &ServeConfig{
				Input:          strings.TrimSpace(input),
				Addr:           strings.TrimSpace(addr),
				RateLimit:      rps,
				Burst:          burst,
				SkipValidation: skip,
				Verbose:        verbose,
			}
			if cfg.Input == "" {
				return newUsageError("serve: --input is required")
			}
			if cfg.RateLimit < 0 || cfg.Burst < 0 {
				return newUsageError("serve: --rate-limit and --burst must not be negative")
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringP("input", "i", "", "Path or URL to the OpenAPI 3 document")
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Float64("rate-limit", 0, "Requests per second per client IP (0 disables)")
	cmd.Flags().Int("burst", 1, "Rate limiter burst size")
	cmd.Flags().Bool("skip-validation", false, "Skip the advisory OpenAPI document validation (findings are logged as warnings)")

	return cmd
}

func runServe(ctx context.Context, cfg *ServeConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(os.Stderr, cfg.Verbose)
	doc, err := loadDocument(ctx, cfg.Input, cfg.SkipValidation, logger)
	if err != nil {
		return err
	}
	c, err := contract.Derive(doc)
	if err != nil {
		return err
	}
	rt, err := adapter.New(doc, stubHandlers(c),
		adapter.WithLogger(logger),
		adapter.WithRateLimit(cfg.RateLimit, cfg.Burst),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Serving %d operations of %q on %s\n", len(c.Operations), doc.Title, cfg.Addr)
	return rt.ListenAndServe(ctx, cfg.Addr)
}

// stubHandlers answers each operation with its first declared response.
func stubHandlers(c *contract.Contract) adapter.Handlers {
	handlers := adapter.Handlers{}
	for i := range c.Operations {
		op := &c.Operations[i]
		if handlers[op.Path] == nil {
			handlers[op.Path] = map[spec.HttpMethod]adapter.Handler{}
		}
		resp := stubResponse(op)
		handlers[op.Path][op.Method] = func(context.Context, adapter.Parameters, *adapter.RequestBody) (*adapter.Response, error) {
			return resp, nil
		}
	}
	return handlers
}

func stubResponse(op *contract.Operation) *adapter.Response {
	if len(op.Responses) == 0 {
		return &adapter.Response{HTTPCode: 501}
	}
	v := op.Responses[0]
	resp := &adapter.Response{HTTPCode: statusOf(v.HTTPCode)}
	if len(v.Media) == 0 {
		return resp
	}
	m := v.Media[0]
	for _, candidate := range v.Media {
		if candidate.Example != nil {
			m = candidate
			break
		}
	}
	resp.ContentType = m.ContentType
	resp.Content = m.Example
	if resp.Content == nil {
		resp.Content = placeholder(m)
	}
	return resp
}

// statusOf maps a declared status key to a concrete code: 4XX becomes 400
// and default becomes 200.
func statusOf(key string) int {
	if code, err := strconv.Atoi(key); err == nil {
		return code
	}
	if len(key) == 3 && strings.HasSuffix(strings.ToUpper(key), "XX") && key[0] >= '1' && key[0] <= '5' {
		return int(key[0]-'0') * 100
	}
	return 200
}

func placeholder(m contract.Media) any {
	if !strings.Contains(strings.ToLower(m.ContentType), "json") {
		return ""
	}
	s := m.Schema
	kind := spec.KindUnknown
	if s != nil {
		kind = s.Kind
		if kind == spec.KindReference && s.Source != nil {
			kind = spec.Classify(s.Source)
		}
	}
	switch kind {
	case spec.KindArray:
		return []any{}
	case spec.KindString:
		return ""
	case spec.KindNumber:
		return 0
	case spec.KindBoolean:
		return false
	default:
		return map[string]any{}
	}
}
