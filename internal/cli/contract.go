package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/openapi2ts/internal/contract"
)

// ContractConfig captures the options for the contract command.
type ContractConfig struct {
	Input          string
	Format         string
	SkipValidation bool
	Verbose        bool
}

var contractRunner = runContract

func newContractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Print the handler contract derived from an OpenAPI 3 document",
		Long: "Print, per operation, the parameter buckets, the accepted request bodies and the " +
			"response variants a handler must honour, with all references resolved.",
		Example: strings.TrimSpace(`  openapi2ts contract --input openapi.yaml
  openapi2ts contract -i openapi.yaml --format json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			input, err := flags.GetString("input")
			if err != nil {
				return err
			}
			format, err := flags.GetString("format")
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
			cfg := &ContractConfig{
				Input:          strings.TrimSpace(input),
				Format:         strings.ToLower(strings.TrimSpace(format)),
				SkipValidation: skip,
				Verbose:        verbose,
			}
			if cfg.Input == "" {
				return newUsageError("contract: --input is required")
			}
			if cfg.Format != "yaml" && cfg.Format != "json" {
				return newUsageError(fmt.Sprintf("contract: unsupported --format %q (allowed: yaml, json)", cfg.Format))
			}
			return contractRunner(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("input", "i", "", "Path or URL to the OpenAPI 3 document")
	cmd.Flags().String("format", "yaml", "Output format (yaml|json)")
	cmd.Flags().Bool("skip-validation", false, "Skip the advisory OpenAPI document validation (findings are logged as warnings)")

	return cmd
}

func runContract(ctx context.Context, cfg *ContractConfig, w io.Writer) error {
	logger := newLogger(os.Stderr, cfg.Verbose)
	doc, err := loadDocument(ctx, cfg.Input, cfg.SkipValidation, logger)
	if err != nil {
		return err
	}
	c, err := contract.Derive(doc)
	if err != nil {
		return err
	}

	if cfg.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}
	return enc.Close()
}
