package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crmock/crmock/internal/fetch"
	"github.com/crmock/crmock/internal/metadata"
)

// ValidationResult holds validation results for JSON output.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var metadataPath string

	cmd := &cobra.Command{
		Use:   "validate <query.xml>",
		Short: "Translate and validate a markup query without executing it",
		Long: `Translate a markup query document into a query plan and run the
plan validation rules: operator spellings and arity, alias uniqueness,
existence-join restrictions, aggregation shape and paging bounds.

With --metadata, link-entity elements may omit from/to attributes and
resolve them from registered relationships.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], metadataPath)
		},
	}

	cmd.Flags().StringVar(&metadataPath, "metadata", "", "YAML metadata document for relationship resolution")
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, queryPath, metadataPath string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var meta metadata.Provider
	if metadataPath != "" {
		reg, err := LoadMetadata(metadataPath)
		if err != nil {
			_ = formatter.Error("load", err.Error())
			return err
		}
		meta = reg
	}

	markup, err := os.ReadFile(queryPath)
	if err != nil {
		_ = formatter.Error("load", err.Error())
		return WrapExitError(ExitCommandError, "read query document", err)
	}

	plan, err := fetch.Translate(markup, meta)
	if err != nil {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Error: err.Error()})
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %v\n", err)
		}
		return WrapExitError(ExitFailure, "query is invalid", err)
	}

	if formatter.Format == "json" {
		result := ValidationResult{Valid: true}
		if opts.Verbose {
			result.Plan = plan.Describe()
		}
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ query valid")
	if opts.Verbose {
		fmt.Fprint(formatter.Writer, plan.Describe())
	}
	return nil
}
