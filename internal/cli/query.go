package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crmock/crmock/internal/engine"
	"github.com/crmock/crmock/internal/fetch"
	"github.com/crmock/crmock/internal/metadata"
	"github.com/crmock/crmock/internal/record"
)

// QueryResult holds query results for JSON output.
type QueryResult struct {
	Count   int              `json:"count"`
	Records []map[string]any `json:"records"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var metadataPath, dataPath string

	cmd := &cobra.Command{
		Use:   "query <query.xml>",
		Short: "Execute a markup query against a seeded in-memory engine",
		Long: `Seed a fresh engine instance from YAML metadata and data documents,
translate the markup query, execute it and print the matching records.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, args[0], metadataPath, dataPath)
		},
	}

	cmd.Flags().StringVar(&metadataPath, "metadata", "", "YAML metadata document")
	cmd.Flags().StringVar(&dataPath, "data", "", "YAML seed data document")
	return cmd
}

func runQuery(opts *RootOptions, cmd *cobra.Command, queryPath, metadataPath, dataPath string) error {
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

	eng := engine.New(meta)
	if dataPath != "" {
		if err := LoadData(dataPath, eng); err != nil {
			_ = formatter.Error("seed", err.Error())
			return err
		}
	}

	markup, err := os.ReadFile(queryPath)
	if err != nil {
		_ = formatter.Error("load", err.Error())
		return WrapExitError(ExitCommandError, "read query document", err)
	}

	plan, err := fetch.Translate(markup, meta)
	if err != nil {
		_ = formatter.Error("translate", err.Error())
		return WrapExitError(ExitFailure, "query translation failed", err)
	}
	formatter.VerboseLog("plan:\n%s", plan.Describe())

	results, err := eng.RetrieveMultiple(plan)
	if err != nil {
		_ = formatter.Error("execute", err.Error())
		return WrapExitError(ExitFailure, "query execution failed", err)
	}

	if formatter.Format == "json" {
		out := QueryResult{Count: len(results), Records: make([]map[string]any, 0, len(results))}
		for _, e := range results {
			out.Records = append(out.Records, record.ToJSONObject(e))
		}
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "%d record(s)\n", len(results))
	for i, e := range results {
		fmt.Fprintf(formatter.Writer, "%d) %s %s\n", i+1, e.Type, e.ID)
		for _, name := range e.Names() {
			v, _ := e.Get(name)
			fmt.Fprintf(formatter.Writer, "   %s: %s\n", name, formatValue(v))
		}
	}
	return nil
}

// formatValue renders one attribute value for text output.
func formatValue(v record.Value) string {
	switch val := record.ToJSONValue(v).(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, val[k]))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}
