package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dunamismax/stylize/internal/function"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newFunctionsCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "functions [name]",
		Short: "List functions and their options",
		Example: `  stylize functions
  stylize functions paint
  stylize functions --yaml > schemas.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := function.Schemas()
			if len(args) == 1 {
				fn, ok, err := function.Parse(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("a function name is required")
				}
				schemas = []function.Schema{function.SchemaFor(fn)}
			}

			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(schemas)
			}
			return printSchemas(cmd.OutOrStdout(), schemas)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print schemas as YAML")
	return cmd
}

func printSchemas(w io.Writer, schemas []function.Schema) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tOPTION\tKIND\tDEFAULT\tRANGE")
	for _, s := range schemas {
		if s.Empty() {
			fmt.Fprintf(tw, "%s\t-\t-\t-\tNo options available\n", s.Function)
			continue
		}
		for _, p := range s.Params {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Function, p.Key, p.Kind, p.DefaultString(), paramRange(p))
		}
	}
	return tw.Flush()
}

func paramRange(p function.Param) string {
	if p.Kind == function.ParamToggle {
		return "true|false"
	}
	msg := strings.TrimPrefix(p.Feedback(), "Value must be ")
	return msg
}
