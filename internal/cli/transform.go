package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/engine"
	"github.com/edtacey/jsonmapper/internal/ruleset"
)

// TransformOptions holds flags for the transform command.
type TransformOptions struct {
	*RootOptions
	Definitions string
	Entity      string
}

// TransformResult is the output of transform.
type TransformResult struct {
	Target  map[string]any      `json:"target"`
	Errors  []*engine.RuleError `json:"errors"`
	Applied int                 `json:"applied"`
	Skipped int                 `json:"skipped"`
}

// NewTransformCommand creates the transform command.
func NewTransformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transform <document.json>",
		Short: "Apply an entity's mapping rules to one document",
		Long: `Apply the mapping rules of an entity to a source document and print the
target document. Nothing is reconciled or stored.

Rule errors are reported alongside the target; a rule whose fallback is
"error" aborts the transformation.

Examples:
  jsonmapper transform --defs entities.yaml --entity orders order.json
  jsonmapper transform --db jsonmapper.db --entity orders order.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Definitions, "defs", "d", "", "definitions file or CUE directory")
	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "entity id (required)")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runTransform(opts *TransformOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	doc, err := readDocument(cmd, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read document", err)
	}
	rt, err := openRuntime(cmd, f, opts.RootOptions, opts.Definitions)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.proc.Transform(cmd.Context(), opts.Entity, doc)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeProcess, "transformation failed", err)
	}
	out := TransformResult{Target: res.Target, Errors: res.Errors, Applied: res.Applied, Skipped: res.Skipped}
	if out.Errors == nil {
		out.Errors = []*engine.RuleError{}
	}
	for _, re := range out.Errors {
		f.VerboseLog("rule %s: %s", re.RuleID, re.Error())
	}
	if f.Format != "json" && len(out.Errors) > 0 {
		fmt.Fprintf(f.GetErrWriter(), "%d rule error(s)\n", len(out.Errors))
	}
	return f.JSON(out)
}

// openRuntime loads the optional definitions and wires the runtime.
func openRuntime(cmd *cobra.Command, f *OutputFormatter, opts *RootOptions, defs string) (*runtime, error) {
	var bundle *ruleset.Bundle
	if defs != "" {
		b, err := loadDefinitions(f, defs)
		if err != nil {
			return nil, err
		}
		bundle = b
	}
	return newRuntime(cmd.Context(), f, opts, cmd, bundle)
}
