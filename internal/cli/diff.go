package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/diff"
	"github.com/edtacey/jsonmapper/internal/document"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "List field-level changes between two documents",
		Long: `Compare two JSON documents and list the changed fields as dotted paths.
Nested objects are walked; arrays and scalars compare as whole values.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDiff(opts *RootOptions, oldPath, newPath string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	before, err := readDocument(cmd, oldPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read "+oldPath, err)
	}
	after, err := readDocument(cmd, newPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read "+newPath, err)
	}

	changes := diff.Diff(before, after)
	if f.Format == "json" {
		return f.Success(map[string]any{"changes": changes})
	}

	if len(changes) == 0 {
		fmt.Fprintln(f.Writer, "no changes")
		return nil
	}
	for _, c := range changes {
		switch c.Operation {
		case diff.OpAdd:
			fmt.Fprintf(f.Writer, "+ %s: %s\n", c.Field, document.CanonicalString(c.NewValue))
		case diff.OpDelete:
			fmt.Fprintf(f.Writer, "- %s: %s\n", c.Field, document.CanonicalString(c.OldValue))
		default:
			fmt.Fprintf(f.Writer, "~ %s: %s -> %s\n", c.Field,
				document.CanonicalString(c.OldValue), document.CanonicalString(c.NewValue))
		}
	}
	return nil
}
