package cli

import (
	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/schema"
)

// InferOptions holds flags for the infer command.
type InferOptions struct {
	*RootOptions
	Each bool // treat a top-level array as a list of samples
}

// NewInferCommand creates the infer command.
func NewInferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "infer <sample.json>...",
		Short: "Infer a JSON Schema from sample documents",
		Long: `Infer a JSON Schema from one or more sample documents.

The schemas of all samples are merged: properties are unioned, every
property seen in any sample is required, and conflicting types become
unions. Use "-" to read stdin.

Examples:
  jsonmapper infer order.json
  jsonmapper infer --each orders.json
  cat order.json | jsonmapper infer -`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Each, "each", false, "treat a top-level array as a list of samples")

	return cmd
}

func runInfer(opts *InferOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var samples []any
	for _, path := range paths {
		if opts.Each {
			docs, _, err := readDocuments(cmd, path)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeInput, "failed to read "+path, err)
			}
			for _, d := range docs {
				samples = append(samples, d)
			}
			continue
		}
		doc, err := readDocument(cmd, path)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInput, "failed to read "+path, err)
		}
		samples = append(samples, doc)
	}

	f.VerboseLog("Inferring schema from %d sample(s)", len(samples))
	return f.JSON(schema.Document{Schema: schema.InferAll(samples...)})
}
