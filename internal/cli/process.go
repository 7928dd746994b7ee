package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/pipeline"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	Definitions string
	Entity      string
	Concurrency int
}

// ProcessResult is the outcome of one document.
type ProcessResult struct {
	Index   int               `json:"index"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ProcessSummary is the output of process.
type ProcessSummary struct {
	Results   []ProcessResult `json:"results"`
	Processed int             `json:"processed"`
	Failed    int             `json:"failed"`
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process <documents.json>",
		Short: "Transform, reconcile and store documents",
		Long: `Run documents through the full pipeline: apply the entity's rules,
reconcile the result against the stored record, save it and publish a change
event. The input is one JSON object or an array of objects.

Without a database, definitions are required, records are kept in memory for
the duration of the command and events are logged. With a database, events
are appended to its outbox.

Exit codes:
  0 - All documents processed
  1 - One or more documents rejected (conflict, aborted rule)
  2 - Command error (unreadable input, database errors)

Examples:
  jsonmapper process --defs entities.yaml --entity orders orders.json
  jsonmapper process --db jsonmapper.db --entity orders --concurrency 8 orders.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Definitions, "defs", "d", "", "definitions file or CUE directory")
	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "entity id (required)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "parallel documents (default: batch.concurrency from config)")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runProcess(opts *ProcessOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	docs, _, err := readDocuments(cmd, path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to read documents", err)
	}
	rt, err := openRuntime(cmd, f, opts.RootOptions, opts.Definitions)
	if err != nil {
		return err
	}
	defer rt.Close()

	limit := opts.Concurrency
	if limit <= 0 {
		limit = rt.cfg.Batch.Concurrency
	}
	f.VerboseLog("Processing %d document(s) as %s (concurrency %d)", len(docs), opts.Entity, limit)

	batch, err := rt.proc.ProcessBatch(cmd.Context(), opts.Entity, docs, limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeProcess, "failed to process documents", err)
	}
	summary := ProcessSummary{Results: make([]ProcessResult, len(batch))}
	for i, br := range batch {
		pr := ProcessResult{Index: br.Index, Outcome: br.Outcome}
		if br.Err != nil {
			pr.Error = br.Err.Error()
			summary.Failed++
		} else {
			summary.Processed++
		}
		summary.Results[i] = pr
	}

	if f.Format == "json" {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		outputProcessText(f, summary)
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) rejected", summary.Failed))
	}
	return nil
}

func outputProcessText(f *OutputFormatter, summary ProcessSummary) {
	for _, r := range summary.Results {
		if r.Error != "" {
			fmt.Fprintf(f.Writer, "✗ [%d] %s\n", r.Index, r.Error)
			continue
		}
		o := r.Outcome
		fmt.Fprintf(f.Writer, "✓ [%d] %s %s (%d change(s), %d rule error(s))\n",
			r.Index, o.Operation, o.Key, len(o.Changes), len(o.RuleErrors))
	}
	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Summary: %d processed, %d failed\n", summary.Processed, summary.Failed)
}
