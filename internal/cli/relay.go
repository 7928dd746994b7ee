package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/store"
)

// RelayOptions holds flags for the relay command.
type RelayOptions struct {
	*RootOptions
	Limit int
}

// RelayResult summarizes a relay run.
type RelayResult struct {
	Relayed int `json:"relayed"`
}

// NewRelayCommand creates the relay command.
func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Drain pending change events from the database outbox",
		Long: `Write every unpublished change event in the database outbox to stdout as
one CloudEvents JSON object per line, in the order the events were recorded,
and mark each one published once written. The summary goes to stderr.

Example:
  jsonmapper relay --db jsonmapper.db > events.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "events read from the outbox per round")

	return cmd
}

func runRelay(opts *RelayOptions, cmd *cobra.Command) error {
	// Events own stdout; diagnostics and the summary go to stderr.
	f := newFormatter(opts.RootOptions, cmd)
	f.Writer = cmd.ErrOrStderr()

	cfg, err := loadConfig(f, opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg.Database == "" {
		return f.Fail(ExitCommandError, ErrCodeConfig, "relay requires a database (--db or config)", nil)
	}
	if opts.Limit <= 0 {
		return f.Fail(ExitCommandError, ErrCodeInput, "limit must be positive", nil)
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	pub := event.NewLinePublisher(cmd.OutOrStdout())
	total := 0
	for {
		n, err := st.Relay(cmd.Context(), pub, opts.Limit)
		total += n
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeStore, fmt.Sprintf("relay stopped after %d event(s)", total), err)
		}
		if n < opts.Limit {
			break
		}
	}

	if f.Format == "json" {
		return f.Success(RelayResult{Relayed: total})
	}
	fmt.Fprintf(f.Writer, "✓ Relayed %d event(s)\n", total)
	return nil
}
