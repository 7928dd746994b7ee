package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Definitions string
	Listen      string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mapping API over HTTP",
		Long: `Start the HTTP API: schema inference, rule validation, transformation,
reconciliation, diffing and entity document processing.

Definitions given with --defs are imported into the database before
serving, or served from memory when no database is configured.

Example:
  jsonmapper serve --db jsonmapper.db --listen :8080
  jsonmapper serve --defs entities.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Definitions, "defs", "d", "", "definitions file or CUE directory")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default: listen from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	rt, err := openRuntime(cmd, f, opts.RootOptions, opts.Definitions)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := opts.Listen
	if addr == "" {
		addr = rt.cfg.Listen
	}

	serverOpts := []api.Option{
		api.WithBatchLimit(rt.cfg.Batch.Concurrency),
		api.WithLogger(rt.logger),
	}
	if rt.store != nil {
		serverOpts = append(serverOpts, api.WithPinger(rt.store))
	}
	srv := api.New(rt.proc, serverOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("server starting", "addr", addr, "database", rt.cfg.Database != "")
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", addr)

	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return f.Fail(ExitFailure, ErrCodeServe, "server error", err)
	}
	rt.logger.Info("server stopped gracefully")
	return nil
}
