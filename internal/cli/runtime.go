package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edtacey/jsonmapper/internal/config"
	"github.com/edtacey/jsonmapper/internal/engine"
	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/fetch"
	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/sandbox"
	"github.com/edtacey/jsonmapper/internal/store"
)

// runtime is the wired pipeline shared by transform, process and serve.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store // nil when records are kept in memory
	proc   *pipeline.Processor
}

// Close releases the database, if any.
func (r *runtime) Close() {
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *OutputFormatter, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// setupLogging installs a text handler on stderr as the default logger.
// --verbose lowers the configured level to debug.
func setupLogging(cfg *config.Config, opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newRuntime wires config, logging, the function sandbox, the sub-child
// fetcher and storage into a pipeline.
//
// With a database the store serves entities, value mappings and records,
// and events go to its outbox; bundle, when given, is imported first.
// Without a database bundle is required and records live in memory.
func newRuntime(ctx context.Context, f *OutputFormatter, opts *RootOptions, cmd *cobra.Command, bundle *ruleset.Bundle) (*runtime, error) {
	cfg, err := loadConfig(f, opts)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: setupLogging(cfg, opts, cmd)}

	evaluator := sandbox.New(
		sandbox.WithTimeout(cfg.Function.Timeout),
		sandbox.WithLogger(rt.logger),
	)
	fetcher := fetch.NewClient(fetch.Config{
		Timeout:    cfg.Lookup.Timeout,
		MaxRetries: cfg.Lookup.Retries,
		RateLimit:  cfg.Lookup.RateLimit,
		RateBurst:  cfg.Lookup.Burst,
	}, rt.logger)

	var (
		catalog   pipeline.Catalog
		records   pipeline.Records
		publisher event.Publisher
	)
	if cfg.Database != "" {
		rt.logger.Debug("opening database", "dsn", cfg.Database)
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		rt.store = st
		if bundle != nil {
			if err := st.Import(ctx, bundle); err != nil {
				rt.Close()
				return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to import definitions", err)
			}
		}
		catalog, records, publisher = st, st, st
	} else {
		if bundle == nil {
			return nil, f.Fail(ExitCommandError, ErrCodeConfig, "definitions are required without a database", nil)
		}
		catalog = pipeline.NewBundleCatalog(bundle)
		records = pipeline.NewMemoryRecords()
		publisher = event.LogPublisher{Logger: rt.logger}
	}

	rt.proc = pipeline.New(catalog, records,
		pipeline.WithPublisher(publisher),
		pipeline.WithEventSource(cfg.Event.Source),
		pipeline.WithLogger(rt.logger),
		pipeline.WithEngineOptions(
			engine.WithFunctions(evaluator),
			engine.WithFetcher(fetcher),
			engine.WithFetchTimeout(cfg.Lookup.Timeout),
		),
	)
	return rt, nil
}
