// Package pipeline runs inbound documents through the full processing path:
// transform, reconcile against stored records, diff, persist and publish.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edtacey/jsonmapper/internal/diff"
	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/engine"
	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// Catalog supplies entity definitions and shared value mappings.
type Catalog interface {
	Entity(ctx context.Context, id string) (*ruleset.Entity, error)
	valuemap.Source
}

// Record is one persisted target document.
type Record struct {
	EntityID string
	Key      string
	Document map[string]any
	Hash     string
}

// Records stores reconciled target documents.
type Records interface {
	// FindCandidates returns the stored documents of entityID under key.
	FindCandidates(ctx context.Context, entityID, key string) ([]map[string]any, error)
	SaveRecord(ctx context.Context, rec Record) error
}

// DefaultEventSource is the CloudEvents source when none is configured.
const DefaultEventSource = "jsonmapper"

// Processor wires the engine, reconciler and differ to storage.
//
// A Processor is safe for concurrent use. Reconciliation of documents that
// share a record key is serialized, so each sees the record its predecessor
// stored.
type Processor struct {
	catalog   Catalog
	records   Records
	publisher event.Publisher
	cache     *valuemap.Cache
	engine    *engine.Engine
	clock     engine.Clock
	ids       engine.IDGenerator
	source    string
	logger    *slog.Logger
	engOpts   []engine.Option
	locks     keyLocks
}

// Option configures a Processor.
type Option func(*Processor)

// WithPublisher sets where change events go. Without one, events are
// built but not delivered.
func WithPublisher(p event.Publisher) Option {
	return func(pr *Processor) { pr.publisher = p }
}

// WithEngineOptions passes options to the underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(pr *Processor) { pr.engOpts = append(pr.engOpts, opts...) }
}

// WithClock sets the clock for event timestamps and "_system.timestamp".
func WithClock(c engine.Clock) Option {
	return func(pr *Processor) { pr.clock = c }
}

// WithIDGenerator sets the generator for event ids and keyless records.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(pr *Processor) { pr.ids = g }
}

// WithEventSource sets the CloudEvents source attribute.
func WithEventSource(s string) Option {
	return func(pr *Processor) { pr.source = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(pr *Processor) { pr.logger = l }
}

// New creates a Processor over catalog and records.
func New(catalog Catalog, records Records, opts ...Option) *Processor {
	p := &Processor{
		catalog: catalog,
		records: records,
		clock:   engine.SystemClock{},
		ids:     engine.UUIDv7Generator{},
		source:  DefaultEventSource,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = valuemap.NewCache(catalog)
	engOpts := append([]engine.Option{
		engine.WithValueMaps(p.cache),
		engine.WithClock(p.clock),
		engine.WithIDGenerator(p.ids),
		engine.WithLogger(p.logger),
	}, p.engOpts...)
	p.engine = engine.New(engOpts...)
	return p
}

// Cache returns the value mapping cache, for invalidation after a
// mapping changes.
func (p *Processor) Cache() *valuemap.Cache { return p.cache }

// Engine returns the engine used for transformations.
func (p *Processor) Engine() *engine.Engine { return p.engine }

// Catalog returns the catalog entities are read from.
func (p *Processor) Catalog() Catalog { return p.catalog }

// Outcome describes what happened to one inbound document.
type Outcome struct {
	EntityID   string              `json:"entityId"`
	Key        string              `json:"key"`
	Operation  upsert.Operation    `json:"operation"`
	Target     map[string]any      `json:"target"`
	Final      map[string]any      `json:"finalDoc"`
	Changes    []diff.Change       `json:"changes"`
	Event      *event.CloudEvent   `json:"event,omitempty"`
	RuleErrors []*engine.RuleError `json:"ruleErrors,omitempty"`
}

// staged is a transformed document waiting to be reconciled.
type staged struct {
	entity *ruleset.Entity
	result *engine.Result
	key    string
}

// Process transforms doc with the rules of entityID and reconciles the
// result against the stored record, persisting and publishing the change.
//
// Rule errors are reported in the Outcome. An aborted transformation or an
// upsert conflict is returned as an error and nothing is stored.
func (p *Processor) Process(ctx context.Context, entityID string, doc map[string]any, opts ...engine.ApplyOption) (*Outcome, error) {
	ent, err := p.entity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	st, err := p.transform(ctx, ent, doc, opts)
	if err != nil {
		return nil, err
	}
	return p.commit(ctx, st)
}

// Transform applies the rules of entityID to doc without reconciling or
// storing anything.
func (p *Processor) Transform(ctx context.Context, entityID string, doc map[string]any, opts ...engine.ApplyOption) (*engine.Result, error) {
	ent, err := p.entity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return p.engine.Apply(ctx, doc, ent.Rules, opts...)
}

func (p *Processor) entity(ctx context.Context, id string) (*ruleset.Entity, error) {
	ent, err := p.catalog.Entity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}
	for _, m := range ent.ValueMappings {
		p.cache.Put(m)
	}
	return ent, nil
}

func (p *Processor) transform(ctx context.Context, ent *ruleset.Entity, doc map[string]any, opts []engine.ApplyOption) (*staged, error) {
	res, err := p.engine.Apply(ctx, doc, ent.Rules, opts...)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", ent.ID, err)
	}
	key, err := p.recordKey(ent, res.Target)
	if err != nil {
		return nil, err
	}
	return &staged{entity: ent, result: res, key: key}, nil
}

// recordKey derives the storage key from the unique fields. A document
// missing any of them cannot match a stored record and gets a fresh key.
func (p *Processor) recordKey(ent *ruleset.Entity, target map[string]any) (string, error) {
	fields := ent.Upsert.UniqueFields
	if len(fields) == 0 {
		return p.ids.Generate(), nil
	}
	values := make([]any, 0, len(fields))
	for _, f := range fields {
		path, err := fieldpath.Parse(f)
		if err != nil {
			return "", fmt.Errorf("unique field %q: %w", f, err)
		}
		v, ok := fieldpath.Resolve(target, path)
		if !ok {
			return p.ids.Generate(), nil
		}
		values = append(values, v)
	}
	return document.RecordKey(ent.ID, values)
}

func (p *Processor) commit(ctx context.Context, st *staged) (*Outcome, error) {
	ent := st.entity
	unlock := p.locks.lock(ent.ID + "/" + st.key)
	defer unlock()

	candidates, err := p.records.FindCandidates(ctx, ent.ID, st.key)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	rec, err := upsert.Reconcile(st.result.Target, candidates, ent.Upsert)
	if err != nil {
		return nil, err
	}

	changes := diff.Diff(rec.Existing, rec.Final)
	out := &Outcome{
		EntityID:   ent.ID,
		Key:        st.key,
		Operation:  rec.Operation,
		Target:     st.result.Target,
		Final:      rec.Final,
		Changes:    changes,
		RuleErrors: st.result.Errors,
	}

	if rec.Operation != upsert.OpSkip {
		hash, err := document.ContentHash(rec.Final)
		if err != nil {
			return nil, err
		}
		err = p.records.SaveRecord(ctx, Record{EntityID: ent.ID, Key: st.key, Document: rec.Final, Hash: hash})
		if err != nil {
			return nil, fmt.Errorf("save record: %w", err)
		}
	}

	payload := event.Build(rec.Operation, rec.Existing, rec.Final, changes, p.clock.Now(), map[string]any{
		"entityId":  ent.ID,
		"recordKey": st.key,
		"operation": string(rec.Operation),
	})
	ev := event.ToCloudEvent(payload, p.source, p.ids.Generate(), ent.ID+"/"+st.key)
	out.Event = &ev
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, ev); err != nil {
			return out, fmt.Errorf("publish: %w", err)
		}
	}

	p.logger.Debug("document processed",
		"entity", ent.ID,
		"key", st.key,
		"operation", rec.Operation,
		"changes", len(changes),
		"rule_errors", len(st.result.Errors))
	return out, nil
}
