package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/edtacey/jsonmapper/internal/engine"
)

// BatchResult is the outcome of one document of a batch, at its input
// index.
type BatchResult struct {
	Index   int      `json:"index"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Err     error    `json:"-"`
}

// ProcessBatch processes docs with up to limit documents in flight.
//
// Documents are transformed in parallel, then grouped by record key. Groups
// are reconciled in parallel; documents of one group are reconciled in
// input order so each sees the record its predecessor stored. A failing
// document does not stop the others. Results are in input order.
func (p *Processor) ProcessBatch(ctx context.Context, entityID string, docs []map[string]any, limit int, opts ...engine.ApplyOption) ([]BatchResult, error) {
	ent, err := p.entity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	results := make([]BatchResult, len(docs))
	stages := make([]*staged, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, doc := range docs {
		results[i].Index = i
		g.Go(func() error {
			st, err := p.transform(gctx, ent, doc, opts)
			if err != nil {
				results[i].Err = err
				return nil
			}
			stages[i] = st
			return nil
		})
	}
	_ = g.Wait()

	var order []string
	groups := make(map[string][]int)
	for i, st := range stages {
		if st == nil {
			continue
		}
		if _, ok := groups[st.key]; !ok {
			order = append(order, st.key)
		}
		groups[st.key] = append(groups[st.key], i)
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, key := range order {
		idxs := groups[key]
		g.Go(func() error {
			for _, i := range idxs {
				if err := gctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i].Outcome, results[i].Err = p.commit(gctx, stages[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Info("batch processed", "entity", entityID, "documents", len(docs), "failed", failed)
	return results, nil
}
