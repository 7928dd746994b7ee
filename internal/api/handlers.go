package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/edtacey/jsonmapper/internal/diff"
	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/engine"
	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/schema"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/validate"
)

type inferRequest struct {
	Samples []any `json:"samples"`
}

type inferResponse struct {
	Schema schema.Document `json:"schema"`
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "no_samples", nil)
		return
	}
	writeJSON(w, http.StatusOK, inferResponse{Schema: schema.Document{Schema: schema.InferAll(req.Samples...)}})
}

type validateRequest struct {
	Rules        []rules.MappingRule `json:"rules"`
	SourceSchema schema.Document     `json:"sourceSchema"`
	TargetSchema schema.Document     `json:"targetSchema"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	v := validate.New(validate.WithValueMaps(catalogMaps{ctx: r.Context(), catalog: s.proc.Catalog()}))
	writeJSON(w, http.StatusOK, v.ValidateRules(req.Rules, req.SourceSchema.Schema, req.TargetSchema.Schema))
}

// catalogMaps answers value mapping existence from the catalog.
type catalogMaps struct {
	ctx     context.Context
	catalog pipeline.Catalog
}

func (c catalogMaps) HasValueMapping(id string) bool {
	_, err := c.catalog.ValueMapping(c.ctx, id)
	return err == nil
}

type transformRequest struct {
	EntityID string              `json:"entityId,omitempty"`
	Document map[string]any      `json:"document"`
	Rules    []rules.MappingRule `json:"rules,omitempty"`
}

type transformResponse struct {
	Target  map[string]any      `json:"target"`
	Errors  []*engine.RuleError `json:"errors"`
	Applied int                 `json:"applied"`
	Skipped int                 `json:"skipped"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if req.Document == nil {
		writeError(w, http.StatusBadRequest, "missing_document", nil)
		return
	}
	var (
		res *engine.Result
		err error
	)
	if req.EntityID != "" {
		res, err = s.proc.Transform(r.Context(), req.EntityID, document.CloneObject(req.Document))
	} else {
		res, err = s.proc.Engine().Apply(r.Context(), document.CloneObject(req.Document), req.Rules)
	}
	var re *engine.RuleError
	switch {
	case errors.As(err, &re):
		writeError(w, http.StatusUnprocessableEntity, "transform_aborted", err)
		return
	case err != nil:
		writeEntityError(w, err)
		return
	}
	errs := res.Errors
	if errs == nil {
		errs = []*engine.RuleError{}
	}
	writeJSON(w, http.StatusOK, transformResponse{Target: res.Target, Errors: errs, Applied: res.Applied, Skipped: res.Skipped})
}

type reconcileRequest struct {
	NewDoc   map[string]any   `json:"newDoc"`
	Existing []map[string]any `json:"existing"`
	Policy   upsert.Policy    `json:"policy"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if req.NewDoc == nil {
		writeError(w, http.StatusBadRequest, "missing_document", nil)
		return
	}
	out, err := upsert.Reconcile(req.NewDoc, req.Existing, req.Policy)
	switch {
	case upsert.IsConflictError(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_policy", err)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

type diffRequest struct {
	Old map[string]any `json:"old"`
	New map[string]any `json:"new"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": diff.Diff(req.Old, req.New)})
}

type documentsRequest struct {
	Document  map[string]any   `json:"document,omitempty"`
	Documents []map[string]any `json:"documents,omitempty"`
}

type batchItem struct {
	Index   int               `json:"index"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req documentsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}

	switch {
	case req.Document != nil:
		out, err := s.proc.Process(r.Context(), id, req.Document)
		if err != nil {
			writeProcessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case req.Documents != nil:
		results, err := s.proc.ProcessBatch(r.Context(), id, req.Documents, s.batchLimit)
		if err != nil {
			writeProcessError(w, err)
			return
		}
		items := make([]batchItem, len(results))
		for i, res := range results {
			items[i] = batchItem{Index: res.Index, Outcome: res.Outcome}
			if res.Err != nil {
				items[i].Error = res.Err.Error()
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": items})
	default:
		writeError(w, http.StatusBadRequest, "missing_document", nil)
	}
}

func writeEntityError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrEntityNotFound) {
		writeError(w, http.StatusNotFound, "entity_not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "catalog", err)
}

func writeProcessError(w http.ResponseWriter, err error) {
	var re *engine.RuleError
	switch {
	case errors.Is(err, pipeline.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, "entity_not_found", err)
	case upsert.IsConflictError(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.As(err, &re):
		writeError(w, http.StatusUnprocessableEntity, "transform_aborted", err)
	default:
		writeError(w, http.StatusInternalServerError, "processing_failed", err)
	}
}
