package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/rules"
)

// keyPlaceholder in a sub-child source is replaced with the lookup key.
const keyPlaceholder = "{key}"

// subChild fetches the external document and merges or substitutes it. Any
// failure, including a timeout, resolves through the rule's fallback.
func (r *run) subChild(ctx context.Context, rule rules.MappingRule, t rules.SubChild, value any, present bool) (any, bool, error) {
	out, err := r.fetchSubChild(ctx, rule, t, value, present)
	if err == nil {
		return out, true, nil
	}

	re := newRuleError(rule, ErrCodeSubChildLookup, err, "lookup failed, fallback %s", fallbackName(t.Fallback))
	r.fail(re)
	switch t.Fallback {
	case rules.FallbackError:
		return nil, false, re
	case rules.FallbackUseOriginal:
		return document.Clone(value), present, nil
	case rules.FallbackUseDefault:
		return document.Clone(t.Default), true, nil
	default:
		return nil, false, nil
	}
}

func fallbackName(f rules.Fallback) rules.Fallback {
	if f == "" {
		return rules.FallbackSkip
	}
	return f
}

func (r *run) fetchSubChild(ctx context.Context, rule rules.MappingRule, t rules.SubChild, value any, present bool) (any, error) {
	if r.engine.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	key, keyOK := value, present
	if t.KeyPath != "" {
		key, keyOK = fieldpath.ResolveString(r.source, t.KeyPath)
	}
	target := t.Source
	if strings.Contains(target, keyPlaceholder) {
		if !keyOK || key == nil {
			return nil, fmt.Errorf("lookup key is absent")
		}
		target = strings.ReplaceAll(target, keyPlaceholder, url.PathEscape(document.Stringify(key)))
	}

	fctx, cancel := context.WithTimeout(ctx, r.engine.fetchTimeout)
	defer cancel()
	fetched, err := r.engine.fetcher.Fetch(fctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	if t.Replace {
		return r.replace(ctx, rule, t, fetched)
	}
	return merge(t, value, fetched)
}

// replace substitutes the fetched document, reshaped by SubMappings when
// the rule has any.
func (r *run) replace(ctx context.Context, rule rules.MappingRule, t rules.SubChild, fetched any) (any, error) {
	if len(t.SubMappings) == 0 {
		return document.Clone(fetched), nil
	}
	obj, ok := document.AsObject(fetched)
	if !ok {
		return nil, fmt.Errorf("fetched %s, sub-mappings need an object", document.TypeName(fetched))
	}
	sub, err := r.engine.Apply(ctx, obj, t.SubMappings, r.systemOptions()...)
	if err != nil {
		return nil, fmt.Errorf("sub-mappings: %w", err)
	}
	for _, e := range sub.Errors {
		nested := *e
		nested.RuleID = rule.Label() + "/" + e.RuleID
		r.result.Errors = append(r.result.Errors, &nested)
	}
	return sub.Target, nil
}

// merge combines the source sub-object with the fetched object and then
// restores PreserveFields from the source sub-object.
func merge(t rules.SubChild, value, fetched any) (any, error) {
	incoming, ok := document.AsObject(fetched)
	if !ok {
		return nil, fmt.Errorf("fetched %s, merge needs an object", document.TypeName(fetched))
	}
	original, _ := document.AsObject(value)

	var merged map[string]any
	if t.MergeStrategy == rules.MergeDeep {
		merged = document.MergeDeep(original, incoming)
	} else {
		merged = document.MergeShallow(original, incoming)
	}

	for _, f := range t.PreserveFields {
		p, err := fieldpath.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("preserve field %q: %w", f, err)
		}
		if v, ok := fieldpath.Resolve(original, p); ok {
			if err := fieldpath.Set(merged, p, document.Clone(v)); err != nil {
				return nil, fmt.Errorf("preserve field %q: %w", f, err)
			}
		}
	}
	return merged, nil
}

// systemOptions forwards caller-supplied system values to nested applies.
func (r *run) systemOptions() []ApplyOption {
	opts := make([]ApplyOption, 0, len(r.system))
	for k, v := range r.system {
		opts = append(opts, WithSystemValue(k, v))
	}
	return opts
}
