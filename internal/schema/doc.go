// Package schema models JSON Schema trees as a sealed set of variants and
// derives them from sample documents.
//
// Every schema is one of Null, Boolean, Number, Integer, String, Array,
// Object or Union. Callers switch on the concrete type (or on Kind) and the
// set is closed: only this package can add variants.
//
// Inference is single-sample optimistic: every key observed on an object is
// recorded as required. Merging several inferred schemas unions the required
// sets, so with few samples optional fields are still reported as required.
package schema
