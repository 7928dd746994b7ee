// Package document provides the value layer shared by every part of the
// mapper: decoding JSON documents, structural equality, deep copies, merges,
// and RFC 8785 canonical serialization for hashing and order-independent
// comparison.
//
// Documents are plain Go trees as produced by Decode:
//   - objects are map[string]any
//   - arrays are []any
//   - numbers are float64
//   - strings, bools and nil map to themselves
//
// All functions treat their inputs as immutable. Functions that return a
// document (Clone, MergeShallow, MergeDeep) never alias the inputs' maps or
// slices.
package document
