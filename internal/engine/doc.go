// Package engine applies mapping rules to source documents.
//
// The engine is the heart of the mapper: for each inbound document it runs
// an ordered rule list and produces the target document that the upsert
// reconciler and the change differ then work on.
//
// RULE LIFECYCLE:
//
// Each active rule goes through three steps:
//  1. Extract: resolve the rule's source path against the source document,
//     or against the call's system values for "_system.*" paths.
//  2. Transform: dispatch on the rule's transformation kind (direct,
//     template, function, lookup, aggregate, conditional, valueMapping,
//     subChildMerge, subChildReplace).
//  3. Write: set the result at the rule's target path, creating
//     intermediate objects.
//
// ERROR MODEL:
//
// Errors are rule-scoped. A failing rule is recorded as a *RuleError in
// Result.Errors and the next rule runs. The only way to abort a document is
// a sub-child rule whose fallback is "error".
//
// COLLABORATORS:
//
// Function bodies run in an injected FunctionEvaluator (sandbox.Evaluator in
// production). Sub-child documents come from an injected Fetcher with a
// per-fetch timeout. Value mappings load through an explicit
// valuemap.Cache. None of these are package-level state.
package engine
