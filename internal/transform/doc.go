// Package transform classifies the failures of a unit of work against
// declared rules.
//
// Rules are grouped. Each group is served by one Transformer whose
// strategy is fixed by the first rule registered on it:
//
//   - rewrite: errors of a source kind are replaced by a new error of the
//     target kind, keeping the original message and stack.
//   - regex: like rewrite, but the target kind is picked by matching the
//     error message against patterns, with an optional default.
//   - delegate: a custom handler decides what to surface.
//   - validate: a validator checks successful results.
//
// When several rewrite or regex rules match, the most specific source kind
// (the one with the longest ancestor chain) wins, and among equally
// specific kinds the one registered last wins. Errors no rule matches are
// returned unchanged.
//
// Rewritten messages never exceed MaxMessageSize characters. Regex rules
// that would exceed it use a readable form of the matched pattern instead.
//
// Errors that are reportable, or that replaced a reportable error, are sent
// to the registry's Reporter before being returned. A failing reporter
// never changes the returned error.
package transform
