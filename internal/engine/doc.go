// Package engine owns the rule and set tables and answers word queries.
//
// An Engine holds the global custom sets and the saved rules, each saved
// rule kept next to its compiled form: a pattern for simple rules, an
// expression tree for combinators and a sort spec for the display line.
// Writes (SaveRule, DefineGlobalSet, Reload) take the engine's write lock
// and recompile what they touch; queries (MatchesRule, ApplyRule, Preview)
// run under the read lock against the compiled tables and never mutate
// them.
//
// Matching:
//
// A pattern is tried at every admissible start offset. From a start the
// matcher walks the elements left to right; at a set element it tries
// every element string that occurs at the current offset, longest first,
// and a "+" element tries one more repetition before moving on. Failing
// (element, offset) states are remembered so a search visits each state
// at most once, which bounds the work by word length times pattern size.
//
// Words are compared case-insensitively: both the word and the compiled
// pattern options are lower-cased.
//
// Generation:
//
// Every successful mutation advances a logical clock. Callers that cache
// results (the library watcher, the CLI) compare Generation values instead
// of wall-clock timestamps.
package engine
