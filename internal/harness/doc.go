// Package harness runs rule scenarios as executable contract tests.
//
// A scenario installs global sets and rules into a fresh engine, then
// applies and matches rules against word lists and checks the output.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: vowel_endings
//	description: "What this scenario validates"
//	sets:
//	  Glide: [w, y]
//	library:
//	  - rules/extra.yaml
//	rules: |
//	  #Ends//tail vowels
//	  Tail == {a,e}
//	  :(Tail)\e
//	  @C^
//	words: [banana, cake, apple]
//	steps:
//	  - apply: Ends
//	    expect: [banana, cake, apple]
//	    expect_groups:
//	      - {label: b, words: [banana]}
//	  - match: Ends
//	    words: [fig]
//	    expect: []
//	  - apply: Missing
//	    expect_error: RULE_NOT_FOUND
//
// "apply" filters and sorts; its expect lists the flattened output, words
// the sort could not key last. "match" filters only; its expect lists the
// matching words in input order. A step without words uses the scenario's.
// Library paths are relative to the scenario file.
//
// # Determinism
//
// Each scenario runs in a fresh engine backed by an in-memory SQLite store.
// The tables are written to the store and read back before the first step,
// so scenarios also cover the persisted form of every rule. Steps are
// numbered by a counter, making traces identical across runs for golden
// file comparison.
package harness
