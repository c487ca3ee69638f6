// Package library loads rule libraries from disk.
//
// A library file holds global sets and rules in one of three formats,
// chosen by extension:
//
//	.yaml, .yml   YAML documents with "sets" and "rules" keys
//	.cue          CUE values with "sets" and "rules" structs
//	.rules, .txt  rule language text, one "#Name" block per rule
//
// Rules in record form are rendered into rule text and parsed, so every
// format goes through the same parser. Files are assembled into one
// ir.Snapshot that the engine validates and installs with Reload.
//
// Watcher re-assembles the configured files whenever one of them changes
// and reloads the engine.
package library
