// Package store provides SQLite-backed persistence for global sets and
// rules.
//
// Tables:
//   - global_sets: name → sorted elements
//   - rules: the current record of every saved rule
//   - rule_revisions: append-only history of rule saves and deletions
//
// A rule save writes a revision only when the record's content hash
// (ir.RuleHash) differs from the stored one, so saving the same rule twice
// is a no-op. Revisions are ordered by seq, a logical counter local to the
// database; ids are UUIDv7.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
