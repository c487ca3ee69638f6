package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// ErrNotFound is returned when a rule or set does not exist.
var ErrNotFound = errors.New("not found")

// Revision is one entry of a rule's history.
type Revision struct {
	ID      string         `json:"id"`
	Rule    string         `json:"rule"`
	Seq     int64          `json:"seq"`
	Hash    string         `json:"hash,omitempty"`
	Deleted bool           `json:"deleted,omitempty"`
	Record  *ir.RuleRecord `json:"record,omitempty"`
}

// querier is the subset of *sql.DB and *sql.Tx the helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveRule stores rec as the current version of its rule and appends a
// revision. Saving a record whose content hash equals the stored one
// changes nothing and returns changed == false.
func (s *Store) SaveRule(ctx context.Context, rec ir.RuleRecord) (rev Revision, changed bool, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		rev, changed, err = saveRule(ctx, tx, rec)
		return err
	})
	if err != nil {
		return Revision{}, false, fmt.Errorf("save rule %q: %w", rec.Name, err)
	}
	return rev, changed, nil
}

func saveRule(ctx context.Context, q querier, rec ir.RuleRecord) (Revision, bool, error) {
	hash, err := ir.RuleHash(rec)
	if err != nil {
		return Revision{}, false, err
	}

	var stored string
	err = q.QueryRowContext(ctx, `SELECT hash FROM rules WHERE name = ?`, rec.Name).Scan(&stored)
	switch {
	case err == nil && stored == hash:
		return Revision{}, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return Revision{}, false, fmt.Errorf("query rule hash: %w", err)
	}

	data, err := marshalRecord(rec)
	if err != nil {
		return Revision{}, false, err
	}
	seq, err := nextSeq(ctx, q)
	if err != nil {
		return Revision{}, false, err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO rules (name, record, hash, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET record = excluded.record, hash = excluded.hash, seq = excluded.seq
	`, rec.Name, data, hash, seq)
	if err != nil {
		return Revision{}, false, fmt.Errorf("upsert rule: %w", err)
	}

	rev := Revision{ID: newRevisionID(), Rule: rec.Name, Seq: seq, Hash: hash, Record: &rec}
	_, err = q.ExecContext(ctx, `
		INSERT INTO rule_revisions (id, rule_name, seq, hash, record, deleted)
		VALUES (?, ?, ?, ?, ?, 0)
	`, rev.ID, rev.Rule, rev.Seq, rev.Hash, data)
	if err != nil {
		return Revision{}, false, fmt.Errorf("insert revision: %w", err)
	}
	return rev, true, nil
}

// DeleteRule removes a rule and appends a deletion revision.
// Returns ErrNotFound if the rule is not stored.
func (s *Store) DeleteRule(ctx context.Context, name string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteRule(ctx, tx, name)
	})
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, err)
	}
	return nil
}

func deleteRule(ctx context.Context, q querier, name string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM rules WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	seq, err := nextSeq(ctx, q)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO rule_revisions (id, rule_name, seq, hash, record, deleted)
		VALUES (?, ?, ?, '', NULL, 1)
	`, newRevisionID(), name, seq)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// Rule returns the stored record of a rule.
func (s *Store) Rule(ctx context.Context, name string) (ir.RuleRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM rules WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.RuleRecord{}, fmt.Errorf("rule %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return ir.RuleRecord{}, fmt.Errorf("query rule %q: %w", name, err)
	}
	return unmarshalRecord(data)
}

// Revisions returns the history of a rule, oldest first.
// Returns an empty slice (not nil) for a rule that was never saved.
func (s *Store) Revisions(ctx context.Context, name string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_name, seq, hash, record, deleted
		FROM rule_revisions
		WHERE rule_name = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		var (
			rev    Revision
			record sql.NullString
		)
		if err := rows.Scan(&rev.ID, &rev.Rule, &rev.Seq, &rev.Hash, &record, &rev.Deleted); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if record.Valid {
			rec, err := unmarshalRecord(record.String)
			if err != nil {
				return nil, err
			}
			rev.Record = &rec
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revs, nil
}

// LastSeq returns the seq of the newest revision, 0 when there is none.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM rule_revisions`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}

func nextSeq(ctx context.Context, q querier) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM rule_revisions`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func newRevisionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
