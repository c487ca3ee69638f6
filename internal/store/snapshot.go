package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// SaveGlobalSet stores a global set, replacing any set of the same name.
func (s *Store) SaveGlobalSet(ctx context.Context, name string, elements []string) error {
	if err := saveGlobalSet(ctx, s.db, name, elements); err != nil {
		return fmt.Errorf("save set %q: %w", name, err)
	}
	return nil
}

func saveGlobalSet(ctx context.Context, q querier, name string, elements []string) error {
	data, err := marshalElements(elements)
	if err != nil {
		return err
	}
	hash, err := ir.SetHash(name, elements)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO global_sets (name, elements, hash)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET elements = excluded.elements, hash = excluded.hash
	`, name, data, hash)
	return err
}

// DeleteGlobalSet removes a global set. Returns ErrNotFound if it is not
// stored.
func (s *Store) DeleteGlobalSet(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM global_sets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete set %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete set %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete set %q: %w", name, ErrNotFound)
	}
	return nil
}

// LoadSnapshot reads every global set and rule. Rules are ordered by name.
func (s *Store) LoadSnapshot(ctx context.Context) (ir.Snapshot, error) {
	snap := ir.Snapshot{Sets: map[string][]string{}, Rules: []ir.RuleRecord{}}

	rows, err := s.db.QueryContext(ctx, `SELECT name, elements FROM global_sets ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("query sets: %w", err)
	}
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			rows.Close()
			return ir.Snapshot{}, fmt.Errorf("scan set: %w", err)
		}
		elems, err := unmarshalElements(data)
		if err != nil {
			rows.Close()
			return ir.Snapshot{}, fmt.Errorf("set %q: %w", name, err)
		}
		snap.Sets[name] = elems
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ir.Snapshot{}, fmt.Errorf("iterate sets: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT record FROM rules ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return ir.Snapshot{}, fmt.Errorf("scan rule: %w", err)
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return ir.Snapshot{}, err
		}
		snap.Rules = append(snap.Rules, rec)
	}
	if err := rows.Err(); err != nil {
		return ir.Snapshot{}, fmt.Errorf("iterate rules: %w", err)
	}
	return snap, nil
}

// ReplaceSnapshot makes the database hold exactly snap, in one
// transaction. Changed rules get a revision, rules missing from snap get a
// deletion revision and unchanged rules are left alone.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap ir.Snapshot) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM global_sets`); err != nil {
			return fmt.Errorf("clear sets: %w", err)
		}
		for _, name := range snap.SortedSetNames() {
			if err := saveGlobalSet(ctx, tx, name, snap.Sets[name]); err != nil {
				return fmt.Errorf("set %q: %w", name, err)
			}
		}

		keep := make(map[string]bool, len(snap.Rules))
		for _, rec := range snap.Rules {
			keep[rec.Name] = true
			if _, _, err := saveRule(ctx, tx, rec); err != nil {
				return fmt.Errorf("rule %q: %w", rec.Name, err)
			}
		}

		stale, err := ruleNames(ctx, tx)
		if err != nil {
			return err
		}
		for _, name := range stale {
			if keep[name] {
				continue
			}
			if err := deleteRule(ctx, tx, name); err != nil {
				return fmt.Errorf("rule %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func ruleNames(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM rules ORDER BY name COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rule names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan rule name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
