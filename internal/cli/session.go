package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xiao2945/danci-sub000/internal/engine"
	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/library"
	"github.com/xiao2945/danci-sub000/internal/store"
)

// session is the engine a command works on, loaded from the database or,
// when library patterns are configured, from library files.
type session struct {
	engine *engine.Engine
	store  *store.Store // nil for library sessions
	files  []string     // library files the tables were read from
}

// Close releases the database, if any.
func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newEngine builds an engine with the configured limits and widths.
func (o *RootOptions) newEngine(generation int64) *engine.Engine {
	return engine.New(
		engine.WithLogger(slog.Default()),
		engine.WithLimits(o.cfg.Limits),
		engine.WithPreviewWidths(o.cfg.Preview),
		engine.WithGeneration(generation),
	)
}

// openSession loads the tables for a read-only command.
func (o *RootOptions) openSession(ctx context.Context) (*session, error) {
	if len(o.Library) > 0 {
		return o.openLibrary()
	}
	return o.openDatabase(ctx)
}

// openLibrary loads the tables from the configured library patterns.
func (o *RootOptions) openLibrary() (*session, error) {
	files, err := library.Discover(o.Library)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeIO, err)
	}
	if len(files) == 0 {
		return nil, WrapExitError(ExitCommandError, ErrCodeIO, fmt.Errorf("no library files match %v", o.Library))
	}
	slog.Debug("loading library", "files", len(files))

	lib, errs := library.LoadAll(files)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitFailure, ErrCodeInvalid, errors.Join(errs...))
	}
	eng := o.newEngine(0)
	if err := eng.Reload(lib.Snapshot()); err != nil {
		return nil, WrapExitError(ExitFailure, ErrCodeInvalid, err)
	}
	return &session{engine: eng, files: files}, nil
}

// openDatabase loads the tables from the database, creating it if needed.
func (o *RootOptions) openDatabase(ctx context.Context) (*session, error) {
	if o.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(o.Database), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeIO, err)
		}
	}
	slog.Debug("opening database", "path", o.Database)
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, err)
	}

	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	seq, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, err)
	}

	eng := o.newEngine(seq)
	if len(snap.Sets) > 0 || len(snap.Rules) > 0 {
		if err := eng.Reload(snap); err != nil {
			st.Close()
			return nil, WrapExitError(ExitFailure, ErrCodeInvalid, fmt.Errorf("database %s: %w", o.Database, err))
		}
	}
	return &session{engine: eng, store: st}, nil
}

// report prints a session error. Session errors are ExitErrors whose
// message is the error code.
func report(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		_ = f.Error(exitErr.Message, exitErr.Err.Error(), nil)
		return err
	}
	return fail(f, ExitCommandError, ErrCodeGeneric, err)
}

// ImportResult is the output of sets import and rules import.
type ImportResult struct {
	Files      []string `json:"files"`
	Sets       int      `json:"sets"`
	Rules      int      `json:"rules"`
	Generation int64    `json:"generation"`
}

// importLibrary merges library files into the database tables. Sets and,
// when withRules is set, rules of the same name are replaced. The merged
// tables are validated as a whole before anything is written.
func (s *session) importLibrary(ctx context.Context, patterns []string, withRules bool) (ImportResult, error) {
	files, err := library.Discover(patterns)
	if err != nil {
		return ImportResult{}, WrapExitError(ExitCommandError, ErrCodeIO, err)
	}
	if len(files) == 0 {
		return ImportResult{}, WrapExitError(ExitCommandError, ErrCodeIO, fmt.Errorf("no library files match %v", patterns))
	}
	lib, errs := library.LoadAll(files)
	if len(errs) > 0 {
		return ImportResult{}, WrapExitError(ExitFailure, ErrCodeInvalid, errors.Join(errs...))
	}

	snap := s.engine.Snapshot()
	for name, elems := range lib.Sets {
		snap.Sets[name] = elems
	}
	res := ImportResult{Files: files, Sets: len(lib.Sets)}
	if withRules {
		index := make(map[string]int, len(snap.Rules))
		for i, rec := range snap.Rules {
			index[rec.Name] = i
		}
		for _, rec := range lib.Snapshot().Rules {
			if i, ok := index[rec.Name]; ok {
				snap.Rules[i] = rec
				continue
			}
			snap.Rules = append(snap.Rules, rec)
		}
		res.Rules = len(lib.Entries)
	}

	if err := s.engine.Reload(snap); err != nil {
		return ImportResult{}, WrapExitError(ExitFailure, ErrCodeInvalid, err)
	}
	if err := s.store.ReplaceSnapshot(ctx, s.engine.Snapshot()); err != nil {
		return ImportResult{}, WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	res.Generation = s.engine.Generation()
	return res, nil
}

// export writes the tables to path, or to w when path is empty or "-".
func export(w io.Writer, path string, snap ir.Snapshot, format library.Format) error {
	if path == "" || path == "-" {
		return library.Export(w, snap, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := library.Export(f, snap, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
