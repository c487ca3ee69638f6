package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/engine"
	"github.com/xiao2945/danci-sub000/internal/ir"
	"github.com/xiao2945/danci-sub000/internal/library"
	"github.com/xiao2945/danci-sub000/internal/store"
)

// Harness is the scenario execution engine.
type Harness struct {
	engine *engine.Engine
	clock  *engine.Clock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Assemble sets, library files and rule text; validate every rule
// 2. Write the tables to a fresh in-memory store and read them back
// 3. Install the stored tables in a fresh engine
// 4. Execute steps and check expectations
//
// A scenario that cannot be set up is an error; failed expectations are
// reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	snap, err := assemble(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.ReplaceSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store tables: %w", err)
	}
	stored, err := st.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}

	eng := engine.New(engine.WithLogger(logger))
	if err := eng.Reload(stored); err != nil {
		return nil, fmt.Errorf("failed to install tables: %w", err)
	}

	h := &Harness{engine: eng, clock: engine.NewClock(), logger: logger}
	result := NewResult()
	for i, step := range scenario.Steps {
		words := step.Words
		if words == nil {
			words = scenario.Words
		}
		trace := h.execute(step, words)
		result.Trace = append(result.Trace, trace)
		for _, msg := range CheckStep(step, trace) {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", i+1, trace.Action, trace.Rule, msg))
		}
	}
	return result, nil
}

// assemble merges the scenario's sets, library files and rule text and
// validates every rule.
func assemble(s *Scenario) (ir.Snapshot, error) {
	var docs []*library.Document
	for _, p := range s.Library {
		doc, err := library.Load(p)
		if err != nil {
			return ir.Snapshot{}, fmt.Errorf("failed to load library: %w", err)
		}
		docs = append(docs, doc)
	}

	inline, err := library.Parse(s.Name+".rules", library.FormatText, []byte(s.Rules))
	if err != nil {
		return ir.Snapshot{}, err
	}
	for name, elems := range s.Sets {
		inline.Sets[name] = elems
	}
	docs = append(docs, inline)

	lib, errs := library.Assemble(docs)
	if len(errs) == 0 {
		errs = lib.Validate(compiler.DefaultLimits())
	}
	if len(errs) > 0 {
		return ir.Snapshot{}, fmt.Errorf("invalid scenario rules: %w", errors.Join(errs...))
	}
	return lib.Snapshot(), nil
}

// execute runs one step against the engine.
func (h *Harness) execute(step Step, words []string) StepTrace {
	action, rule := step.Action()
	trace := StepTrace{Seq: h.clock.Next(), Action: action, Rule: rule, Input: len(words)}

	switch action {
	case ActionApply:
		res, err := h.engine.ApplyRuleGrouped(words, rule)
		if err != nil {
			trace.Error = err.Error()
			break
		}
		trace.Groups = res.Groups
		trace.Unmatched = res.Unmatched
	case ActionMatch:
		trace.Matched = []string{}
		for _, w := range words {
			ok, err := h.engine.MatchesRule(w, rule)
			if err != nil {
				trace.Matched = nil
				trace.Error = err.Error()
				break
			}
			if ok {
				trace.Matched = append(trace.Matched, w)
			}
		}
	}

	h.logger.Info("step completed", "seq", trace.Seq, "action", action, "rule", rule, "error", trace.Error)
	return trace
}
