package library

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// parseCUE reads a CUE library:
//
//	sets: X: ["a", "b"]
//	rules: Ends: {
//		local_sets: [{name: "Tail", elements: ["a", "e"]}]
//		specific_rule: ":(Tail)\\e"
//	}
//
// A rule's name defaults to its field label.
func parseCUE(doc *Document, data []byte) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(doc.Path))
	if err := v.Err(); err != nil {
		return cueError(doc.Path, err)
	}

	setsVal := v.LookupPath(cue.ParsePath("sets"))
	if setsVal.Exists() {
		var sets map[string][]string
		if err := setsVal.Decode(&sets); err != nil {
			return cueError(doc.Path, err)
		}
		for name, elems := range sets {
			doc.Sets[name] = elems
		}
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return cueError(doc.Path, err)
	}
	for iter.Next() {
		rv := iter.Value()
		var d RuleDoc
		if err := rv.Decode(&d); err != nil {
			return cueError(doc.Path, err)
		}
		if d.Text == "" && d.Name == "" {
			d.Name = iter.Label()
		}
		text, _, err := d.render()
		if err != nil {
			pos := rv.Pos()
			return &LoadError{Path: doc.Path, Line: pos.Line(), Column: pos.Column(), Err: err}
		}
		// positions inside CUE strings are not tracked; errors point at the rule
		doc.Rules = append(doc.Rules, Source{Text: text, Path: doc.Path, Line: rv.Pos().Line(), Rendered: true})
	}
	return nil
}

// cueError extracts the position of the first CUE error.
func cueError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Err: err}
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		pos := positions[0]
		return &LoadError{Path: path, Line: pos.Line(), Column: pos.Column(), Err: fmt.Errorf("cue: %s", first.Error())}
	}
	return &LoadError{Path: path, Err: err}
}
