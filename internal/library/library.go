package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xiao2945/danci-sub000/internal/charset"
	"github.com/xiao2945/danci-sub000/internal/compiler"
	"github.com/xiao2945/danci-sub000/internal/ir"
)

// Format names a library file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
	FormatText Format = "text"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".cue":
		return FormatCUE, true
	case ".rules", ".txt":
		return FormatText, true
	}
	return "", false
}

// Source is one rule cut out of a library file, as rule text.
type Source struct {
	Text string
	Path string

	// Line is the file line the rule starts on.
	Line int

	// Rendered is set when Text was rendered from a record; lines inside
	// Text then do not correspond to file lines.
	Rendered bool
}

// Position maps a line inside Text to a file line.
func (s Source) Position(line int) int {
	if s.Rendered || line <= 0 {
		return s.Line
	}
	return s.Line + line - 1
}

// Document is the content of one library file.
type Document struct {
	Path   string
	Format Format
	Sets   map[string][]string
	Rules  []Source
}

// LoadError locates a library problem in a file.
type LoadError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads one library file.
func Load(path string) (*Document, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported library extension %q", filepath.Ext(path))}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, format, data)
}

// Parse decodes library content in the given format. path is only used
// for error positions.
func Parse(path string, format Format, data []byte) (*Document, error) {
	doc := &Document{Path: path, Format: format, Sets: map[string][]string{}}
	var err error
	switch format {
	case FormatYAML:
		err = parseYAML(doc, data)
	case FormatCUE:
		err = parseCUE(doc, data)
	case FormatText:
		parseText(doc, string(data))
	default:
		err = &LoadError{Path: path, Err: fmt.Errorf("cannot load format %q", format)}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parseText(doc *Document, text string) {
	for _, c := range compiler.SplitRules(text) {
		doc.Rules = append(doc.Rules, Source{Text: c.Text, Path: doc.Path, Line: c.Line})
	}
}

// Entry is a parsed rule together with where it came from.
type Entry struct {
	Rule   *ir.Rule
	Source Source
}

// Library is a set of documents merged into one namespace.
type Library struct {
	Sets    map[string][]string
	Entries []Entry
}

// Assemble merges documents. Global sets are installed first so rule
// definitions can reference them; every rule is then parsed and its local
// sets evaluated. All problems are returned, each as a *LoadError; the
// returned library holds the rules that parsed.
func Assemble(docs []*Document) (*Library, []error) {
	lib := &Library{Sets: map[string][]string{}}
	var errs []error

	owner := make(map[string]string)
	for _, doc := range docs {
		for _, name := range sortedKeys(doc.Sets) {
			if prev, dup := owner[name]; dup {
				errs = append(errs, &LoadError{Path: doc.Path, Err: fmt.Errorf("set %q already defined in %s", name, prev)})
				continue
			}
			owner[name] = doc.Path
			lib.Sets[name] = doc.Sets[name]
		}
	}

	sets := charset.NewStore()
	for _, name := range sortedKeys(lib.Sets) {
		if _, err := sets.Define(name, lib.Sets[name]); err != nil {
			errs = append(errs, &LoadError{Path: owner[name], Err: err})
			delete(lib.Sets, name)
		}
	}

	seen := make(map[string]Source)
	for _, doc := range docs {
		for _, src := range doc.Rules {
			rule, err := compiler.ParseRule(src.Text, sets)
			if err != nil {
				errs = append(errs, sourceError(src, err))
				continue
			}
			if prev, dup := seen[rule.Name]; dup {
				errs = append(errs, &LoadError{
					Path: src.Path,
					Line: src.Line,
					Err:  fmt.Errorf("rule %q already defined at %s:%d", rule.Name, prev.Path, prev.Line),
				})
				continue
			}
			seen[rule.Name] = src
			lib.Entries = append(lib.Entries, Entry{Rule: rule, Source: src})
		}
	}
	return lib, errs
}

// Snapshot converts the library into the engine's persistence shape.
func (l *Library) Snapshot() ir.Snapshot {
	snap := ir.Snapshot{Sets: make(map[string][]string, len(l.Sets)), Rules: make([]ir.RuleRecord, 0, len(l.Entries))}
	for name, elems := range l.Sets {
		snap.Sets[name] = ir.NewSet(name, elems).Elements
	}
	for _, e := range l.Entries {
		snap.Rules = append(snap.Rules, e.Rule.Record())
	}
	return snap
}

// Validate runs the rule validator over every entry against the library's
// own sets and rules and returns every error positioned in its file.
func (l *Library) Validate(limits compiler.Limits) []error {
	sets := charset.NewStore()
	if err := sets.Replace(l.Sets); err != nil {
		return []error{err}
	}
	rules := make(compiler.RuleMap, len(l.Entries))
	for _, e := range l.Entries {
		rules[e.Rule.Name] = e.Rule
	}
	env := compiler.Env{Sets: sets, Rules: rules, Limits: limits}

	var errs []error
	for _, e := range l.Entries {
		for _, verr := range compiler.Validate(e.Rule, env) {
			errs = append(errs, sourceError(e.Source, verr))
		}
	}
	return errs
}

// LoadAll loads and assembles a list of files.
func LoadAll(paths []string) (*Library, []error) {
	var docs []*Document
	var errs []error
	for _, p := range paths {
		doc, err := Load(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	lib, aerrs := Assemble(docs)
	return lib, append(errs, aerrs...)
}

func sourceError(src Source, err error) *LoadError {
	line := src.Line
	var ierr *ir.Error
	if errors.As(err, &ierr) {
		line = src.Position(ierr.Line)
	}
	return &LoadError{Path: src.Path, Line: line, Err: err}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
