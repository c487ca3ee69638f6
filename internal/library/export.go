package library

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/xiao2945/danci-sub000/internal/ir"
)

// exportFile mirrors the YAML library layout.
type exportFile struct {
	Sets  map[string][]string `yaml:"sets" json:"sets"`
	Rules []RuleDoc           `yaml:"rules" json:"rules"`
}

// Export writes snap as a library document in YAML or JSON. Rules keep
// their order; sets are keyed by name.
func Export(w io.Writer, snap ir.Snapshot, format Format) error {
	f := exportFile{Sets: make(map[string][]string, len(snap.Sets)), Rules: make([]RuleDoc, 0, len(snap.Rules))}
	for name, elems := range snap.Sets {
		if elems == nil {
			elems = []string{}
		}
		f.Sets[name] = elems
	}
	for _, rec := range snap.Rules {
		f.Rules = append(f.Rules, docFromRecord(rec))
	}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("export YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("export JSON: %w", err)
		}
		return nil
	}
	return fmt.Errorf("export: unsupported format %q", format)
}
