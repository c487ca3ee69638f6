package library

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Sets  map[string][]string `yaml:"sets"`
	Rules []yaml.Node         `yaml:"rules"`
}

func parseYAML(doc *Document, data []byte) error {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return &LoadError{Path: doc.Path, Err: fmt.Errorf("parse YAML: %w", err)}
	}
	for name, elems := range f.Sets {
		doc.Sets[name] = elems
	}
	for i := range f.Rules {
		node := &f.Rules[i]
		var d RuleDoc
		if err := node.Decode(&d); err != nil {
			return &LoadError{Path: doc.Path, Line: node.Line, Column: node.Column, Err: err}
		}
		text, rendered, err := d.render()
		if err != nil {
			return &LoadError{Path: doc.Path, Line: node.Line, Column: node.Column, Err: err}
		}
		line := node.Line
		if !rendered {
			// rule text in a block scalar starts on the line after "text:"
			if t := textNode(node); t != nil {
				line = t.Line
				if t.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
					line++
				}
			}
		}
		doc.Rules = append(doc.Rules, Source{Text: text, Path: doc.Path, Line: line, Rendered: rendered})
	}
	return nil
}

// textNode returns the value node of a mapping's "text" key.
func textNode(n *yaml.Node) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "text" {
			return n.Content[i+1]
		}
	}
	return nil
}
