package ir

import "strings"

// BraceLiteral renders elements as a "{a,b,c}" set literal.
func BraceLiteral(elements []string) string {
	return "{" + strings.Join(elements, ",") + "}"
}

// Text renders the rule back into the line-oriented rule language.
// Local sets are emitted as brace literals of their evaluated elements, so
// parsing the result yields an equal rule.
func (r *Rule) Text() string {
	var b strings.Builder
	b.WriteString(PrefixName)
	b.WriteString(r.Name)
	if r.Comment != "" {
		b.WriteString(CommentMarker)
		b.WriteString(r.Comment)
	}
	b.WriteByte('\n')
	for _, s := range r.LocalSets {
		b.WriteString(s.Name)
		b.WriteString(" " + DefinitionMarker + " ")
		b.WriteString(BraceLiteral(s.Elements))
		b.WriteByte('\n')
	}
	b.WriteString(r.SpecificRule)
	b.WriteByte('\n')
	if r.DisplayRule != "" {
		b.WriteString(r.DisplayRule)
		b.WriteByte('\n')
	}
	return b.String()
}
