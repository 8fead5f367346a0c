// Package prompt assembles model instructions from ordered named sections.
// The original marker-splicing approach (finding a delimiter inside the base
// prompt and inserting text before it) is replaced by an explicit builder so
// prompt composition is structural rather than string surgery.
package prompt

import "strings"

// Builder accumulates ordered prompt sections. The zero value is ready to
// use. Empty sections are skipped, so callers can append optional parts
// (retrieved context, summary, entity table) unconditionally.
type Builder struct {
	sections []string
}

// New returns a Builder seeded with the base instruction text.
func New(base string) *Builder {
	b := &Builder{}
	return b.Append(base)
}

// Append adds a section. Blank sections are dropped.
func (b *Builder) Append(section string) *Builder {
	if strings.TrimSpace(section) != "" {
		b.sections = append(b.sections, strings.TrimRight(section, "\n"))
	}
	return b
}

// AppendTitled adds a section under an upper-case title line, skipping it
// entirely when body is blank.
func (b *Builder) AppendTitled(title, body string) *Builder {
	if strings.TrimSpace(body) == "" {
		return b
	}
	return b.Append(title + "\n" + body)
}

// String renders the sections joined by blank lines.
func (b *Builder) String() string {
	return strings.Join(b.sections, "\n\n")
}
