// SPDX-License-Identifier: MIT
package manifest

import (
	"bytes"
	"io"
	"strings"
)

// Write renders f in canonical form: trimmed lines, one space around
// comparators, clauses joined by ", ", two spaces before a trailing comment.
// Invalid and option lines are preserved verbatim so formatting never loses
// information.
func Write(w io.Writer, f *File) error {
	buf := &bytes.Buffer{}
	for i := range f.Lines {
		buf.WriteString(f.Lines[i].Canonical())
		buf.WriteByte('\n')
	}
	_, err := io.Copy(w, buf)
	return err
}

// Render returns the canonical text of f.
func Render(f *File) string {
	var b strings.Builder
	_ = Write(&b, f)
	return b.String()
}

// Canonical returns the canonical rendering of the line.
func (l *Line) Canonical() string {
	switch l.Kind {
	case KindBlank:
		return ""
	case KindComment:
		if l.Comment == "" {
			return "#"
		}
		return "# " + l.Comment
	case KindInclude:
		return withComment("-r "+l.Include.Path, l.Include.Comment)
	case KindRequirement:
		return withComment(canonicalRequirement(l.Req), l.Req.Comment)
	case KindVCS:
		return withComment(canonicalVCS(l.VCS), l.VCS.Comment)
	case KindOption:
		return withComment(l.Option, l.Comment)
	default:
		return strings.TrimSpace(l.Raw)
	}
}

func canonicalRequirement(r *Requirement) string {
	var b strings.Builder
	b.WriteString(r.Display)
	if len(r.Extras) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteByte(']')
	}
	if len(r.Specifiers) > 0 {
		b.WriteByte(' ')
		b.WriteString(r.Specifiers.String())
	}
	if r.Marker != "" {
		b.WriteString(" ; ")
		b.WriteString(r.Marker)
	}
	return b.String()
}

func canonicalVCS(v *VCSRef) string {
	var b strings.Builder
	b.WriteString(v.VCS)
	b.WriteByte('+')
	b.WriteString(v.URL)
	if v.Rev != "" {
		b.WriteByte('@')
		b.WriteString(v.Rev)
	}
	if v.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(v.Fragment)
	}
	return b.String()
}

func withComment(text, comment string) string {
	if comment == "" {
		return text
	}
	return text + "  # " + comment
}
