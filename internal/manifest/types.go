// SPDX-License-Identifier: MIT

// Package manifest parses and writes pip-style requirements manifests.
//
// A manifest is line-oriented text. Each logical line (after backslash
// continuation joining) is a blank line, a comment, an include directive
// ("-r other.txt"), an option directive, a package requirement with an
// optional version constraint set, or a direct VCS source reference.
package manifest

import (
	"github.com/ManuGH/reqwatch/internal/pep440"
)

// Kind classifies a logical manifest line.
type Kind int

const (
	KindBlank Kind = iota
	KindComment
	KindRequirement
	KindVCS
	KindInclude
	KindOption
	KindInvalid
)

// String returns a stable name for the kind, used in logs and reports.
func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindRequirement:
		return "requirement"
	case KindVCS:
		return "vcs"
	case KindInclude:
		return "include"
	case KindOption:
		return "option"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Requirement is a named package requirement.
type Requirement struct {
	// Name is the normalized distribution name (lowercase, runs of
	// "-", "_" and "." collapsed to "-").
	Name string
	// Display is the name as written in the manifest.
	Display string
	Extras  []string
	// Specifiers is the parsed constraint set; empty means "any version".
	Specifiers pep440.SpecifierSet
	// Marker is the raw environment marker after ";" if present.
	Marker string
	// Comment is the trailing comment without the leading "#".
	Comment string
}

// VCSRef is a direct source reference such as
// "git+https://github.com/korepwx/pytest#egg=pytest".
type VCSRef struct {
	// VCS is the version control system ("git", "hg", ...).
	VCS string
	// URL is the repository URL without the VCS prefix and fragment.
	URL string
	// Rev is the revision after "@" if present.
	Rev string
	// Egg is the project name from the "#egg=" fragment if present.
	Egg string
	// Fragment is the raw URL fragment without the leading "#".
	Fragment string
	Comment  string
}

// Include is a "-r <path>" directive. Path is as written, relative paths
// resolve against the including file's directory.
type Include struct {
	Path    string
	Comment string
}

// Line is one logical manifest line with provenance.
type Line struct {
	// Number is the 1-based number of the first physical line.
	Number int
	// Raw is the logical line text after continuation joining.
	Raw  string
	Kind Kind

	Req     *Requirement
	VCS     *VCSRef
	Include *Include
	// Option holds the raw directive for KindOption lines (e.g. "--index-url ...").
	Option string
	// Err holds the parse diagnostic for KindInvalid lines.
	Err error
	// Comment holds the comment text for KindComment lines.
	Comment string
}

// File is a parsed manifest.
type File struct {
	Path  string
	Lines []Line
}

// Requirements returns the named requirements in file order.
func (f *File) Requirements() []*Requirement {
	var out []*Requirement
	for i := range f.Lines {
		if f.Lines[i].Kind == KindRequirement {
			out = append(out, f.Lines[i].Req)
		}
	}
	return out
}

// VCSRefs returns the direct source references in file order.
func (f *File) VCSRefs() []*VCSRef {
	var out []*VCSRef
	for i := range f.Lines {
		if f.Lines[i].Kind == KindVCS {
			out = append(out, f.Lines[i].VCS)
		}
	}
	return out
}

// Includes returns the include directives in file order.
func (f *File) Includes() []*Include {
	var out []*Include
	for i := range f.Lines {
		if f.Lines[i].Kind == KindInclude {
			out = append(out, f.Lines[i].Include)
		}
	}
	return out
}

// Invalid returns the lines that failed to parse.
func (f *File) Invalid() []Line {
	var out []Line
	for _, l := range f.Lines {
		if l.Kind == KindInvalid {
			out = append(out, l)
		}
	}
	return out
}
