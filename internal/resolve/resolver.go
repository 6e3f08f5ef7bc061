// SPDX-License-Identifier: MIT

// Package resolve flattens a requirements manifest and its "-r" includes
// into a single resolution with per-entry provenance.
package resolve

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ManuGH/reqwatch/internal/fsutil"
	xglog "github.com/ManuGH/reqwatch/internal/log"
	"github.com/ManuGH/reqwatch/internal/manifest"
)

// DefaultMaxDepth bounds the include chain length.
const DefaultMaxDepth = 8

// Entry is one requirement or VCS reference with provenance.
type Entry struct {
	Req *manifest.Requirement
	VCS *manifest.VCSRef

	// Path and Line locate the entry in its defining file.
	Path string
	Line int
	// Chain is the include chain from the root manifest to Path, root first.
	Chain []string
}

// Name returns the normalized package name for the entry, or the egg name
// for VCS references ("" when the reference has no egg fragment).
func (e Entry) Name() string {
	if e.Req != nil {
		return e.Req.Name
	}
	if e.VCS != nil && e.VCS.Egg != "" {
		return manifest.NormalizeName(e.VCS.Egg)
	}
	return ""
}

// Issue is a resolution-level problem: an unreadable, escaping or cyclic
// include.
type Issue struct {
	Path  string // file containing the offending include
	Line  int
	Cycle bool
	Err   error
}

// Resolution is the flattened view of a manifest tree.
type Resolution struct {
	Root    string // root manifest path
	Files   []*manifest.File
	Entries []Entry
	Issues  []Issue
}

// FromFile wraps a single already-parsed manifest in a Resolution, without
// touching the filesystem. Include directives are left unexpanded; used for
// linting posted content.
func FromFile(f *manifest.File) *Resolution {
	res := &Resolution{Root: f.Path, Files: []*manifest.File{f}}
	for i := range f.Lines {
		line := &f.Lines[i]
		switch line.Kind {
		case manifest.KindRequirement:
			res.Entries = append(res.Entries, Entry{Req: line.Req, Path: f.Path, Line: line.Number, Chain: []string{f.Path}})
		case manifest.KindVCS:
			res.Entries = append(res.Entries, Entry{VCS: line.VCS, Path: f.Path, Line: line.Number, Chain: []string{f.Path}})
		}
	}
	return res
}

// Resolver resolves include directives relative to a confinement root.
type Resolver struct {
	// RootDir confines every resolved include; escapes are Issues, not reads.
	RootDir  string
	MaxDepth int

	// parseFile allows tests to stub file loading.
	parseFile func(path string) (*manifest.File, error)
}

// New creates a Resolver confined to rootDir.
func New(rootDir string) *Resolver {
	return &Resolver{
		RootDir:   rootDir,
		MaxDepth:  DefaultMaxDepth,
		parseFile: manifest.ParseFile,
	}
}

// Resolve parses the manifest at rootManifest (a path relative to RootDir)
// and flattens it with all includes. Include problems never abort the
// resolution; they are recorded as Issues so the linter can surface them.
func (r *Resolver) Resolve(ctx context.Context, rootManifest string) (*Resolution, error) {
	logger := xglog.WithComponentFromContext(ctx, "resolve")

	res := &Resolution{Root: rootManifest}
	seen := map[string]bool{}
	stack := map[string]bool{}

	var walk func(rel string, chain []string, fromPath string, fromLine int)
	walk = func(rel string, chain []string, fromPath string, fromLine int) {
		abs, err := fsutil.ConfineRelPath(r.RootDir, rel)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Path: fromPath, Line: fromLine, Err: fmt.Errorf("include %q: %w", rel, err)})
			return
		}

		if stack[abs] {
			res.Issues = append(res.Issues, Issue{Path: fromPath, Line: fromLine, Cycle: true,
				Err: fmt.Errorf("include cycle via %q", rel)})
			return
		}
		if seen[abs] {
			// Diamond include: the file was already expanded once; expanding
			// again would double-count every requirement.
			return
		}
		if len(chain) > r.MaxDepth {
			res.Issues = append(res.Issues, Issue{Path: fromPath, Line: fromLine,
				Err: fmt.Errorf("include depth exceeds %d at %q", r.MaxDepth, rel)})
			return
		}

		if err := fsutil.IsRegularFile(abs); err != nil {
			res.Issues = append(res.Issues, Issue{Path: fromPath, Line: fromLine, Err: fmt.Errorf("include %q: %w", rel, err)})
			return
		}

		file, err := r.parseFile(abs)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Path: fromPath, Line: fromLine, Err: err})
			return
		}
		// Report paths relative to the confinement root.
		file.Path = rel

		seen[abs] = true
		stack[abs] = true
		defer delete(stack, abs)

		res.Files = append(res.Files, file)
		// Copy: sibling includes must not share the chain's backing array.
		chain = append(append([]string(nil), chain...), rel)

		for i := range file.Lines {
			line := &file.Lines[i]
			switch line.Kind {
			case manifest.KindRequirement:
				res.Entries = append(res.Entries, Entry{Req: line.Req, Path: rel, Line: line.Number, Chain: chain})
			case manifest.KindVCS:
				res.Entries = append(res.Entries, Entry{VCS: line.VCS, Path: rel, Line: line.Number, Chain: chain})
			case manifest.KindInclude:
				next := line.Include.Path
				if !filepath.IsAbs(next) {
					next = filepath.Join(filepath.Dir(rel), next)
				}
				walk(next, chain, rel, line.Number)
			}
		}
	}

	walk(rootManifest, nil, rootManifest, 0)

	if len(res.Files) == 0 {
		// The root itself was unreadable; that is a hard error.
		if len(res.Issues) > 0 {
			return nil, fmt.Errorf("resolve %s: %w", rootManifest, res.Issues[0].Err)
		}
		return nil, fmt.Errorf("resolve %s: no manifest found", rootManifest)
	}

	logger.Debug().
		Str(xglog.FieldManifest, rootManifest).
		Int("files", len(res.Files)).
		Int("entries", len(res.Entries)).
		Int("issues", len(res.Issues)).
		Msg("manifest resolved")

	return res, nil
}
