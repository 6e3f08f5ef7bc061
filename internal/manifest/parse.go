// SPDX-License-Identifier: MIT

package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/reqwatch/internal/pep440"
)

// ErrSpecifier marks parse failures caused by a malformed version constraint,
// as opposed to an unparseable line shape. The linter reports the two
// differently.
var ErrSpecifier = errors.New("malformed specifier")

// vcsPrefixes are the recognized direct-source schemes.
var vcsPrefixes = []string{"git+", "hg+", "svn+", "bzr+"}

// ParseFile opens and parses the manifest at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path)
}

// Parse reads a manifest from r. Malformed lines never abort the parse; they
// are recorded as KindInvalid with a diagnostic so the linter can report
// every problem with file/line provenance. Only I/O errors are returned.
func Parse(r io.Reader, path string) (*File, error) {
	file := &File{Path: path}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		logical   strings.Builder
		startLine int
		physLine  int
		first     = true
	)

	flush := func() {
		if startLine == 0 {
			return
		}
		raw := logical.String()
		logical.Reset()
		file.Lines = append(file.Lines, parseLine(raw, startLine))
		startLine = 0
	}

	for scanner.Scan() {
		physLine++
		text := scanner.Text()
		if first {
			text = strings.TrimPrefix(text, "\ufeff")
			first = false
		}
		text = strings.TrimSuffix(text, "\r")

		if startLine == 0 {
			startLine = physLine
		} else {
			logical.WriteByte(' ')
		}

		if strings.HasSuffix(text, `\`) {
			// Continuation: join with the next physical line.
			logical.WriteString(strings.TrimSuffix(text, `\`))
			continue
		}
		logical.WriteString(text)
		flush()
	}
	// A trailing backslash at EOF continues into nothing; flush what we have.
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return file, nil
}

// parseLine classifies and parses one logical line.
func parseLine(raw string, number int) Line {
	line := Line{Number: number, Raw: raw}
	text := normalizeInput(raw)

	switch {
	case text == "":
		line.Kind = KindBlank
		return line

	case strings.HasPrefix(text, "#"):
		line.Kind = KindComment
		line.Comment = strings.TrimSpace(strings.TrimPrefix(text, "#"))
		return line
	}

	text, comment := splitComment(text)
	if text == "" {
		// Only a comment remained after splitting; classify as comment.
		line.Kind = KindComment
		line.Comment = comment
		return line
	}

	if strings.HasPrefix(text, "-") {
		return parseOption(line, text, comment)
	}

	if isVCS(text) {
		ref, err := parseVCS(text)
		if err != nil {
			line.Kind = KindInvalid
			line.Err = err
			return line
		}
		ref.Comment = comment
		line.Kind = KindVCS
		line.VCS = ref
		return line
	}

	req, err := parseRequirement(text)
	if err != nil {
		line.Kind = KindInvalid
		line.Err = err
		return line
	}
	req.Comment = comment
	line.Kind = KindRequirement
	line.Req = req
	return line
}

// splitComment separates a trailing comment. A "#" starts a comment only at
// the beginning of the line or after whitespace; "#egg=" fragments in VCS
// URLs are therefore untouched.
func splitComment(text string) (rest, comment string) {
	for i := 0; i < len(text); i++ {
		if text[i] != '#' {
			continue
		}
		if i == 0 || text[i-1] == ' ' || text[i-1] == '\t' {
			return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:])
		}
	}
	return text, ""
}

// parseOption handles "-"/"--" directive lines. Only the include directive is
// interpreted; everything else is preserved verbatim for the linter.
func parseOption(line Line, text, comment string) Line {
	fields := strings.Fields(text)
	opt := fields[0]

	if opt == "-r" || opt == "--requirement" {
		if len(fields) != 2 {
			line.Kind = KindInvalid
			line.Err = fmt.Errorf("%s expects exactly one path", opt)
			return line
		}
		line.Kind = KindInclude
		line.Include = &Include{Path: fields[1], Comment: comment}
		return line
	}

	line.Kind = KindOption
	line.Option = text
	line.Comment = comment
	return line
}

func isVCS(text string) bool {
	for _, p := range vcsPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// parseVCS parses a direct source reference of the form
// vcs+scheme://host/path[@rev][#fragment].
func parseVCS(text string) (*VCSRef, error) {
	if strings.ContainsAny(text, " \t") {
		return nil, fmt.Errorf("vcs reference contains whitespace: %q", text)
	}

	plus := strings.Index(text, "+")
	ref := &VCSRef{VCS: text[:plus]}
	rest := text[plus+1:]

	if hash := strings.Index(rest, "#"); hash >= 0 {
		ref.Fragment = rest[hash+1:]
		rest = rest[:hash]
		for _, kv := range strings.Split(ref.Fragment, "&") {
			if v, ok := strings.CutPrefix(kv, "egg="); ok {
				ref.Egg = v
			}
		}
		if ref.Egg != "" {
			if err := ValidateName(ref.Egg); err != nil {
				return nil, fmt.Errorf("egg fragment: %w", err)
			}
		}
	}

	schemeEnd := strings.Index(rest, "://")
	if schemeEnd < 0 {
		return nil, fmt.Errorf("vcs reference %q has no scheme", text)
	}
	// A revision is the text after the last "@" beyond the authority; an "@"
	// before the first path slash is userinfo (git+ssh://git@host/...).
	tail := rest[schemeEnd+3:]
	slash := strings.Index(tail, "/")
	if at := strings.LastIndex(tail, "@"); at >= 0 && slash >= 0 && at > slash {
		ref.Rev = tail[at+1:]
		rest = rest[:schemeEnd+3+at]
		if ref.Rev == "" {
			return nil, fmt.Errorf("vcs reference %q has empty revision", text)
		}
	}

	ref.URL = rest
	return ref, nil
}

// parseRequirement parses "name[extras] specifiers ; marker".
func parseRequirement(text string) (*Requirement, error) {
	req := &Requirement{}

	if semi := strings.Index(text, ";"); semi >= 0 {
		req.Marker = strings.TrimSpace(text[semi+1:])
		text = strings.TrimSpace(text[:semi])
		if req.Marker == "" {
			return nil, fmt.Errorf("empty environment marker")
		}
	}

	// Split the name (+ optional extras) from the specifier text at the first
	// comparator character or whitespace.
	nameEnd := strings.IndexAny(text, "<>=!~ \t")
	name := text
	specText := ""
	if nameEnd >= 0 {
		name = strings.TrimSpace(text[:nameEnd])
		specText = strings.TrimSpace(text[nameEnd:])
	}

	if open := strings.Index(name, "["); open >= 0 {
		if !strings.HasSuffix(name, "]") {
			return nil, fmt.Errorf("unterminated extras in %q", text)
		}
		extras := name[open+1 : len(name)-1]
		name = name[:open]
		if strings.TrimSpace(extras) == "" {
			return nil, fmt.Errorf("empty extras in %q", text)
		}
		for _, e := range strings.Split(extras, ",") {
			e = strings.TrimSpace(e)
			if err := ValidateName(e); err != nil {
				return nil, fmt.Errorf("extra: %w", err)
			}
			req.Extras = append(req.Extras, e)
		}
	}

	if err := ValidateName(name); err != nil {
		return nil, err
	}
	req.Display = name
	req.Name = NormalizeName(name)

	if specText != "" {
		set, err := pep440.ParseSpecifierSet(specText)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrSpecifier, err)
		}
		req.Specifiers = set
	}
	return req, nil
}
