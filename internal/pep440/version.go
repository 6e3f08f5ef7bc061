// SPDX-License-Identifier: MIT

// Package pep440 implements parsing, ordering and specifier matching for
// Python package version numbers of the form
// [N!]N(.N)*[{a|b|rc}N][.postN][.devN][+local].
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed package version. The zero value is not a valid version;
// use Parse.
type Version struct {
	Epoch   int
	Release []int

	// Pre-release segment (a1, b2, rc3). Phase is "a", "b" or "rc".
	Pre    bool
	Phase  string
	PreNum int

	// Post-release segment (.postN).
	Post    bool
	PostNum int

	// Development segment (.devN).
	Dev    bool
	DevNum int

	// Local version label (+foo.1). Ignored for public ordering.
	Local string

	raw string
}

var versionRe = regexp.MustCompile(`^(?:(\d+)!)?(\d+(?:\.\d+)*)` +
	`(?:(a|b|rc)(\d+))?` +
	`(?:\.post(\d+))?` +
	`(?:\.dev(\d+))?` +
	`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`)

// Parse parses a version string. Leading "v" and surrounding whitespace are
// tolerated; everything else must match the grammar exactly.
func Parse(s string) (Version, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "v")

	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}

	v := Version{raw: raw}
	if m[1] != "" {
		v.Epoch, _ = strconv.Atoi(m[1])
	}
	for _, part := range strings.Split(m[2], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid release segment in %q", raw)
		}
		v.Release = append(v.Release, n)
	}
	if m[3] != "" {
		v.Pre = true
		v.Phase = m[3]
		v.PreNum, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" {
		v.Post = true
		v.PostNum, _ = strconv.Atoi(m[5])
	}
	if m[6] != "" {
		v.Dev = true
		v.DevNum, _ = strconv.Atoi(m[6])
	}
	v.Local = m[7]
	return v, nil
}

// MustParse parses s and panics on error. Intended for tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical form of the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, r := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(r))
	}
	if v.Pre {
		fmt.Fprintf(&b, "%s%d", v.Phase, v.PreNum)
	}
	if v.Post {
		fmt.Fprintf(&b, ".post%d", v.PostNum)
	}
	if v.Dev {
		fmt.Fprintf(&b, ".dev%d", v.DevNum)
	}
	if v.Local != "" {
		fmt.Fprintf(&b, "+%s", v.Local)
	}
	return b.String()
}

// IsPrerelease reports whether the version carries a pre or dev segment.
func (v Version) IsPrerelease() bool {
	return v.Pre || v.Dev
}

// phaseRank orders pre-release phases: a < b < rc.
func phaseRank(phase string) int {
	switch phase {
	case "a":
		return 0
	case "b":
		return 1
	case "rc":
		return 2
	}
	return 3
}

// Compare returns -1, 0 or +1 ordering v against o per the public ordering
// rules: epoch, then release (zero-padded), then dev < pre < final < post.
// Local labels do not participate.
func Compare(v, o Version) int {
	if v.Epoch != o.Epoch {
		return cmpInt(v.Epoch, o.Epoch)
	}
	if c := cmpRelease(v.Release, o.Release); c != 0 {
		return c
	}

	// Pre-release key: dev-only sorts below every pre-release, which sorts
	// below the final release.
	if c := cmpInt(preKey(v), preKey(o)); c != 0 {
		return c
	}
	if v.Pre && o.Pre {
		if c := cmpInt(phaseRank(v.Phase), phaseRank(o.Phase)); c != 0 {
			return c
		}
		if c := cmpInt(v.PreNum, o.PreNum); c != 0 {
			return c
		}
	}

	// Post-release: absent sorts below present.
	if c := cmpInt(postKey(v), postKey(o)); c != 0 {
		return c
	}

	// Dev: present sorts below absent at the same pre/post position.
	return cmpInt(devKey(v), devKey(o))
}

const (
	keyMin = -1 << 40
	keyMax = 1 << 40
)

func preKey(v Version) int {
	switch {
	case v.Pre:
		return 0
	case !v.Post && v.Dev:
		return keyMin
	default:
		return keyMax
	}
}

func postKey(v Version) int {
	if v.Post {
		return v.PostNum
	}
	return keyMin
}

func devKey(v Version) int {
	if v.Dev {
		return v.DevNum
	}
	return keyMax
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpRelease compares release tuples with implicit zero padding, so
// 1.0 == 1.0.0 and 1.2 < 1.10.
func cmpRelease(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	return 0
}
