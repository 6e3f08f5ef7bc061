// SPDX-License-Identifier: MIT

package pep440

import (
	"fmt"
	"strings"
)

// Operator is a version comparison operator.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpCompatible   Operator = "~="
	OpArbitrary    Operator = "==="
)

// operators ordered longest-first so "==" does not shadow "===".
var operators = []Operator{OpArbitrary, OpCompatible, OpEqual, OpNotEqual, OpGreaterEqual, OpLessEqual, OpGreater, OpLess}

// Specifier is a single comparator clause, e.g. ">= 1.2.3" or "== 1.5.*".
type Specifier struct {
	Op       Operator
	Version  Version
	Wildcard bool   // trailing ".*", only valid with == and !=
	Raw      string // version text as written, used by === and String
}

// ParseSpecifier parses one comparator clause.
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	var op Operator
	for _, cand := range operators {
		if strings.HasPrefix(s, string(cand)) {
			op = cand
			break
		}
	}
	if op == "" {
		return Specifier{}, fmt.Errorf("specifier %q has no comparator", s)
	}

	verText := strings.TrimSpace(strings.TrimPrefix(s, string(op)))
	if verText == "" {
		return Specifier{}, fmt.Errorf("specifier %q has no version", s)
	}

	spec := Specifier{Op: op, Raw: verText}

	if op == OpArbitrary {
		// === compares the raw text; no version grammar is imposed.
		return spec, nil
	}

	if strings.HasSuffix(verText, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Specifier{}, fmt.Errorf("wildcard version %q only valid with == or !=", s)
		}
		spec.Wildcard = true
		verText = strings.TrimSuffix(verText, ".*")
	}

	v, err := Parse(verText)
	if err != nil {
		return Specifier{}, err
	}
	if spec.Wildcard && (v.Pre || v.Post || v.Dev || v.Local != "") {
		return Specifier{}, fmt.Errorf("wildcard %q must end on a release segment", s)
	}
	if op == OpCompatible && len(v.Release) < 2 {
		return Specifier{}, fmt.Errorf("~= requires at least two release segments: %q", s)
	}
	spec.Version = v
	return spec, nil
}

// String renders the specifier canonically with a single space after the operator.
func (s Specifier) String() string {
	if s.Op == OpArbitrary {
		return string(s.Op) + " " + s.Raw
	}
	if s.Wildcard {
		return string(s.Op) + " " + s.Version.String() + ".*"
	}
	return string(s.Op) + " " + s.Version.String()
}

// Match reports whether candidate satisfies the clause.
func (s Specifier) Match(candidate Version) bool {
	switch s.Op {
	case OpArbitrary:
		return strings.EqualFold(strings.TrimSpace(candidate.raw), s.Raw) ||
			candidate.String() == s.Raw
	case OpEqual:
		if s.Wildcard {
			return releasePrefixMatch(candidate, s.Version)
		}
		return Compare(candidate, s.Version) == 0
	case OpNotEqual:
		if s.Wildcard {
			return !releasePrefixMatch(candidate, s.Version)
		}
		return Compare(candidate, s.Version) != 0
	case OpGreaterEqual:
		return Compare(candidate, s.Version) >= 0
	case OpLessEqual:
		return Compare(candidate, s.Version) <= 0
	case OpGreater:
		return Compare(candidate, s.Version) > 0
	case OpLess:
		return Compare(candidate, s.Version) < 0
	case OpCompatible:
		// ~= X.Y.Z means >= X.Y.Z and == X.Y.*
		if Compare(candidate, s.Version) < 0 {
			return false
		}
		prefix := s.Version
		prefix.Release = prefix.Release[:len(prefix.Release)-1]
		prefix.Pre, prefix.Post, prefix.Dev = false, false, false
		return releasePrefixMatch(candidate, prefix)
	}
	return false
}

// releasePrefixMatch reports whether candidate's epoch and leading release
// segments equal prefix's.
func releasePrefixMatch(candidate, prefix Version) bool {
	if candidate.Epoch != prefix.Epoch {
		return false
	}
	for i, seg := range prefix.Release {
		var c int
		if i < len(candidate.Release) {
			c = candidate.Release[i]
		}
		if c != seg {
			return false
		}
	}
	return true
}

// SpecifierSet is a comma-separated conjunction of clauses.
type SpecifierSet []Specifier

// ParseSpecifierSet parses "name-free" constraint text such as
// ">=1.0, <2.0, !=1.5.*". An empty string yields an empty (match-all) set.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var set SpecifierSet
	for _, clause := range strings.Split(s, ",") {
		spec, err := ParseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// String renders the set canonically, clauses joined by ", ".
func (set SpecifierSet) String() string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// Match reports whether candidate satisfies every clause.
func (set SpecifierSet) Match(candidate Version) bool {
	for _, s := range set {
		if !s.Match(candidate) {
			return false
		}
	}
	return true
}

// Pinned reports whether the set pins an exact version (== or === without wildcard).
func (set SpecifierSet) Pinned() bool {
	for _, s := range set {
		if (s.Op == OpEqual && !s.Wildcard) || s.Op == OpArbitrary {
			return true
		}
	}
	return false
}

// Conflicts reports whether the set is trivially unsatisfiable. It detects
// bound inversions (e.g. ">= 2.0, < 1.0"), pins outside the bounds, pins
// negated by !=, and contradictory pins. It does not attempt to prove
// satisfiability in general.
func (set SpecifierSet) Conflicts() bool {
	var (
		lower, upper       *Specifier
		pins               []Version
		excluded           []Specifier
		hasLower, hasUpper bool
	)

	for i := range set {
		s := set[i]
		switch s.Op {
		case OpGreater, OpGreaterEqual:
			if !hasLower || Compare(s.Version, lower.Version) > 0 {
				lower, hasLower = &set[i], true
			}
		case OpLess, OpLessEqual:
			if !hasUpper || Compare(s.Version, upper.Version) < 0 {
				upper, hasUpper = &set[i], true
			}
		case OpCompatible:
			// ~= X.Y.Z implies >= X.Y.Z.
			if !hasLower || Compare(s.Version, lower.Version) > 0 {
				lower, hasLower = &set[i], true
			}
		case OpEqual:
			if !s.Wildcard {
				pins = append(pins, s.Version)
			}
		case OpNotEqual:
			excluded = append(excluded, s)
		}
	}

	if hasLower && hasUpper {
		c := Compare(lower.Version, upper.Version)
		if c > 0 {
			return true
		}
		if c == 0 && (lower.Op == OpGreater || upper.Op == OpLess) {
			return true
		}
	}

	for i := 1; i < len(pins); i++ {
		if Compare(pins[i], pins[0]) != 0 {
			return true
		}
	}
	for _, pin := range pins {
		if hasLower && !lower.Match(pin) {
			return true
		}
		if hasUpper && !upper.Match(pin) {
			return true
		}
		for _, ex := range excluded {
			if !ex.Match(pin) {
				return true
			}
		}
	}
	return false
}
