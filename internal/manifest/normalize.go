// SPDX-License-Identifier: MIT

package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nameRe is the accepted distribution name charset: ASCII letters, digits,
// and single ".", "_", "-" separators, starting and ending alphanumeric.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

var collapseRe = regexp.MustCompile(`[-_.]+`)

// NormalizeName lowercases name and collapses runs of "-", "_" and "." to a
// single "-", so "Typing_Extensions" and "typing.extensions" compare equal.
func NormalizeName(name string) string {
	return strings.ToLower(collapseRe.ReplaceAllString(name, "-"))
}

// ValidateName checks that name is a well-formed distribution name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty package name")
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// normalizeInput prepares a logical line for parsing: NFC normalization,
// then whitespace trimming. Manifests written on macOS frequently arrive in
// NFD form; comparisons and the name charset assume NFC.
func normalizeInput(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
