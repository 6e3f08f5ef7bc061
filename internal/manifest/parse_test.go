// SPDX-License-Identifier: MIT
package manifest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const devManifest = `-r requirements.txt

coverage >= 4.4.2
mock >= 2.0.0
Pillow >= 5.0.0
selenium >= 3.8.1
sphinx >= 1.8.1
ipython >= 6.2.1
git+https://github.com/korepwx/pytest#egg=pytest
# Notice: do not install TensorFlow for a non-accelerated build.
`

func mustParse(t *testing.T, content, path string) *File {
	t.Helper()
	f, err := Parse(strings.NewReader(content), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestParseDevManifest(t *testing.T) {
	f := mustParse(t, devManifest, "requirements-dev.txt")

	incs := f.Includes()
	if len(incs) != 1 || incs[0].Path != "requirements.txt" {
		t.Fatalf("includes = %+v", incs)
	}

	reqs := f.Requirements()
	wantNames := []string{"coverage", "mock", "pillow", "selenium", "sphinx", "ipython"}
	var gotNames []string
	for _, r := range reqs {
		gotNames = append(gotNames, r.Name)
	}
	if diff := cmp.Diff(wantNames, gotNames); diff != "" {
		t.Fatalf("requirement names mismatch (-want +got):\n%s", diff)
	}
	if got := reqs[0].Specifiers.String(); got != ">= 4.4.2" {
		t.Fatalf("coverage specifier = %q", got)
	}
	if reqs[2].Display != "Pillow" {
		t.Fatalf("display name not preserved: %q", reqs[2].Display)
	}

	refs := f.VCSRefs()
	if len(refs) != 1 {
		t.Fatalf("vcs refs = %+v", refs)
	}
	ref := refs[0]
	if ref.VCS != "git" || ref.URL != "https://github.com/korepwx/pytest" || ref.Egg != "pytest" || ref.Rev != "" {
		t.Fatalf("vcs ref = %+v", ref)
	}

	if len(f.Invalid()) != 0 {
		t.Fatalf("unexpected invalid lines: %+v", f.Invalid())
	}

	// The exclusion notice must survive as a comment line with provenance.
	last := f.Lines[len(f.Lines)-1]
	if last.Kind != KindComment || !strings.Contains(last.Comment, "TensorFlow") {
		t.Fatalf("trailing comment lost: %+v", last)
	}
}

func TestParseLineKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
	}{
		{"blank", "   ", KindBlank},
		{"comment", "# dev deps", KindComment},
		{"include", "-r base.txt", KindInclude},
		{"include long form", "--requirement base.txt", KindInclude},
		{"option index url", "--index-url https://pypi.example.org/simple", KindOption},
		{"option editable", "-e .", KindOption},
		{"plain requirement", "six", KindRequirement},
		{"requirement with extras", "requests[socks,security] >= 2.18", KindRequirement},
		{"requirement with marker", `mock >= 2.0.0 ; python_version < "3.3"`, KindRequirement},
		{"vcs with rev", "git+https://github.com/korepwx/pytest@v3.2#egg=pytest", KindVCS},
		{"vcs ssh userinfo", "git+ssh://git@github.com/korepwx/pytest#egg=pytest", KindVCS},
		{"invalid specifier", "coverage >= x.y", KindInvalid},
		{"dash-prefixed unknown option", "-coverage >= 1.0 --", KindOption},
		{"bad include arity", "-r a.txt b.txt", KindInvalid},
		{"empty extras", "name[] >= 1.0", KindInvalid},
		{"bad name chars", "co verage >= 1.0", KindInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := mustParse(t, tc.in+"\n", "t.txt")
			if len(f.Lines) != 1 {
				t.Fatalf("expected 1 logical line, got %d", len(f.Lines))
			}
			if got := f.Lines[0].Kind; got != tc.kind {
				t.Fatalf("kind = %v, want %v (err=%v)", got, tc.kind, f.Lines[0].Err)
			}
		})
	}
}

func TestParseContinuationAndCRLF(t *testing.T) {
	in := "coverage >= \\\r\n    4.4.2\r\nmock >= 2.0.0\r\n"
	f := mustParse(t, in, "t.txt")

	if len(f.Lines) != 2 {
		t.Fatalf("expected 2 logical lines, got %d", len(f.Lines))
	}
	if f.Lines[0].Kind != KindRequirement || f.Lines[0].Req.Name != "coverage" {
		t.Fatalf("continuation line not joined: %+v", f.Lines[0])
	}
	if got := f.Lines[0].Req.Specifiers.String(); got != ">= 4.4.2" {
		t.Fatalf("joined specifier = %q", got)
	}
	// Provenance points at the first physical line.
	if f.Lines[0].Number != 1 || f.Lines[1].Number != 3 {
		t.Fatalf("line numbers = %d, %d", f.Lines[0].Number, f.Lines[1].Number)
	}
}

func TestParseContinuationAtEOF(t *testing.T) {
	f := mustParse(t, `mock >= 2.0.0 \`, "t.txt")
	if len(f.Lines) != 1 || f.Lines[0].Kind != KindRequirement {
		t.Fatalf("trailing continuation mishandled: %+v", f.Lines)
	}
}

func TestParseBOM(t *testing.T) {
	f := mustParse(t, "\ufeffcoverage >= 4.4.2\n", "t.txt")
	if f.Lines[0].Kind != KindRequirement {
		t.Fatalf("BOM not stripped: %+v", f.Lines[0])
	}
}

func TestVCSRevParsing(t *testing.T) {
	tests := []struct {
		in       string
		url, rev string
	}{
		{"git+https://github.com/o/r", "https://github.com/o/r", ""},
		{"git+https://github.com/o/r@v1.2", "https://github.com/o/r", "v1.2"},
		{"git+ssh://git@github.com/o/r@abc123", "ssh://git@github.com/o/r", "abc123"},
		{"git+ssh://git@github.com/o/r", "ssh://git@github.com/o/r", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			ref, err := parseVCS(tc.in)
			if err != nil {
				t.Fatalf("parseVCS: %v", err)
			}
			if ref.URL != tc.url || ref.Rev != tc.rev {
				t.Fatalf("got url=%q rev=%q, want url=%q rev=%q", ref.URL, ref.Rev, tc.url, tc.rev)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Pillow", "pillow"},
		{"Typing_Extensions", "typing-extensions"},
		{"zope.interface", "zope-interface"},
		{"a--b__c..d", "a-b-c-d"},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
