package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("coverage >= 4.4.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{"plain file", "requirements.txt", false},
		{"nested include", "sub/requirements-dev.txt", false},
		{"dot segments collapse inward", "sub/../requirements.txt", false},
		{"parent escape", "../requirements.txt", true},
		{"deep escape", "sub/../../etc/passwd", true},
		{"absolute", "/etc/passwd", true},
		{"backslash", `..\requirements.txt`, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tc.target)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rel, err := filepath.Rel(root, got)
			if err != nil || rel == ".." {
				t.Fatalf("confined path %q not under root %q", got, root)
			}
		})
	}
}

func TestConfineRelPathSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	if _, err := ConfineRelPath(root, "link/secret.txt"); err == nil {
		t.Fatal("expected symlink escape to be rejected")
	}
}

func TestIsRegularFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "requirements.txt")
	if err := os.WriteFile(p, []byte("mock >= 2.0.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := IsRegularFile(p); err != nil {
		t.Fatalf("regular file rejected: %v", err)
	}
	if err := IsRegularFile(root); err == nil {
		t.Fatal("directory accepted as regular file")
	}
}
