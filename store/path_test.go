package store

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPath_MissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandPath("/data/${PRESENT}/${MISSING}.journal")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "MISSING") {
		t.Fatalf("expected missing var name in error, got: %v", err)
	}
}

func TestExpandPath_DollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	out, err := ExpandPath("/tmp/$$${X}")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if out != "/tmp/$y" {
		t.Fatalf("ExpandPath() = %q, want %q", out, "/tmp/$y")
	}
}

func TestExpandPath_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/cache/fib.journal", filepath.Join(home, "cache", "fib.journal")},
		{"/abs/~/x", "/abs/~/x"},
		{"relative/path", "relative/path"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		want string
	}{
		{"fib", "fib.journal"},
		{"pkg.(*Client).Fetch", "pkg._Client_.Fetch.journal"},
		{"../../etc/passwd", "etc_passwd.journal"},
		{"", "default.journal"},
	}
	for _, tt := range tests {
		got, err := DefaultPath(tt.name)
		if err != nil {
			t.Fatalf("DefaultPath(%q) error = %v", tt.name, err)
		}
		want := filepath.Join(home, DefaultDir, tt.want)
		if got != want {
			t.Errorf("DefaultPath(%q) = %q, want %q", tt.name, got, want)
		}
	}
}
