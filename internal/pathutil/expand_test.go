package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand_HomeShortcut(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("user home dir: %v", err)
	}

	got, err := Expand("~/.ouvidoria/data")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Join(home, ".ouvidoria", "data")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_EnvVar(t *testing.T) {
	t.Setenv("OUVIDORIA_PATH_TEST", "/tmp/ouvidoria-path")

	got, err := Expand("$OUVIDORIA_PATH_TEST/records.db")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Clean("/tmp/ouvidoria-path/records.db")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_TildeUserIsLiteral(t *testing.T) {
	got, err := Expand("~other/data")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}
	if got != "~other/data" {
		t.Fatalf("got %q, want the path unchanged", got)
	}
}

func TestExpand_Empty(t *testing.T) {
	got, err := Expand("   ")
	if err != nil || got != "" {
		t.Fatalf("Expand(blank) = %q, %v", got, err)
	}
}

func TestExpand_HomeEnvTilde(t *testing.T) {
	t.Setenv("HOME", "~")

	got, err := Expand("~/.ouvidoria/data")
	if err != nil {
		// Without an absolute home from the user database there is
		// nothing left to resolve against.
		t.Skipf("no absolute home directory available: %v", err)
	}
	if got == "" || got[0] == '~' {
		t.Fatalf("path not expanded: %q", got)
	}
}
