package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	Version = "1.2.3"
	defer func() { Version = "dev" }()

	out := String()
	if !strings.HasPrefix(out, "version: 1.2.3\n") || !strings.Contains(out, "go: go") {
		t.Fatalf("unexpected version output: %q", out)
	}
}
