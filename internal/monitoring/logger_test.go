package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	Logf("emitted delivery %d", 3)
	if len(lines) != 1 || lines[0] != "emitted delivery 3" {
		t.Fatalf("lines = %q, want [\"emitted delivery 3\"]", lines)
	}

	// nil installs a no-op.
	SetLogger(nil)
	Logf("dropped %s", "silently")
	if len(lines) != 1 {
		t.Errorf("no-op logger still wrote: %q", lines)
	}
}
