package pipeline

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(&ops, &diag, nil)
	defer SetLogWriters(nil, nil, nil)

	opsf("dropped %d", 3)
	diagf("tuning %s", "note")
	tracef("frame %d", 99)

	if !strings.Contains(ops.String(), "dropped 3") {
		t.Errorf("ops stream = %q, want it to contain 'dropped 3'", ops.String())
	}
	if !strings.Contains(ops.String(), "[pipeline]") {
		t.Errorf("ops stream = %q, want '[pipeline]' prefix", ops.String())
	}
	if !strings.Contains(diag.String(), "tuning note") {
		t.Errorf("diag stream = %q, want it to contain 'tuning note'", diag.String())
	}
}

func TestLogHelpersDisabled(t *testing.T) {
	SetLogWriters(nil, nil, nil)
	// Must not panic with no streams configured.
	opsf("discarded %d", 1)
	diagf("discarded %d", 2)
	tracef("discarded %d", 3)
}

func TestSetLogLevel(t *testing.T) {
	defer SetLogWriters(nil, nil, nil)

	cases := []struct {
		level                string
		wantOps, wantDiag    bool
		wantTrace, wantError bool
	}{
		{level: ""},
		{level: "ops", wantOps: true},
		{level: "diag", wantOps: true, wantDiag: true},
		{level: "trace", wantOps: true, wantDiag: true, wantTrace: true},
		{level: "verbose", wantError: true},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		err := SetLogLevel(tc.level, &buf)
		if tc.wantError {
			if err == nil {
				t.Errorf("SetLogLevel(%q): expected error", tc.level)
			}
			continue
		}
		if err != nil {
			t.Errorf("SetLogLevel(%q): %v", tc.level, err)
			continue
		}
		if got := opsLogger != nil; got != tc.wantOps {
			t.Errorf("SetLogLevel(%q): ops enabled = %v, want %v", tc.level, got, tc.wantOps)
		}
		if got := diagLogger != nil; got != tc.wantDiag {
			t.Errorf("SetLogLevel(%q): diag enabled = %v, want %v", tc.level, got, tc.wantDiag)
		}
		if got := traceLogger != nil; got != tc.wantTrace {
			t.Errorf("SetLogLevel(%q): trace enabled = %v, want %v", tc.level, got, tc.wantTrace)
		}
	}
}
