package main

import (
	"context"
	"os"
	"testing"
)

func TestSplitGlobalFlagsSeparatesKnownFromPassthrough(t *testing.T) {
	passthrough, globals := splitGlobalFlags([]string{"my-plan", "-json", "-worktree", "wt-1", "-log-level", "debug"})

	wantPass := []string{"my-plan", "-worktree", "wt-1"}
	if len(passthrough) != len(wantPass) {
		t.Fatalf("passthrough = %v, want %v", passthrough, wantPass)
	}
	for i, v := range wantPass {
		if passthrough[i] != v {
			t.Fatalf("passthrough[%d] = %q, want %q", i, passthrough[i], v)
		}
	}

	wantGlobals := []string{"-json", "-log-level", "debug"}
	if len(globals) != len(wantGlobals) {
		t.Fatalf("globals = %v, want %v", globals, wantGlobals)
	}
}

func TestSplitGlobalFlagsIgnoresDanglingValueFlag(t *testing.T) {
	// -config with nothing after it is not a global flag pair; it falls
	// through to passthrough rather than panicking on an out-of-range index.
	passthrough, globals := splitGlobalFlags([]string{"-config"})
	if len(globals) != 0 {
		t.Fatalf("expected no globals, got %v", globals)
	}
	if len(passthrough) != 1 || passthrough[0] != "-config" {
		t.Fatalf("expected passthrough to carry the dangling flag, got %v", passthrough)
	}
}

func TestIsAbs(t *testing.T) {
	cases := map[string]bool{
		"/var/tmp/state.db": true,
		".tugtool/state.db": false,
		"":                  false,
	}
	for path, want := range cases {
		if got := isAbs(path); got != want {
			t.Errorf("isAbs(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRunUnknownCommandReturnsGenericExitCode(t *testing.T) {
	code := run([]string{"not-a-real-command"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunNoArgsPrintsUsageAndReturnsGenericExitCode(t *testing.T) {
	code := run(nil)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRunIDRoundTripsThroughContext(t *testing.T) {
	if got := runIDFromContext(context.Background()); got != "" {
		t.Fatalf("runIDFromContext(no id) = %q, want empty", got)
	}

	ctx := withRunID(context.Background(), "abc-123")
	if got := runIDFromContext(ctx); got != "abc-123" {
		t.Fatalf("runIDFromContext() = %q, want %q", got, "abc-123")
	}
}

func TestRunDoctorInsideFreshTempDirSucceeds(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	code := run([]string{"doctor"})
	if code != 0 && code != 1 {
		t.Fatalf("doctor exit code = %d, want 0 or 1", code)
	}
}
