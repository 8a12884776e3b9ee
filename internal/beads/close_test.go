package beads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCloseBeadAndRotateClosesAndChecksLog(t *testing.T) {
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"$BD_ARGS_LOG\"\n" +
		"echo ok\n"
	beadsDir, logPath := writeFakeBD(t, script)
	worktree := filepath.Dir(beadsDir)

	result, err := CloseBeadAndRotate(context.Background(), beadsDir, worktree, "bd-1", "done")
	if err != nil {
		t.Fatalf("CloseBeadAndRotate failed: %v", err)
	}
	if result.BeadID != "bd-1" {
		t.Fatalf("expected bead id bd-1, got %q", result.BeadID)
	}
	if result.Log.Rotated {
		t.Fatalf("expected no rotation without an implementation log present")
	}

	args, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	if !strings.Contains(string(args), "close bd-1 --reason done") {
		t.Fatalf("expected close call with reason, got %q", args)
	}
}

func TestCloseBeadAndRotateWithoutReason(t *testing.T) {
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"$BD_ARGS_LOG\"\n" +
		"echo ok\n"
	beadsDir, logPath := writeFakeBD(t, script)
	worktree := filepath.Dir(beadsDir)

	_, err := CloseBeadAndRotate(context.Background(), beadsDir, worktree, "bd-2", "")
	if err != nil {
		t.Fatalf("CloseBeadAndRotate failed: %v", err)
	}

	args, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	if !strings.Contains(string(args), "close bd-2") || strings.Contains(string(args), "--reason") {
		t.Fatalf("expected plain close call without --reason, got %q", args)
	}
}
