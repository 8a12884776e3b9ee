// Package commit implements tug's atomic per-step commit pipeline: log
// rotation, log prepend, staging, trailer injection, and the commit itself,
// followed by a best-effort state-store completion call (spec §4.6).
package commit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tugtool/tug/internal/planhash"
)

const (
	logLineThreshold = 500
	logByteThreshold = 102400

	logRelPath     = ".tugtool/tugplan-implementation-log.md"
	archiveRelPath = ".tugtool/archive"
)

const logHeader = `# Tug Implementation Log

This file documents the implementation progress for this project.

**Format:** Each entry records a completed step with tasks, files, and verification results.

Entries are sorted newest-first.

---

`

// RotateResult reports whether the implementation log was archived.
type RotateResult struct {
	Rotated      bool
	ArchivedPath string
	Reason       string
}

// RotateLog archives worktree's implementation log to
// .tugtool/archive/implementation-log-<timestamp>.md and replaces it with a
// fresh header when it exceeds 500 lines or 100KiB, or when force is set.
func RotateLog(worktree string, force bool) (RotateResult, error) {
	logPath := filepath.Join(worktree, logRelPath)

	content, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return RotateResult{Reason: "not_needed"}, nil
	}
	if err != nil {
		return RotateResult{}, fmt.Errorf("commit: rotate log: read: %w", err)
	}

	lineCount := strings.Count(string(content), "\n")
	byteCount := len(content)

	reason := "not_needed"
	switch {
	case force:
		reason = "forced"
	case lineCount > logLineThreshold:
		reason = "line_count_exceeded"
	case byteCount > logByteThreshold:
		reason = "byte_size_exceeded"
	}
	if reason == "not_needed" {
		return RotateResult{Reason: reason}, nil
	}

	archiveDir := filepath.Join(worktree, archiveRelPath)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return RotateResult{}, fmt.Errorf("commit: rotate log: mkdir archive: %w", err)
	}

	filename := fmt.Sprintf("implementation-log-%s.md", planhash.FormatArchive(planhash.NowUTC()))
	archivePath := filepath.Join(archiveDir, filename)
	if err := os.Rename(logPath, archivePath); err != nil {
		return RotateResult{}, fmt.Errorf("commit: rotate log: archive: %w", err)
	}

	if err := os.WriteFile(logPath, []byte(logHeader), 0o644); err != nil {
		return RotateResult{}, fmt.Errorf("commit: rotate log: write fresh log: %w", err)
	}

	return RotateResult{
		Rotated:      true,
		ArchivedPath: filepath.Join(archiveRelPath, filename),
		Reason:       reason,
	}, nil
}

// PrependResult reports the entry added to the implementation log.
type PrependResult struct {
	Step      string
	Plan      string
	Timestamp string
}

// PrependLog inserts a dated entry for a completed step right after the
// log's header separator (the first blank line following "---"), writing
// via a temp-file-and-rename for atomicity.
func PrependLog(worktree, step, planPath, summary string) (PrependResult, error) {
	logPath := filepath.Join(worktree, logRelPath)

	content, err := os.ReadFile(logPath)
	if err != nil {
		return PrependResult{}, fmt.Errorf("commit: prepend log: implementation log does not exist, run `tug init` first: %w", err)
	}

	timestamp := planhash.FormatISO8601(planhash.NowUTC())
	entry := buildLogEntry(step, planPath, summary, timestamp)

	insertAt := findInsertionPoint(string(content))
	var sb strings.Builder
	sb.WriteString(string(content[:insertAt]))
	sb.WriteString(entry)
	sb.WriteString(string(content[insertAt:]))

	tmpPath := logPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(sb.String()), 0o644); err != nil {
		return PrependResult{}, fmt.Errorf("commit: prepend log: write temp: %w", err)
	}
	if err := os.Rename(tmpPath, logPath); err != nil {
		return PrependResult{}, fmt.Errorf("commit: prepend log: rename: %w", err)
	}

	return PrependResult{Step: step, Plan: planPath, Timestamp: timestamp}, nil
}

func buildLogEntry(step, planPath, summary, timestamp string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "step: %s\n", step)
	fmt.Fprintf(&sb, "date: %s\n", timestamp)
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "## %s: %s\n\n", step, summary)
	sb.WriteString("**Files changed:**\n")
	fmt.Fprintf(&sb, "- %s\n\n", planPath)
	sb.WriteString("---\n\n")
	return sb.String()
}

// findInsertionPoint locates where a new entry should land: right after
// the "---\n\n" header separator, falling back to "---\n" or the very end.
func findInsertionPoint(content string) int {
	if i := strings.Index(content, "---\n\n"); i >= 0 {
		return i + len("---\n\n")
	}
	if i := strings.Index(content, "---\n"); i >= 0 {
		return i + len("---\n")
	}
	return len(content)
}
