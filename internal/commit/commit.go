package commit

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tugtool/tug/internal/git"
	"github.com/tugtool/tug/internal/state"
)

// ErrMainWorktree is returned when Run is invoked against the repository's
// primary worktree instead of a linked one tug created (spec §4.6: tug
// never auto-commits in the main working copy).
var ErrMainWorktree = errors.New("commit: refusing to auto-stage in main worktree; tug commit must run in a linked worktree")

// Result is the outcome of a successful commit pipeline run. StateError is
// set, non-fatally, if the post-commit state update failed — the commit
// itself always succeeds or the whole call returns an error.
type Result struct {
	CommitHash     string
	FilesStaged    []string
	LogRotated     bool
	ArchivedPath   string
	StateCompleted bool
	StateError     string
}

// Run executes tug's commit pipeline for one step inside worktree: rotate
// the implementation log if needed, prepend an entry for this step, stage
// everything, inject Tug-Step/Tug-Plan trailers into message, commit, then
// best-effort mark the step completed in the state store (spec §4.6).
func Run(store *state.Store, worktree, anchor, planPath, message, summary, worktreeID string) (Result, error) {
	if isMainWorktree(worktree) {
		return Result{}, ErrMainWorktree
	}

	rotate, err := RotateLog(worktree, false)
	if err != nil {
		return Result{}, fmt.Errorf("commit: log rotation failed: %w", err)
	}

	if _, err := PrependLog(worktree, anchor, planPath, summary); err != nil {
		return Result{}, fmt.Errorf("commit: log prepend failed: %w", err)
	}

	if err := gitAdd(worktree); err != nil {
		return Result{}, err
	}

	staged, err := git.StagedFiles(worktree)
	if err != nil {
		return Result{}, err
	}

	finalMessage := addOrReplaceTrailers(message, anchor, planPath)

	if err := gitCommit(worktree, finalMessage); err != nil {
		return Result{}, err
	}

	commitHash, err := git.LatestCommitSHA(worktree)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		CommitHash:   commitHash,
		FilesStaged:  staged,
		LogRotated:   rotate.Rotated,
		ArchivedPath: rotate.ArchivedPath,
	}

	_, completeErr := store.CompleteStep(planPath, anchor, worktreeID, commitHash, true, "committed via tug commit")
	if completeErr != nil {
		result.StateError = completeErr.Error()
	} else {
		result.StateCompleted = true
	}

	return result, nil
}

// isMainWorktree reports whether dir is a repository's primary worktree
// (".git" is a directory there) rather than a linked one (where ".git" is
// a file pointing at the main repo's worktree metadata).
func isMainWorktree(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

func gitAdd(worktree string) error {
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = worktree
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("commit: git add -A: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func gitCommit(worktree, message string) error {
	cmd := exec.Command("git", "commit", "-m", message)
	cmd.Dir = worktree
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("commit: git commit: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// addOrReplaceTrailers appends Tug-Step/Tug-Plan trailers to message,
// replacing any existing occurrence in place so re-running the pipeline on
// an amended message stays idempotent.
func addOrReplaceTrailers(message, step, planPath string) string {
	lines := strings.Split(message, "\n")
	var foundStep, foundPlan bool
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "Tug-Step:"):
			lines[i] = "Tug-Step: " + step
			foundStep = true
		case strings.HasPrefix(line, "Tug-Plan:"):
			lines[i] = "Tug-Plan: " + planPath
			foundPlan = true
		}
	}
	result := strings.Join(lines, "\n")

	if foundStep && foundPlan {
		return result
	}

	if !strings.HasSuffix(result, "\n\n") {
		if !strings.HasSuffix(result, "\n") {
			result += "\n"
		}
		result += "\n"
	}
	if !foundStep {
		result += "Tug-Step: " + step + "\n"
	}
	if !foundPlan {
		result += "Tug-Plan: " + planPath + "\n"
	}
	return result
}
