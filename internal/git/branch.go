package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// BranchName builds the branch name tug gives a new worktree:
// tugplan/<slug>-<compact timestamp> (spec §4.5.1).
func BranchName(slug string, ts time.Time) string {
	return fmt.Sprintf("tugplan/%s-%s", slug, ts.UTC().Format("20060102-150405"))
}

// CurrentBranch returns the branch checked out in workspace.
func CurrentBranch(workspace string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// BranchExists reports whether a local branch ref exists.
func BranchExists(workspace, branch string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", fmt.Sprintf("refs/heads/%s", branch))
	cmd.Dir = workspace
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if branch %s exists: %w", branch, err)
	}
	return true, nil
}

// DeleteBranch deletes a local branch. force uses -D instead of -d, needed
// when the branch's worktree was already removed without merging.
func DeleteBranch(workspace, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	cmd := exec.Command("git", "branch", flag, branch)
	cmd.Dir = workspace
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w (%s)", branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DefaultBranch detects a repository's base branch: the remote HEAD symref
// if one is configured, falling back to a local "main" or "master" branch.
func DefaultBranch(repoRoot string) (string, error) {
	cmd := exec.Command("git", "symbolic-ref", "refs/remotes/origin/HEAD")
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err == nil {
		ref := strings.TrimSpace(string(out))
		if name := strings.TrimPrefix(ref, "refs/remotes/origin/"); name != ref {
			return name, nil
		}
	}

	for _, candidate := range []string{"main", "master"} {
		exists, err := BranchExists(repoRoot, candidate)
		if err != nil {
			return "", err
		}
		if exists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("git: could not detect a default branch (no origin/HEAD, no local main or master)")
}

// BranchCommitterUnix returns the unix timestamp of a branch tip's last
// commit, used by cleanup to judge staleness.
func BranchCommitterUnix(workspace, branch string) (int64, error) {
	cmd := exec.Command("git", "log", "-1", "--format=%ct", branch)
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("failed to read commit time for %s: %w (%s)", branch, err, strings.TrimSpace(string(out)))
	}
	unix, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse commit time for %s: %w", branch, err)
	}
	return unix, nil
}
