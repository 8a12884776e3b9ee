// Package dash implements tug's dash track (spec §4.9): lightweight,
// worktree-isolated work units that are cheaper to spin up than a full
// plan, with a create/commit/join/release lifecycle instead of a
// claim/lease protocol. Grounded on original_source's commands/dash.rs,
// reusing internal/state for persistence and internal/worktree's atomic
// `git worktree add` helper.
package dash

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tugtool/tug/internal/git"
	"github.com/tugtool/tug/internal/project"
	"github.com/tugtool/tug/internal/state"
	"github.com/tugtool/tug/internal/worktree"
)

const (
	branchPrefix      = "tugdash/"
	worktreeDirPrefix = "tugdash__"
)

// ErrNotActive is returned when an operation that requires an active dash
// (commit, join, release) is attempted against a joined or released one.
var ErrNotActive = errors.New("dash: not active")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9-]{2,}$`)

// ValidateName enforces dash.rs's name rule: alphanumeric and hyphens,
// at least two characters.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("dash: invalid name %q: must be alphanumeric/hyphens, 2+ characters", name)
	}
	return nil
}

var invalidBranchChars = regexp.MustCompile(`[^a-z0-9-]+`)

// SanitizeBranchName lowercases a dash name into a form safe for the
// .tugtree/tugdash__<name> directory, matching worktree.Slugify's approach.
func SanitizeBranchName(name string) string {
	s := invalidBranchChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Dash    state.Dash
	Created bool
}

// Create makes (or idempotently returns, or reactivates) a dash: a branch
// tugdash/<name> off the repository's detected default branch and a
// worktree at .tugtree/tugdash__<name>. An already-active dash of the same
// name is returned unchanged; a joined/released one is reactivated in
// place, replacing any stale worktree/branch left from its previous life
// (dash.rs run_dash_create).
func Create(store *state.Store, repoRoot, name, description string) (CreateResult, error) {
	if err := ValidateName(name); err != nil {
		return CreateResult{}, err
	}

	if existing, err := store.GetDash(name); err == nil && existing.Status == state.DashActive {
		return CreateResult{Dash: existing, Created: false}, nil
	} else if err != nil && err != state.ErrNotFound {
		return CreateResult{}, err
	}

	baseBranch, err := git.DefaultBranch(repoRoot)
	if err != nil {
		return CreateResult{}, err
	}

	branch := branchPrefix + name
	worktreePath := filepath.Join(repoRoot, project.TugtreeDir, worktreeDirPrefix+SanitizeBranchName(name))

	if err := removeStaleIncarnation(repoRoot, branch, worktreePath); err != nil {
		return CreateResult{}, err
	}

	if err := worktree.AddWorktree(repoRoot, branch, worktreePath, baseBranch); err != nil {
		return CreateResult{}, err
	}

	res, err := store.CreateDash(name, description, branch, worktreePath, baseBranch)
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Dash: res.Dash, Created: res.Created}, nil
}

// removeStaleIncarnation tears down a worktree/branch left over from a
// dash's previous joined/released life, so the new `git worktree add -b`
// call doesn't fail on an already-existing ref or path.
func removeStaleIncarnation(repoRoot, branch, worktreePath string) error {
	if _, err := os.Stat(worktreePath); err == nil {
		cmd := exec.Command("git", "worktree", "remove", worktreePath, "--force")
		cmd.Dir = repoRoot
		_, _ = cmd.CombinedOutput() // best-effort, matching dash.rs
	}

	exists, err := git.BranchExists(repoRoot, branch)
	if err != nil {
		return err
	}
	if exists {
		if err := git.DeleteBranch(repoRoot, branch, true); err != nil {
			return fmt.Errorf("dash: delete stale branch %s: %w", branch, err)
		}
	}
	return nil
}

// RoundMeta is the optional per-round metadata a caller may supply to
// Commit, normally read from stdin as JSON by the CLI layer
// (dash.rs's DashRoundMeta).
type RoundMeta struct {
	Instruction   *string
	Summary       *string
	FilesCreated  []string
	FilesModified []string
}

// CommitResult is the outcome of Commit.
type CommitResult struct {
	Committed  bool
	RoundID    int64
	CommitHash string
}

// Commit stages and commits whatever changed in a dash's worktree, and
// always records a round — even when there was nothing to commit — so the
// round history stays a complete log of work attempted (dash.rs
// run_dash_commit, "[D06]").
func Commit(store *state.Store, name, message string, meta RoundMeta) (CommitResult, error) {
	dash, err := store.GetDash(name)
	if err != nil {
		return CommitResult{}, err
	}
	if dash.Status != state.DashActive {
		return CommitResult{}, fmt.Errorf("dash: %q is not active (status: %s): %w", name, dash.Status, ErrNotActive)
	}

	if err := gitRun(dash.Worktree, "add", "-A"); err != nil {
		return CommitResult{}, err
	}

	hasChanges := hasStagedChanges(dash.Worktree)

	var commitHash string
	if hasChanges {
		summary := ""
		if meta.Summary != nil {
			summary = *meta.Summary
		}

		commitMessage := message
		if len(summary) > 72 {
			commitMessage = summary[:72] + "\n\n" + summary
		}

		if err := gitRun(dash.Worktree, "commit", "-m", commitMessage); err != nil {
			return CommitResult{}, err
		}
		commitHash, err = git.LatestCommitSHA(dash.Worktree)
		if err != nil {
			return CommitResult{}, err
		}
	}

	roundID, err := store.RecordRound(name, meta.Instruction, meta.Summary, meta.FilesCreated, meta.FilesModified, commitHash)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{Committed: hasChanges, RoundID: roundID, CommitHash: commitHash}, nil
}

// JoinResult is the outcome of Join.
type JoinResult struct {
	Name       string
	BaseBranch string
	CommitHash string
	Warnings   []string
}

// Join squash-merges a dash's branch back onto its base branch from
// repoRoot and tears down the worktree/branch, matching dash.rs's
// run_dash_join sequence: preflight clean repo root, verify branch,
// auto-commit outstanding changes, squash-merge, commit, then best-effort
// cleanup (cleanup failures become warnings, not errors — the merge is
// already durable on the base branch by that point).
func Join(store *state.Store, repoRoot, currentDir, name, message string) (JoinResult, error) {
	dash, err := store.GetDash(name)
	if err != nil {
		return JoinResult{}, err
	}
	if dash.Status != state.DashActive {
		return JoinResult{}, fmt.Errorf("dash: %q is not active (status: %s): %w", name, dash.Status, ErrNotActive)
	}

	if dirty, err := gitOutput(repoRoot, "status", "--porcelain", "--untracked-files=no"); err != nil {
		return JoinResult{}, err
	} else if strings.TrimSpace(dirty) != "" {
		return JoinResult{}, fmt.Errorf("dash: cannot join: repo root worktree has uncommitted changes; commit or stash them first")
	}

	if currentDir != "" && withinDir(currentDir, dash.Worktree) {
		return JoinResult{}, fmt.Errorf("dash: cannot join from inside the dash worktree; run from the repo root instead")
	}

	currentBranch, err := git.CurrentBranch(repoRoot)
	if err != nil {
		return JoinResult{}, err
	}
	if currentBranch != dash.BaseBranch {
		return JoinResult{}, fmt.Errorf("dash: cannot join: repo root worktree is on branch %q but dash targets %q; check out %q first", currentBranch, dash.BaseBranch, dash.BaseBranch)
	}

	if err := autoCommitOutstanding(store, dash); err != nil {
		return JoinResult{}, err
	}

	if out, err := gitOutput(repoRoot, "merge", "--squash", dash.Branch); err != nil {
		if strings.Contains(out, "CONFLICT") || strings.Contains(strings.ToLower(out), "conflict") {
			return JoinResult{}, fmt.Errorf("dash: merge conflict occurred; resolve manually with `git merge --abort`, fix conflicts, or run `tug dash release %s`", name)
		}
		return JoinResult{}, fmt.Errorf("dash: git merge --squash: %w (%s)", err, out)
	}

	commitMessage := message
	if commitMessage == "" {
		commitMessage = dash.Description
	}
	if commitMessage == "" {
		commitMessage = "Dash work"
	}
	finalMessage := fmt.Sprintf("tugdash(%s): %s", name, commitMessage)

	if err := gitRun(repoRoot, "commit", "-m", finalMessage); err != nil {
		return JoinResult{}, err
	}
	commitHash, err := git.LatestCommitSHA(repoRoot)
	if err != nil {
		return JoinResult{}, err
	}

	if err := store.UpdateDashStatus(name, state.DashJoined); err != nil {
		return JoinResult{}, err
	}

	var warnings []string
	if err := worktree.Remove(repoRoot, dash.Worktree, false, true); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to remove worktree: %v", err))
	}
	if err := git.DeleteBranch(repoRoot, dash.Branch, true); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to delete branch: %v", err))
	}

	return JoinResult{Name: name, BaseBranch: dash.BaseBranch, CommitHash: commitHash, Warnings: warnings}, nil
}

// autoCommitOutstanding stages and commits any uncommitted changes left in
// a dash's worktree before a join, recording a synthetic round for the
// auto-commit the way dash.rs does (commit hash intentionally left empty:
// the real hash lives on the squash-merge commit, not this intermediate one).
func autoCommitOutstanding(store *state.Store, dash state.Dash) error {
	dirty, err := gitOutput(dash.Worktree, "status", "--porcelain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(dirty) == "" {
		return nil
	}

	if err := gitRun(dash.Worktree, "add", "-A"); err != nil {
		return err
	}

	diffStat, _ := gitOutput(dash.Worktree, "diff", "--cached", "--stat")
	summary := summarizeDiffStat(diffStat)

	if err := gitRun(dash.Worktree, "commit", "-m", "join: commit outstanding changes"); err != nil {
		return err
	}

	instruction := "join: commit outstanding changes"
	_, err = store.RecordRound(dash.Name, &instruction, &summary, nil, nil, "")
	return err
}

func summarizeDiffStat(stat string) string {
	lines := strings.Split(stat, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	return strings.Join(lines, ", ")
}

// ReleaseResult is the outcome of Release.
type ReleaseResult struct {
	Name     string
	Warnings []string
}

// Release discards a dash without merging: removes its worktree (forced)
// and branch, and marks it released regardless of whether cleanup fully
// succeeded (dash.rs run_dash_release).
func Release(store *state.Store, repoRoot, name string) (ReleaseResult, error) {
	dash, err := store.GetDash(name)
	if err != nil {
		return ReleaseResult{}, err
	}
	if dash.Status != state.DashActive {
		return ReleaseResult{}, fmt.Errorf("dash: %q is not active (status: %s): %w", name, dash.Status, ErrNotActive)
	}

	var warnings []string
	if err := worktree.Remove(repoRoot, dash.Worktree, true, true); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to remove worktree: %v", err))
	}
	if err := git.DeleteBranch(repoRoot, dash.Branch, true); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to delete branch: %v", err))
	}

	if err := store.UpdateDashStatus(name, state.DashReleased); err != nil {
		return ReleaseResult{}, err
	}

	return ReleaseResult{Name: name, Warnings: warnings}, nil
}

// ListItem augments a listed dash with whether its worktree still exists
// on disk, for active dashes (dash.rs run_dash_list).
type ListItem struct {
	Dash           state.Dash
	RoundCount     int
	WorktreeExists bool
}

// List returns dashes, active-only unless all is set.
func List(store *state.Store, all bool) ([]ListItem, error) {
	items, err := store.ListDashes(!all)
	if err != nil {
		return nil, err
	}

	out := make([]ListItem, 0, len(items))
	for _, it := range items {
		exists := false
		if it.Dash.Status == state.DashActive {
			if _, statErr := os.Stat(it.Dash.Worktree); statErr == nil {
				exists = true
			}
		}
		out = append(out, ListItem{Dash: it.Dash, RoundCount: it.RoundCount, WorktreeExists: exists})
	}
	return out, nil
}

// ShowResult is the outcome of Show.
type ShowResult struct {
	Dash               state.Dash
	Rounds             []state.DashRound
	UncommittedChanges *bool
}

// Show returns a dash's metadata and rounds, optionally across every
// incarnation, plus whether its worktree currently has uncommitted changes
// (dash.rs run_dash_show).
func Show(store *state.Store, name string, allRounds bool) (ShowResult, error) {
	dash, err := store.GetDash(name)
	if err != nil {
		return ShowResult{}, err
	}

	rounds, err := store.DashRounds(name, !allRounds)
	if err != nil {
		return ShowResult{}, err
	}

	var uncommitted *bool
	if dash.Status == state.DashActive {
		if out, err := gitOutput(dash.Worktree, "status", "--porcelain"); err == nil {
			has := strings.TrimSpace(out) != ""
			uncommitted = &has
		}
	}

	return ShowResult{Dash: dash, Rounds: rounds, UncommittedChanges: uncommitted}, nil
}

func gitRun(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("dash: git %v: %w (%s)", args, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("dash: git %v: %w (%s)", args, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func hasStagedChanges(worktreeDir string) bool {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	cmd.Dir = worktreeDir
	return cmd.Run() != nil
}

func withinDir(dir, base string) bool {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
