// Package worktree manages the lifecycle of the isolated git worktrees tug
// gives each in-flight plan: atomic creation, listing, resolution by a
// five-stage cascade (mirroring internal/resolve), removal, and
// PR-oracle-driven cleanup (spec §4.5).
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tugtool/tug/internal/git"
	"github.com/tugtool/tug/internal/project"
)

// Worktree is one managed tug worktree.
type Worktree struct {
	Path      string
	Branch    string
	Slug      string
	BaseRef   string
	CreatedAt time.Time
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases and hyphenates a free-form plan title into a name
// usable in branch and directory names.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Create sets up a new worktree for slug branching off baseBranch: it
// creates the branch and worktree in one `git worktree add` call, so there
// is no window where the branch exists without its worktree (spec §4.5.1).
// It runs no cleanup of its own when that call fails.
func Create(repoRoot, slug, baseBranch string, now time.Time) (Worktree, error) {
	branch := git.BranchName(slug, now)
	dirName := strings.TrimPrefix(branch, "tugplan/")
	path := filepath.Join(repoRoot, project.TugtreeDir, dirName)

	exists, err := git.BranchExists(repoRoot, branch)
	if err != nil {
		return Worktree{}, err
	}
	if exists {
		return Worktree{}, fmt.Errorf("worktree: branch %s already exists", branch)
	}

	if err := AddWorktree(repoRoot, branch, path, baseBranch); err != nil {
		return Worktree{}, err
	}

	return Worktree{Path: path, Branch: branch, Slug: slug, BaseRef: baseBranch, CreatedAt: now.UTC()}, nil
}

// AddWorktree performs the shared atomic `git worktree add -b <branch>
// <path> <baseRef>` call that both plan worktrees (Create) and dash
// worktrees (internal/dash) rely on for the no-window create guarantee
// (spec §4.5.1, §4.9).
func AddWorktree(repoRoot, branch, path, baseRef string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("worktree: create %s: %w", filepath.Dir(path), err)
	}

	cmd := exec.Command("git", "worktree", "add", "-b", branch, path, baseRef)
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("worktree: git worktree add %s: %w (%s)", branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// List enumerates every tugplan/* worktree by parsing `git worktree list
// --porcelain`.
func List(repoRoot string) ([]Worktree, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("worktree: list: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	var result []Worktree
	var cur Worktree
	flush := func() {
		if cur.Path != "" && strings.HasPrefix(cur.Branch, "tugplan/") {
			cur.Slug = slugFromBranch(cur.Branch)
			result = append(result, cur)
		}
		cur = Worktree{}
	}

	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "":
			flush()
		}
	}
	flush()

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// timestampSuffix matches the "-20060102-150405" tail BranchName appends.
var timestampSuffix = regexp.MustCompile(`-\d{8}-\d{6}$`)

func slugFromBranch(branch string) string {
	name := strings.TrimPrefix(branch, "tugplan/")
	return timestampSuffix.ReplaceAllString(name, "")
}

// Resolve maps a user-supplied identifier to exactly one worktree using the
// same cascade shape as internal/resolve: exact path, exact branch, slug
// match, slug prefix, then (if input is empty) auto-select the sole
// worktree.
func Resolve(input string, all []Worktree) (*Worktree, []Worktree, error) {
	trimmed := strings.TrimSpace(input)

	if trimmed != "" {
		for _, w := range all {
			if w.Path == trimmed || w.Branch == trimmed {
				wc := w
				return &wc, nil, nil
			}
		}
		for _, w := range all {
			if w.Slug == trimmed {
				wc := w
				return &wc, nil, nil
			}
		}
		var prefixMatches []Worktree
		for _, w := range all {
			if strings.HasPrefix(w.Slug, trimmed) {
				prefixMatches = append(prefixMatches, w)
			}
		}
		if len(prefixMatches) == 1 {
			return &prefixMatches[0], nil, nil
		}
		if len(prefixMatches) > 1 {
			return nil, prefixMatches, nil
		}
		return nil, nil, nil
	}

	if len(all) == 1 {
		wc := all[0]
		return &wc, nil, nil
	}
	if len(all) > 1 {
		return nil, all, nil
	}
	return nil, nil, nil
}

// Remove tears down a worktree and, unless keepBranch is set, its branch.
// A worktree with uncommitted changes is refused unless force is set.
func Remove(repoRoot, worktreePath string, force, keepBranch bool) error {
	if !force {
		cmd := exec.Command("git", "status", "--porcelain")
		cmd.Dir = worktreePath
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("worktree: status %s: %w (%s)", worktreePath, err, strings.TrimSpace(string(out)))
		}
		if strings.TrimSpace(string(out)) != "" {
			return fmt.Errorf("worktree: %s has uncommitted changes; use force to remove anyway", worktreePath)
		}
	}

	branch, branchErr := git.CurrentBranch(worktreePath)

	args := []string{"worktree", "remove", worktreePath}
	if force {
		args = append(args, "--force")
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("worktree: remove %s: %w (%s)", worktreePath, err, strings.TrimSpace(string(out)))
	}

	if keepBranch || branchErr != nil || branch == "" {
		return nil
	}
	return git.DeleteBranch(repoRoot, branch, force)
}
