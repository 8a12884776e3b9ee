package worktree

import (
	"time"

	"github.com/tugtool/tug/internal/git"
)

// CleanupMode selects which worktrees Cleanup considers eligible for
// removal (spec §4.5.3).
type CleanupMode string

const (
	// CleanupMerged removes worktrees whose branch's PR has merged.
	CleanupMerged CleanupMode = "merged"
	// CleanupOrphaned removes tugplan/ branches that have no worktree.
	// Worktrees whose branch is gone are not selected.
	CleanupOrphaned CleanupMode = "orphaned"
	// CleanupStale removes worktrees with no commits in the staleness window.
	CleanupStale CleanupMode = "stale"
	// CleanupAll removes every managed worktree regardless of state.
	CleanupAll CleanupMode = "all"
)

// CleanupCandidate is one worktree Cleanup decided to remove (or would, in
// a dry run), with the reason it qualified.
type CleanupCandidate struct {
	Worktree Worktree
	Reason   string
}

// Cleanup finds worktrees eligible for removal under mode and, unless
// dryRun is set, removes them. staleAfter bounds CleanupStale; it is
// ignored for the other modes.
func Cleanup(repoRoot string, mode CleanupMode, staleAfter time.Duration, dryRun bool) ([]CleanupCandidate, error) {
	all, err := List(repoRoot)
	if err != nil {
		return nil, err
	}

	present := make(map[string]Worktree, len(all))
	for _, w := range all {
		present[w.Path] = w
	}

	branches, err := git.ListTugBranches(repoRoot, "tugplan/")
	if err != nil {
		return nil, err
	}
	branchByName := make(map[string]git.TugBranch, len(branches))
	for _, b := range branches {
		branchByName[b.Name] = b
	}

	now := time.Now().UTC()
	var candidates []CleanupCandidate

	for _, w := range all {
		switch mode {
		case CleanupAll:
			candidates = append(candidates, CleanupCandidate{Worktree: w, Reason: "cleanup --all"})

		case CleanupMerged:
			switch git.PRStatus(repoRoot, w.Branch).(type) {
			case git.PRMerged:
				candidates = append(candidates, CleanupCandidate{Worktree: w, Reason: "PR merged"})
			}

		case CleanupStale:
			b, ok := branchByName[w.Branch]
			if ok && now.Sub(b.LastCommitAt) >= staleAfter {
				candidates = append(candidates, CleanupCandidate{Worktree: w, Reason: "no commits in staleness window"})
			}

		case CleanupOrphaned:
			// An orphaned worktree here means its directory vanished out
			// from under git (e.g. `rm -rf` instead of `tug worktree rm`);
			// `git worktree list` already filters those out as "prunable",
			// so orphaned branches are the complementary case: branches
			// with no matching worktree entry at all.
		}
	}

	if mode == CleanupOrphaned {
		for name := range branchByName {
			found := false
			for _, w := range all {
				if w.Branch == name {
					found = true
					break
				}
			}
			if !found {
				candidates = append(candidates, CleanupCandidate{
					Worktree: Worktree{Branch: name, Slug: slugFromBranch(name)},
					Reason:   "branch has no worktree",
				})
			}
		}
	}

	if dryRun {
		return candidates, nil
	}

	for _, c := range candidates {
		if c.Worktree.Path == "" {
			// Orphaned branch with no worktree: delete the ref directly.
			if err := git.DeleteBranch(repoRoot, c.Worktree.Branch, true); err != nil {
				return candidates, err
			}
			continue
		}
		if err := Remove(repoRoot, c.Worktree.Path, true, false); err != nil {
			return candidates, err
		}
	}
	return candidates, nil
}
