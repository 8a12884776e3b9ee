// Package reconcile closes the gap between git history and the state
// store: it scrapes Tug-Step/Tug-Plan trailers from every commit reachable
// from any ref and replays them into the state store as completions,
// recovering steps whose CompleteStep call never landed (e.g. the process
// was killed between `git commit` and the state update) (spec §4.7).
package reconcile

import (
	"github.com/tugtool/tug/internal/git"
	"github.com/tugtool/tug/internal/state"
)

// Run scrapes repoRoot's git history and reconciles every trailer-tagged
// commit into store. force overwrites a step's recorded commit hash when
// a later commit retagged the same step (e.g. after a rebase).
func Run(store *state.Store, repoRoot string, force bool) (state.ReconcileResult, error) {
	commits, err := git.LogAllWithTrailers(repoRoot)
	if err != nil {
		return state.ReconcileResult{}, err
	}

	// git log lists newest-first; replay oldest-first so the commit that
	// first completed a step is the one recorded, and a later duplicate
	// tag (e.g. after an amend) surfaces as a mismatch instead of quietly
	// winning just because it sorts first.
	entries := make([]state.TrailerEntry, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		entries = append(entries, state.TrailerEntry{
			StepAnchor: c.Trailer("Tug-Step"),
			PlanPath:   c.Trailer("Tug-Plan"),
			CommitHash: c.Hash,
		})
	}

	return store.Reconcile(entries, force)
}
