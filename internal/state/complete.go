package state

import (
	"database/sql"
	"fmt"

	"github.com/tugtool/tug/internal/planhash"
)

// CompleteStep marks a step completed after recording the commit that
// implemented it. Completion is gated on every checklist item (tasks,
// tests, and checkpoints alike) being completed or deferred, and on every
// direct substep already being completed; force bypasses both gates but
// still requires a non-empty reason, which is recorded as the step's
// complete_reason (spec §4.4/§4.4.3).
func (s *Store) CompleteStep(planPath, anchor, worktreeID, commitHash string, force bool, reason string) (CompleteResult, error) {
	if force && reason == "" {
		return CompleteResult{}, fmt.Errorf("state: complete_step: %w", ErrReasonRequired)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return CompleteResult{}, fmt.Errorf("state: complete_step: begin: %w", err)
	}
	defer tx.Rollback()

	var status StepStatus
	var claimedBy string
	err = tx.QueryRow(
		`SELECT status, claimed_by FROM step WHERE plan_path = ? AND anchor = ?`,
		planPath, anchor,
	).Scan(&status, &claimedBy)
	if err == sql.ErrNoRows {
		return CompleteResult{}, fmt.Errorf("state: complete_step: %s#%s: %w", planPath, anchor, ErrNotFound)
	}
	if err != nil {
		return CompleteResult{}, fmt.Errorf("state: complete_step: lookup: %w", err)
	}

	if status == StepCompleted {
		return CompleteResult{Completed: true, Forced: force}, tx.Commit()
	}
	if !force && claimedBy != worktreeID {
		return CompleteResult{}, fmt.Errorf("state: complete_step: %s#%s: claimant %s: %w", planPath, anchor, worktreeID, ErrNotClaimant)
	}

	if !force {
		n, err := incompleteChecklistCount(tx, planPath, anchor)
		if err != nil {
			return CompleteResult{}, err
		}
		if n > 0 {
			return CompleteResult{}, fmt.Errorf("state: complete_step: %s#%s: %d checklist item(s) still open: %w", planPath, anchor, n, ErrIncomplete)
		}

		incompleteSubsteps, err := incompleteSubstepCount(tx, planPath, anchor)
		if err != nil {
			return CompleteResult{}, err
		}
		if incompleteSubsteps > 0 {
			return CompleteResult{}, fmt.Errorf("state: complete_step: %s#%s: %d substep(s) not completed: %w", planPath, anchor, incompleteSubsteps, ErrIncomplete)
		}
	}

	_, err = tx.Exec(
		`UPDATE step SET status = 'completed', completed_at = ?, commit_hash = ?, complete_reason = ?
		 WHERE plan_path = ? AND anchor = ?`,
		planhash.NowUTC(), commitHash, reason, planPath, anchor,
	)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("state: complete_step: update: %w", err)
	}

	allDone, err := allStepsCompleted(tx, planPath)
	if err != nil {
		return CompleteResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return CompleteResult{}, fmt.Errorf("state: complete_step: commit: %w", err)
	}

	return CompleteResult{Completed: true, Forced: force, AllStepsCompleted: allDone}, nil
}

// incompleteSubstepCount reports how many direct substeps of anchor (steps
// whose parent_anchor equals anchor) are not yet completed. Spec §4.4: every
// substep must be completed before its parent can complete without force.
func incompleteSubstepCount(q queryer, planPath, anchor string) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM step
		 WHERE plan_path = ? AND parent_anchor = ? AND status != 'completed'`,
		planPath, anchor,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("state: incomplete substep count: %w", err)
	}
	return n, nil
}

func allStepsCompleted(q queryer, planPath string) (bool, error) {
	var total, completed int
	if err := q.QueryRow(`SELECT COUNT(*) FROM step WHERE plan_path = ?`, planPath).Scan(&total); err != nil {
		return false, fmt.Errorf("state: all steps completed: count: %w", err)
	}
	if err := q.QueryRow(`SELECT COUNT(*) FROM step WHERE plan_path = ? AND status = 'completed'`, planPath).Scan(&completed); err != nil {
		return false, fmt.Errorf("state: all steps completed: count completed: %w", err)
	}
	return total > 0 && total == completed, nil
}
