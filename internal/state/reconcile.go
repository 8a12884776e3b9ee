package state

import (
	"database/sql"
	"fmt"

	"github.com/tugtool/tug/internal/planhash"
)

// Reconcile applies a batch of trailer entries scraped from git history
// (spec §4.7). For each entry whose step is not yet completed, the step is
// marked completed with the entry's commit hash. An entry whose step is
// already completed under a different commit hash is skipped as a mismatch
// unless force is set, in which case the stored hash is overwritten.
func (s *Store) Reconcile(entries []TrailerEntry, force bool) (ReconcileResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("state: reconcile: begin: %w", err)
	}
	defer tx.Rollback()

	var result ReconcileResult
	for _, e := range entries {
		var status StepStatus
		var storedHash string
		err := tx.QueryRow(
			`SELECT status, commit_hash FROM step WHERE plan_path = ? AND anchor = ?`,
			e.PlanPath, e.StepAnchor,
		).Scan(&status, &storedHash)
		if err == sql.ErrNoRows {
			result.SkippedCount++
			continue
		}
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("state: reconcile: lookup %s#%s: %w", e.PlanPath, e.StepAnchor, err)
		}

		if status == StepCompleted {
			if storedHash == e.CommitHash {
				continue
			}
			if !force {
				result.SkippedCount++
				result.SkippedMismatches = append(result.SkippedMismatches, ReconcileMismatch{
					Anchor:       e.StepAnchor,
					StoredHash:   storedHash,
					IncomingHash: e.CommitHash,
				})
				continue
			}
		}

		_, err = tx.Exec(
			`UPDATE step SET status = 'completed', completed_at = COALESCE(completed_at, ?), commit_hash = ?,
			 complete_reason = CASE WHEN complete_reason = '' THEN 'reconciled from git history' ELSE complete_reason END
			 WHERE plan_path = ? AND anchor = ?`,
			planhash.NowUTC(), e.CommitHash, e.PlanPath, e.StepAnchor,
		)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("state: reconcile: update %s#%s: %w", e.PlanPath, e.StepAnchor, err)
		}
		result.ReconciledCount++
	}

	if err := tx.Commit(); err != nil {
		return ReconcileResult{}, fmt.Errorf("state: reconcile: commit: %w", err)
	}
	return result, nil
}
