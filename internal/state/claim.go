package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tugtool/tug/internal/planhash"
)

// eligibleStepsSQL selects steps that are either pending, or claimed/
// in_progress with an expired lease (or, when forceLive is requested by the
// caller, any claimed/in_progress step at all), and whose dependencies are
// all completed. Ordered by index then anchor per spec §4.4.1.
const eligibleStepsSQL = `
SELECT s.anchor, s.status, s."index"
FROM step s
WHERE s.plan_path = ?
  AND (
    s.status = 'pending'
    OR (s.status IN ('claimed', 'in_progress') AND (s.lease_expires_at IS NULL OR s.lease_expires_at < ? OR ?))
  )
  AND NOT EXISTS (
    SELECT 1 FROM dependency d
    JOIN step dep ON dep.plan_path = d.plan_path AND dep.anchor = d.dep_anchor
    WHERE d.plan_path = s.plan_path AND d.anchor = s.anchor AND dep.status != 'completed'
  )
ORDER BY s."index" ASC, s.anchor ASC
`

// ClaimStep atomically selects one eligible step and marks it claimed by
// worktreeID (spec §4.4, §4.4.1).
func (s *Store) ClaimStep(planPath, worktreeID string, leaseDurationS int64, planHash string, force bool) (ClaimResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("state: claim_step: begin: %w", err)
	}
	defer tx.Rollback()

	if err := checkDrift(tx, planPath, planHash, force); err != nil {
		return nil, err
	}

	now := planhash.NowUTC()
	rows, err := tx.Query(eligibleStepsSQL, planPath, now, force)
	if err != nil {
		return nil, fmt.Errorf("state: claim_step: query eligible: %w", err)
	}
	type candidate struct {
		anchor string
		status string
	}
	var picked *candidate
	for rows.Next() {
		var c candidate
		var index int
		if err := rows.Scan(&c.anchor, &c.status, &index); err != nil {
			rows.Close()
			return nil, fmt.Errorf("state: claim_step: scan: %w", err)
		}
		picked = &c
		break
	}
	rows.Close()

	if picked == nil {
		return s.claimMiss(tx, planPath)
	}

	reclaimed := picked.status != string(StepPending)
	leaseExpires := now.Add(time.Duration(leaseDurationS) * time.Second)

	_, err = tx.Exec(
		`UPDATE step SET status = 'claimed', claimed_by = ?, claimed_at = ?, lease_expires_at = ?, started_at = NULL
		 WHERE plan_path = ? AND anchor = ?`,
		worktreeID, now, leaseExpires, planPath, picked.anchor,
	)
	if err != nil {
		return nil, fmt.Errorf("state: claim_step: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("state: claim_step: commit: %w", err)
	}

	return Claimed{
		Anchor:         picked.anchor,
		ClaimedBy:      worktreeID,
		LeaseExpiresAt: leaseExpires,
		Reclaimed:      reclaimed,
	}, nil
}

func (s *Store) claimMiss(tx *sql.Tx, planPath string) (ClaimResult, error) {
	var total, completed int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM step WHERE plan_path = ?`, planPath).Scan(&total); err != nil {
		return nil, fmt.Errorf("state: claim_step: count steps: %w", err)
	}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM step WHERE plan_path = ? AND status = 'completed'`, planPath).Scan(&completed); err != nil {
		return nil, fmt.Errorf("state: claim_step: count completed: %w", err)
	}
	if total > 0 && total == completed {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("state: claim_step: commit: %w", err)
		}
		return AllCompleted{}, nil
	}

	rows, err := tx.Query(
		`SELECT anchor FROM step WHERE plan_path = ? AND status != 'completed'
		 AND EXISTS (
			SELECT 1 FROM dependency d
			JOIN step dep ON dep.plan_path = d.plan_path AND dep.anchor = d.dep_anchor
			WHERE d.plan_path = step.plan_path AND d.anchor = step.anchor AND dep.status != 'completed'
		 )`,
		planPath,
	)
	if err != nil {
		return nil, fmt.Errorf("state: claim_step: query blocked: %w", err)
	}
	defer rows.Close()

	var blocked []string
	for rows.Next() {
		var anchor string
		if err := rows.Scan(&anchor); err != nil {
			return nil, fmt.Errorf("state: claim_step: scan blocked: %w", err)
		}
		blocked = append(blocked, anchor)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("state: claim_step: commit: %w", err)
	}
	return NoReadySteps{Blocked: blocked, AllCompleted: false}, nil
}

// StartStep transitions claimed -> in_progress; fails if the caller is not
// the claimant or the step is not currently claimed.
func (s *Store) StartStep(planPath, anchor, worktreeID string) error {
	res, err := s.db.Exec(
		`UPDATE step SET status = 'in_progress', started_at = ?
		 WHERE plan_path = ? AND anchor = ? AND status = 'claimed' AND claimed_by = ?`,
		planhash.NowUTC(), planPath, anchor, worktreeID,
	)
	if err != nil {
		return fmt.Errorf("state: start_step: %w", err)
	}
	return requireAffected(res, planPath, anchor, worktreeID, s)
}

// HeartbeatStep extends lease_expires_at for the current claimant.
func (s *Store) HeartbeatStep(planPath, anchor, worktreeID string, leaseDurationS int64) error {
	newExpiry := planhash.NowUTC().Add(time.Duration(leaseDurationS) * time.Second)
	res, err := s.db.Exec(
		`UPDATE step SET lease_expires_at = ?
		 WHERE plan_path = ? AND anchor = ? AND claimed_by = ? AND status IN ('claimed', 'in_progress')`,
		newExpiry, planPath, anchor, worktreeID,
	)
	if err != nil {
		return fmt.Errorf("state: heartbeat_step: %w", err)
	}
	return requireAffected(res, planPath, anchor, worktreeID, s)
}

// ReleaseStep returns a step to pending, clearing claim fields. When force
// is true the ownership check is bypassed.
func (s *Store) ReleaseStep(planPath, anchor, worktreeID string, force bool) error {
	var res sql.Result
	var err error
	if force {
		res, err = s.db.Exec(
			`UPDATE step SET status = 'pending', claimed_by = '', claimed_at = NULL, lease_expires_at = NULL, started_at = NULL
			 WHERE plan_path = ? AND anchor = ? AND status IN ('claimed', 'in_progress')`,
			planPath, anchor,
		)
	} else {
		res, err = s.db.Exec(
			`UPDATE step SET status = 'pending', claimed_by = '', claimed_at = NULL, lease_expires_at = NULL, started_at = NULL
			 WHERE plan_path = ? AND anchor = ? AND status IN ('claimed', 'in_progress') AND claimed_by = ?`,
			planPath, anchor, worktreeID,
		)
	}
	if err != nil {
		return fmt.Errorf("state: release_step: %w", err)
	}
	return requireAffected(res, planPath, anchor, worktreeID, s)
}

// ResetStep unconditionally returns a step to pending, including from
// completed, for manual recovery.
func (s *Store) ResetStep(planPath, anchor string) error {
	res, err := s.db.Exec(
		`UPDATE step SET status = 'pending', claimed_by = '', claimed_at = NULL, lease_expires_at = NULL,
		 started_at = NULL, completed_at = NULL, commit_hash = '', complete_reason = ''
		 WHERE plan_path = ? AND anchor = ?`,
		planPath, anchor,
	)
	if err != nil {
		return fmt.Errorf("state: reset_step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("state: reset_step: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("state: reset_step: %s#%s: %w", planPath, anchor, ErrNotFound)
	}
	return nil
}

func requireAffected(res sql.Result, planPath, anchor, worktreeID string, s *Store) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT 1 FROM step WHERE plan_path = ? AND anchor = ?`, planPath, anchor).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("state: step %s#%s: %w", planPath, anchor, ErrNotFound)
		}
		return fmt.Errorf("state: %w", err)
	}
	return fmt.Errorf("state: step %s#%s: claimant %s: %w", planPath, anchor, worktreeID, ErrNotClaimant)
}

func checkDrift(tx *sql.Tx, planPath, planHash string, allowDrift bool) error {
	var stored string
	err := tx.QueryRow(`SELECT plan_hash FROM plan WHERE plan_path = ?`, planPath).Scan(&stored)
	if err == sql.ErrNoRows {
		return fmt.Errorf("state: plan %s: %w", planPath, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("state: check drift: %w", err)
	}
	if stored == planHash || allowDrift {
		return nil
	}
	return fmt.Errorf("state: plan file has been modified since state was initialized (stored: %s..., current: %s...): %w",
		planhash.Short(stored), planhash.Short(planHash), ErrDriftDetected)
}
